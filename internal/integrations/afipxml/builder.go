// Package afipxml renders the operation bodies sent to the customs webservices and
// parses what comes back.
package afipxml

import (
	"encoding/xml"
	"time"

	"github.com/BearBump/CustomsBox/internal/models"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// ErrBuild is returned when the body cannot be produced locally. Nothing has been
// sent when it happens.
var ErrBuild = errors.New("xml build failed")

const (
	nsSintia   = "ar.gov.afip.dia.serviciosWeb.wgesregsintia2"
	nsAnticip  = "ar.gov.afip.dia.serviciosweb.wgesinformacionanticipada"
	nsParaguay = "http://www.aduana.gov.py/sofia/manifiesto"
)

type methodSpec struct {
	ns          string
	needsTitles bool
	needsTracks bool
}

var methods = map[string]methodSpec{
	models.MethodRegistrarTitEnvios:      {ns: nsSintia, needsTitles: true},
	models.MethodRegistrarMicDta:         {ns: nsSintia, needsTracks: true},
	models.MethodRegistrarViaje:          {ns: nsAnticip},
	models.MethodRegistrarDesconsolidado: {ns: nsSintia, needsTitles: true},
	models.MethodRegistrarTransbordo:     {ns: nsSintia, needsTitles: true},
	models.MethodRegistrarMane:           {ns: nsSintia, needsTitles: true},
	models.MethodEnviarManifiestoPY:      {ns: nsParaguay, needsTitles: true},
}

// Input is everything a body may need. Tracks is only read by RegistrarMicDta.
type Input struct {
	Method        string
	TransactionID string
	SubmitterCUIT string
	Shipment      *models.Shipment
	Tracks        []string
}

type auth struct {
	Cuit      string `xml:"CuitEmpresaConectada"`
	TipoAgent string `xml:"TipoAgente"`
	Rol       string `xml:"Rol"`
}

type operation struct {
	XMLName xml.Name
	NS      string `xml:"xmlns,attr"`
	Auth    *auth  `xml:"argWSAutenticacionEmpresa,omitempty"`
	Param   param
}

type param struct {
	XMLName        xml.Name
	IdTransaccion  string       `xml:"IdTransaccion"`
	Viaje          viaje        `xml:"Viaje"`
	Titulos        []titulo     `xml:"TitulosTransEnvios>TitTransEnvio,omitempty"`
	ContVacios     []contenedor `xml:"TitulosTransContVacios>Contenedor,omitempty"`
	Tracks         []string     `xml:"Tracks>Track,omitempty"`
	PesoBrutoTotal string       `xml:"PesoBrutoTotal"`
}

type viaje struct {
	NroViaje      string `xml:"NroViaje"`
	Buque         string `xml:"Buque,omitempty"`
	PuertoOrigen  string `xml:"PuertoOrigen"`
	PuertoDestino string `xml:"PuertoDestino"`
	FechaSalida   string `xml:"FechaSalida,omitempty"`
	CodEmpresa    string `xml:"CodEmpresa"`
	CuitEmpresa   string `xml:"IdFiscalEmpresa"`
}

type titulo struct {
	IdTitTrans   string       `xml:"IdTitTrans"`
	Remitente    string       `xml:"IdFiscalRemitente,omitempty"`
	Consignatar  string       `xml:"IdFiscalConsignatario,omitempty"`
	Descripcion  string       `xml:"DescripcionMercaderia,omitempty"`
	Bultos       int          `xml:"CantBultos"`
	PesoBruto    string       `xml:"PesoBruto"`
	Contenedores []contenedor `xml:"Contenedores>Contenedor,omitempty"`
}

type contenedor struct {
	Numero string `xml:"IdContenedor"`
	Tipo   string `xml:"Tipo,omitempty"`
	Vacio  bool   `xml:"Vacio"`
}

func kg(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// Build renders the operation element for in.Method.
func Build(in Input) (string, error) {
	spec, ok := methods[in.Method]
	if !ok {
		return "", errors.Wrapf(ErrBuild, "unsupported method %q", in.Method)
	}
	if in.Shipment == nil {
		return "", errors.Wrap(ErrBuild, "shipment is required")
	}
	if in.TransactionID == "" {
		return "", errors.Wrap(ErrBuild, "transaction id is required")
	}
	s := in.Shipment
	if spec.needsTitles && len(s.BillsOfLading) == 0 {
		return "", errors.Wrapf(ErrBuild, "%s needs at least one bill of lading", in.Method)
	}
	if spec.needsTracks && len(in.Tracks) == 0 {
		return "", errors.Wrapf(ErrBuild, "%s needs tracks", in.Method)
	}

	op := operation{
		XMLName: xml.Name{Local: in.Method},
		NS:      spec.ns,
	}
	// DNA (Paraguay) authenticates at transport level.
	if spec.ns != nsParaguay {
		if in.SubmitterCUIT == "" {
			return "", errors.Wrap(ErrBuild, "submitter cuit is required")
		}
		op.Auth = &auth{Cuit: in.SubmitterCUIT, TipoAgent: "TRSP", Rol: "TRSP"}
	}

	p := param{
		XMLName:       xml.Name{Local: "arg" + in.Method + "Param"},
		IdTransaccion: in.TransactionID,
		Viaje: viaje{
			NroViaje:      s.VoyageNumber,
			Buque:         s.VesselName,
			PuertoOrigen:  s.OriginPort,
			PuertoDestino: s.DestinationPort,
			CodEmpresa:    s.CompanyCode,
			CuitEmpresa:   s.CompanyTaxID,
		},
		Tracks:         in.Tracks,
		PesoBrutoTotal: kg(s.TotalGrossWeight()),
	}
	if s.DepartureDate != nil {
		p.Viaje.FechaSalida = s.DepartureDate.UTC().Format(time.DateOnly)
	}

	// MIC/DTA references titles through the tracks only.
	if !spec.needsTracks {
		for _, bl := range s.BillsOfLading {
			t := titulo{
				IdTitTrans:  bl.Number,
				Remitente:   bl.ShipperTaxID,
				Consignatar: bl.ConsigneeTaxID,
				Descripcion: bl.Description,
				Bultos:      bl.Packages,
				PesoBruto:   kg(bl.GrossWeightKg),
			}
			for _, c := range bl.Containers {
				if c.Empty {
					continue
				}
				t.Contenedores = append(t.Contenedores, contenedor{Numero: c.Number, Tipo: c.Type})
			}
			p.Titulos = append(p.Titulos, t)
		}
		if in.Method == models.MethodRegistrarTitEnvios {
			for _, c := range s.EmptyContainers() {
				p.ContVacios = append(p.ContVacios, contenedor{Numero: c.Number, Tipo: c.Type, Vacio: true})
			}
		}
	}
	op.Param = p

	b, err := xml.MarshalIndent(op, "", "  ")
	if err != nil {
		return "", errors.Wrapf(ErrBuild, "marshal: %v", err)
	}
	return string(b), nil
}
