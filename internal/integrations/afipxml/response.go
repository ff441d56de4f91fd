package afipxml

import (
	"bytes"
	"encoding/xml"

	"github.com/BearBump/CustomsBox/internal/models"
	"github.com/pkg/errors"
)

// Summary is what an emulator needs to know about a received operation.
type Summary struct {
	Method          string
	TransactionID   string
	Titles          []string
	EmptyContainers []string
	Tracks          []string
}

type inboundOp struct {
	XMLName xml.Name
	Param   struct {
		IdTransaccion string `xml:"IdTransaccion"`
		Titulos       []struct {
			IdTitTrans string `xml:"IdTitTrans"`
		} `xml:"TitulosTransEnvios>TitTransEnvio"`
		ContVacios []struct {
			Numero string `xml:"IdContenedor"`
		} `xml:"TitulosTransContVacios>Contenedor"`
		Tracks []string `xml:"Tracks>Track"`
	} `xml:",any"`
}

// Summarize reads back an operation element produced by Build.
func Summarize(body []byte) (*Summary, error) {
	var op inboundOp
	if err := xml.NewDecoder(bytes.NewReader(body)).Decode(&op); err != nil {
		return nil, errors.Wrap(err, "decode operation")
	}
	s := &Summary{
		Method:        op.XMLName.Local,
		TransactionID: op.Param.IdTransaccion,
		Tracks:        op.Param.Tracks,
	}
	for _, t := range op.Param.Titulos {
		s.Titles = append(s.Titles, t.IdTitTrans)
	}
	for _, c := range op.Param.ContVacios {
		s.EmptyContainers = append(s.EmptyContainers, c.Numero)
	}
	return s, nil
}

type outTrack struct {
	Numero     string `xml:"Numero"`
	Referencia string `xml:"Referencia,omitempty"`
}

type outError struct {
	Codigo      string `xml:"Codigo"`
	Descripcion string `xml:"Descripcion"`
}

type outResult struct {
	XMLName          xml.Name
	IdTransaccion    string     `xml:"IdTransaccion"`
	NroRegistro      string     `xml:"NroRegistro,omitempty"`
	NroConfirmacion  string     `xml:"NroConfirmacion,omitempty"`
	TracksEnv        []outTrack `xml:"TracksEnv>Track,omitempty"`
	TracksContVacios []outTrack `xml:"TracksContVacios>Track,omitempty"`
	Errores          []outError `xml:"ListaErrores>DetalleError,omitempty"`
}

type outResponse struct {
	XMLName xml.Name
	Result  outResult
}

// RenderResponse produces a {Method}Response element that ParseResponse understands.
// References are left out so the parser numbers them.
func RenderResponse(transactionID string, r Response) ([]byte, error) {
	res := outResult{
		XMLName:         xml.Name{Local: r.Method + "Result"},
		IdTransaccion:   transactionID,
		NroRegistro:     r.ExternalReference,
		NroConfirmacion: r.ConfirmationNumber,
	}
	for _, t := range r.Tracks {
		ot := outTrack{Numero: t.Number}
		if t.Type == models.TrackTypeContenedorVacio {
			res.TracksContVacios = append(res.TracksContVacios, ot)
		} else {
			res.TracksEnv = append(res.TracksEnv, ot)
		}
	}
	for _, e := range r.Errors {
		res.Errores = append(res.Errores, outError{Codigo: "ERR", Descripcion: e})
	}

	b, err := xml.Marshal(outResponse{XMLName: xml.Name{Local: r.Method + "Response"}, Result: res})
	return b, errors.Wrap(err, "marshal response")
}
