package models

import "github.com/pkg/errors"

var ErrUnknownWebserviceType = errors.New("unknown webservice type")

type Country string

const (
	CountryArgentina Country = "AR"
	CountryParaguay  Country = "PY"
)

// ParseCountry accepts both ISO codes and the long names used by the UI ("argentina", "paraguay").
func ParseCountry(s string) (Country, bool) {
	switch s {
	case "AR", "ar", "argentina", "Argentina":
		return CountryArgentina, true
	case "PY", "py", "paraguay", "Paraguay":
		return CountryParaguay, true
	}
	return "", false
}

type WebserviceType string

const (
	WebserviceAnticipada      WebserviceType = "anticipada"
	WebserviceMicDta          WebserviceType = "micdta"
	WebserviceDesconsolidados WebserviceType = "desconsolidados"
	WebserviceTransbordos     WebserviceType = "transbordos"
	WebserviceMane            WebserviceType = "mane"
	WebserviceParaguayCustoms WebserviceType = "paraguay_customs"
)

var webserviceTypes = map[WebserviceType]struct {
	country Country
	prefix  string
}{
	WebserviceAnticipada:      {CountryArgentina, "ANT"},
	WebserviceMicDta:          {CountryArgentina, "MIC"},
	WebserviceDesconsolidados: {CountryArgentina, "DES"},
	WebserviceTransbordos:     {CountryArgentina, "TRB"},
	WebserviceMane:            {CountryArgentina, "MAN"},
	WebserviceParaguayCustoms: {CountryParaguay, "PYC"},
}

func ParseWebserviceType(s string) (WebserviceType, error) {
	t := WebserviceType(s)
	if _, ok := webserviceTypes[t]; !ok {
		return "", errors.Wrapf(ErrUnknownWebserviceType, "%q", s)
	}
	return t, nil
}

func (t WebserviceType) Valid() bool {
	_, ok := webserviceTypes[t]
	return ok
}

// Country is the customs authority the webservice belongs to.
func (t WebserviceType) Country() Country {
	return webserviceTypes[t].country
}

// Prefix is the leading part of generated transaction ids.
func (t WebserviceType) Prefix() string {
	return webserviceTypes[t].prefix
}

// WebserviceTypesFor lists the types whose status gates sending to a country.
func WebserviceTypesFor(c Country) []WebserviceType {
	switch c {
	case CountryArgentina:
		return []WebserviceType{WebserviceAnticipada, WebserviceMicDta}
	case CountryParaguay:
		return []WebserviceType{WebserviceParaguayCustoms}
	}
	return nil
}

// AllWebserviceTypes returns the closed set in a stable order.
func AllWebserviceTypes() []WebserviceType {
	return []WebserviceType{
		WebserviceAnticipada,
		WebserviceMicDta,
		WebserviceDesconsolidados,
		WebserviceTransbordos,
		WebserviceMane,
		WebserviceParaguayCustoms,
	}
}

type Environment string

const (
	EnvironmentTesting    Environment = "testing"
	EnvironmentProduction Environment = "production"
)

// AFIP / DNA method names.
const (
	MethodRegistrarTitEnvios      = "RegistrarTitEnvios"
	MethodRegistrarMicDta         = "RegistrarMicDta"
	MethodRegistrarViaje          = "RegistrarViaje"
	MethodRegistrarDesconsolidado = "RegistrarTitulosDesconsolidador"
	MethodRegistrarTransbordo     = "RegistrarTransbordo"
	MethodRegistrarMane           = "RegistrarManifiestoExportacion"
	MethodEnviarManifiestoPY      = "EnviarManifiesto"
)
