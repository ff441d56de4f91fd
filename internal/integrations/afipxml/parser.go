package afipxml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/BearBump/CustomsBox/internal/models"
	"github.com/pkg/errors"
)

// ParsedTrack is one TRACK issued by the authority.
type ParsedTrack struct {
	Number    string
	Reference string
	Type      models.TrackType
}

type Response struct {
	Method             string
	ExternalReference  string
	ConfirmationNumber string
	Tracks             []ParsedTrack
	Errors             []string
}

// trackEntry accepts both <string>T001</string> and
// <Track><Numero>T001</Numero><Referencia>..</Referencia></Track>.
type trackEntry struct {
	Value     string `xml:",chardata"`
	Number    string `xml:"Numero"`
	Reference string `xml:"Referencia"`
}

func (e trackEntry) number() string {
	if n := strings.TrimSpace(e.Number); n != "" {
		return n
	}
	return strings.TrimSpace(e.Value)
}

// trackList is one TracksEnv/TracksContVacios element. The authority either wraps
// the tracks in children or repeats the element once per track with the number inline.
type trackList struct {
	Value     string       `xml:",chardata"`
	Number    string       `xml:"Numero"`
	Reference string       `xml:"Referencia"`
	Items     []trackEntry `xml:",any"`
}

func entries(lists []trackList) []trackEntry {
	var out []trackEntry
	for _, l := range lists {
		if len(l.Items) > 0 {
			out = append(out, l.Items...)
			continue
		}
		out = append(out, trackEntry{Value: l.Value, Number: l.Number, Reference: l.Reference})
	}
	return out
}

type result struct {
	IdTransaccion    string      `xml:"IdTransaccion"`
	NroRegistro      string      `xml:"NroRegistro"`
	NroConfirmacion  string      `xml:"NroConfirmacion"`
	TracksEnv        []trackList `xml:"TracksEnv"`
	TracksContVacios []trackList `xml:"TracksContVacios"`
	Errores          []struct {
		Codigo      string `xml:"Codigo"`
		Descripcion string `xml:"Descripcion"`
	} `xml:"ListaErrores>DetalleError"`
}

type responseEl struct {
	XMLName xml.Name
	Result  result `xml:",any"`
}

// ParseResponse reads the soap:Body content of a {Method}Response.
func ParseResponse(method string, body []byte) (*Response, error) {
	var el responseEl
	if err := xml.NewDecoder(bytes.NewReader(body)).Decode(&el); err != nil {
		return nil, errors.Wrap(err, "decode response")
	}
	if want := method + "Response"; el.XMLName.Local != want {
		return nil, errors.Errorf("unexpected response element %q, want %q", el.XMLName.Local, want)
	}

	r := el.Result
	out := &Response{
		Method:             method,
		ExternalReference:  strings.TrimSpace(r.NroRegistro),
		ConfirmationNumber: strings.TrimSpace(r.NroConfirmacion),
	}
	if out.ExternalReference == "" {
		out.ExternalReference = strings.TrimSpace(r.IdTransaccion)
	}

	out.Tracks = append(out.Tracks, collect(entries(r.TracksEnv), models.TrackTypeEnvio, "ENV")...)
	out.Tracks = append(out.Tracks, collect(entries(r.TracksContVacios), models.TrackTypeContenedorVacio, "CONT_VACIO")...)

	for _, e := range r.Errores {
		msg := strings.TrimSpace(e.Descripcion)
		if c := strings.TrimSpace(e.Codigo); c != "" {
			msg = c + ": " + msg
		}
		out.Errors = append(out.Errors, msg)
	}
	return out, nil
}

// collect numbers references per type from 1 when the authority leaves them out.
func collect(items []trackEntry, typ models.TrackType, refPrefix string) []ParsedTrack {
	var out []ParsedTrack
	n := 0
	for _, it := range items {
		num := it.number()
		if num == "" {
			continue
		}
		n++
		ref := strings.TrimSpace(it.Reference)
		if ref == "" {
			ref = fmt.Sprintf("%s_%d", refPrefix, n)
		}
		out = append(out, ParsedTrack{Number: num, Reference: ref, Type: typ})
	}
	return out
}
