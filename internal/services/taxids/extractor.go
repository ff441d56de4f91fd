package taxids

import (
	"regexp"
	"sort"

	"github.com/BearBump/CustomsBox/internal/models"
)

const (
	MethodContextMatching = "context_matching"
	MethodPatternMatching = "pattern_matching"
)

const contextBoost = 1.1

type Candidate struct {
	TaxID            string         `json:"tax_id"`
	Country          models.Country `json:"country"`
	Raw              string         `json:"raw"`
	Formatted        string         `json:"formatted,omitempty"`
	Valid            bool           `json:"valid"`
	Reason           string         `json:"reason,omitempty"`
	Confidence       float64        `json:"confidence"`
	ExtractionMethod string         `json:"extraction_method"`
	Position         int            `json:"position"`
}

type Suggestion struct {
	TaxID      string         `json:"tax_id"`
	Country    models.Country `json:"country"`
	Formatted  string         `json:"formatted"`
	Confidence float64        `json:"confidence"`
	Reason     string         `json:"reason"`
}

type pattern struct {
	re        *regexp.Regexp
	country   models.Country
	formatted bool
	context   bool
}

// Order matters: a span claimed by an earlier pattern is not re-read by later ones,
// so "20-12345678-6" never also yields the RUC-looking tail "12345678-6".
var patterns = []pattern{
	{re: regexp.MustCompile(`(?i)\bCUI[TL]\s*(?:N[°ºo]\.?\s*)?[:#]?\s*(\d{2}[-\s./]?\d{8}[-\s./]?\d)\b`), country: models.CountryArgentina, formatted: true, context: true},
	{re: regexp.MustCompile(`(?i)\bRUC\s*(?:N[°ºo]\.?\s*)?[:#]?\s*(\d{6,8}[-\s.]?\d)\b`), country: models.CountryParaguay, formatted: true, context: true},
	{re: regexp.MustCompile(`\b(\d{2}-\d{8}-\d)\b`), country: models.CountryArgentina, formatted: true},
	{re: regexp.MustCompile(`\b(\d{2}[\s./]\d{8}[\s./]\d)\b`), country: models.CountryArgentina, formatted: true},
	{re: regexp.MustCompile(`\b(\d{6,8}-\d)\b`), country: models.CountryParaguay, formatted: true},
	{re: regexp.MustCompile(`\b(\d{11})\b`), country: models.CountryArgentina},
	{re: regexp.MustCompile(`\b(\d{8,9})\b`), country: models.CountryParaguay},
}

type span struct{ start, end int }

func overlaps(spans []span, s span) bool {
	for _, o := range spans {
		if s.start < o.end && o.start < s.end {
			return true
		}
	}
	return false
}

func baseConfidence(valid, formatted bool) float64 {
	switch {
	case valid && formatted:
		return 0.95
	case valid:
		return 0.9
	case formatted:
		return 0.5
	default:
		return 0.4
	}
}

// Extract scans free text for CUIT/RUC candidates. Invalid candidates are kept
// with low confidence so the UI can offer "did you mean" hints.
func Extract(text string) []Candidate {
	type key struct {
		country models.Country
		taxID   string
	}
	var claimed []span
	best := map[key]Candidate{}

	for _, p := range patterns {
		for _, m := range p.re.FindAllStringSubmatchIndex(text, -1) {
			sp := span{m[2], m[3]}
			if overlaps(claimed, sp) {
				continue
			}
			claimed = append(claimed, sp)

			raw := text[sp.start:sp.end]
			var v Validation
			if p.country == models.CountryArgentina {
				v = ValidateArgentineCUIT(raw)
			} else {
				v = ValidateParaguayanRUC(raw)
			}

			c := Candidate{
				TaxID:            v.Clean,
				Country:          p.country,
				Raw:              raw,
				Formatted:        v.Formatted,
				Valid:            v.Valid,
				Reason:           v.Reason,
				Confidence:       baseConfidence(v.Valid, p.formatted),
				ExtractionMethod: MethodPatternMatching,
				Position:         sp.start,
			}
			if p.context {
				c.ExtractionMethod = MethodContextMatching
				c.Confidence = min(c.Confidence*contextBoost, 1.0)
			}

			k := key{c.Country, c.TaxID}
			if prev, ok := best[k]; !ok || c.Confidence > prev.Confidence {
				best[k] = c
			}
		}
	}

	out := make([]Candidate, 0, len(best))
	for _, c := range best {
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].Position < out[j].Position
	})
	return out
}

// SuggestCorrection completes a tax id that is missing its check digit:
// 10 digits -> CUIT, 7 or 8 digits -> RUC.
func SuggestCorrection(partial string) []Suggestion {
	clean := digitsOnly(partial)
	var out []Suggestion

	switch len(clean) {
	case 10:
		if _, ok := cuitPrefixes[clean[:2]]; ok {
			full := clean + string(rune('0'+cuitCheckDigit(clean)))
			out = append(out, Suggestion{
				TaxID:      full,
				Country:    models.CountryArgentina,
				Formatted:  formatCUIT(full),
				Confidence: 0.9,
				Reason:     "missing_check_digit",
			})
		}
	case 7, 8:
		check := rucCheckDigit(clean)
		conf := 0.85
		if len(clean) == 8 {
			conf = 0.8
		}
		out = append(out, Suggestion{
			TaxID:      clean + string(rune('0'+check)),
			Country:    models.CountryParaguay,
			Formatted:  formatRUC(clean, check),
			Confidence: conf,
			Reason:     "missing_check_digit",
		})
	}
	return out
}
