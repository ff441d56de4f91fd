package taxids

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/BearBump/CustomsBox/internal/cache"
	"github.com/BearBump/CustomsBox/internal/models"
	"github.com/pkg/errors"
)

// Failure reasons. They double as the stable error codes returned to callers.
const (
	ReasonInvalidLength      = "InvalidLength"
	ReasonInvalidPrefix      = "InvalidPrefix"
	ReasonInvalidCheckDigit  = "InvalidCheckDigit"
	ReasonUnsupportedCountry = "UnsupportedCountry"
)

var (
	ErrInvalidLength      = errors.New(ReasonInvalidLength)
	ErrInvalidPrefix      = errors.New(ReasonInvalidPrefix)
	ErrInvalidCheckDigit  = errors.New(ReasonInvalidCheckDigit)
	ErrUnsupportedCountry = errors.New(ReasonUnsupportedCountry)
)

var reasonErrors = map[string]error{
	ReasonInvalidLength:      ErrInvalidLength,
	ReasonInvalidPrefix:      ErrInvalidPrefix,
	ReasonInvalidCheckDigit:  ErrInvalidCheckDigit,
	ReasonUnsupportedCountry: ErrUnsupportedCountry,
}

// DefaultCacheTTL bounds how long a validation result is memoized.
const DefaultCacheTTL = time.Hour

var cuitPrefixes = map[string]struct{}{
	"20": {}, "23": {}, "24": {}, "27": {}, "30": {}, "33": {}, "34": {},
}

var cuitMultipliers = [10]int{5, 4, 3, 2, 7, 6, 5, 4, 3, 2}

const rucBaseWidth = 7

type Validation struct {
	Country   models.Country `json:"country"`
	Input     string         `json:"input"`
	Clean     string         `json:"clean"`
	Formatted string         `json:"formatted,omitempty"`
	Valid     bool           `json:"valid"`
	Reason    string         `json:"reason,omitempty"`
}

// Err returns the sentinel matching Reason, or nil for valid results.
func (v Validation) Err() error {
	if v.Valid {
		return nil
	}
	if err, ok := reasonErrors[v.Reason]; ok {
		return err
	}
	return errors.New(v.Reason)
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// modCheckDigit applies the shared remainder rule: r<2 -> r, otherwise 11-r.
func modCheckDigit(sum int) int {
	r := sum % 11
	if r < 2 {
		return r
	}
	return 11 - r
}

func cuitCheckDigit(first10 string) int {
	sum := 0
	for i := 0; i < 10; i++ {
		sum += int(first10[i]-'0') * cuitMultipliers[i]
	}
	return modCheckDigit(sum)
}

// rucCheckDigit weights the zero-padded base left to right with [2,3,4,5,6,7,2].
// An 8-digit base keeps the cycle going, so its last digit gets 3.
func rucCheckDigit(base string) int {
	base = leftPad(base, rucBaseWidth)
	sum := 0
	for i := 0; i < len(base); i++ {
		sum += int(base[i]-'0') * (2 + i%6)
	}
	return modCheckDigit(sum)
}

func leftPad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}

func formatCUIT(clean string) string {
	return clean[:2] + "-" + clean[2:10] + "-" + clean[10:]
}

func formatRUC(base string, check int) string {
	return fmt.Sprintf("%s-%d", leftPad(base, rucBaseWidth), check)
}

func ValidateArgentineCUIT(id string) Validation {
	clean := digitsOnly(id)
	v := Validation{Country: models.CountryArgentina, Input: id, Clean: clean}

	if len(clean) != 11 {
		v.Reason = ReasonInvalidLength
		return v
	}
	if _, ok := cuitPrefixes[clean[:2]]; !ok {
		v.Reason = ReasonInvalidPrefix
		return v
	}
	if int(clean[10]-'0') != cuitCheckDigit(clean[:10]) {
		v.Reason = ReasonInvalidCheckDigit
		return v
	}

	v.Valid = true
	v.Formatted = formatCUIT(clean)
	return v
}

func ValidateParaguayanRUC(id string) Validation {
	clean := digitsOnly(id)
	v := Validation{Country: models.CountryParaguay, Input: id, Clean: clean}

	if len(clean) < 8 || len(clean) > 9 {
		v.Reason = ReasonInvalidLength
		return v
	}
	base := clean[:len(clean)-1]
	check := rucCheckDigit(base)
	if int(clean[len(clean)-1]-'0') != check {
		v.Reason = ReasonInvalidCheckDigit
		return v
	}

	v.Valid = true
	v.Formatted = formatRUC(base, check)
	return v
}

// Validator memoizes validation results in a shared cache.
type Validator struct {
	cache cache.BytesCache
	ttl   time.Duration
}

func NewValidator(c cache.BytesCache, ttl time.Duration) *Validator {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Validator{cache: c, ttl: ttl}
}

func (v *Validator) Validate(ctx context.Context, country models.Country, raw string) (Validation, error) {
	var compute func(string) Validation
	switch country {
	case models.CountryArgentina:
		compute = ValidateArgentineCUIT
	case models.CountryParaguay:
		compute = ValidateParaguayanRUC
	default:
		return Validation{}, errors.Wrapf(ErrUnsupportedCountry, "%q", country)
	}

	key := cacheKey(country, raw)
	if v.cache != nil {
		if b, ok, err := v.cache.Get(ctx, key); err == nil && ok {
			var cached Validation
			if json.Unmarshal(b, &cached) == nil {
				return cached, nil
			}
		}
	}

	res := compute(raw)
	if v.cache != nil {
		b, _ := json.Marshal(res)
		_ = v.cache.Set(ctx, key, b, v.ttl)
	}
	return res, nil
}

// Invalidate drops a memoized result so the next Validate recomputes it.
func (v *Validator) Invalidate(ctx context.Context, country models.Country, raw string) error {
	if v.cache == nil {
		return nil
	}
	return v.cache.Delete(ctx, cacheKey(country, raw))
}

func cacheKey(country models.Country, raw string) string {
	return fmt.Sprintf("taxid:%s:%s", country, raw)
}
