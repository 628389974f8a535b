// Package normalizer repairs raw phone input into canonical international
// form before anything is queued or validated.
package normalizer

import (
	"strings"

	"github.com/bjo163/wablast/internal/domain"
)

const (
	minLength = 10
	maxLength = 15
)

// Normalizer canonicalizes phone numbers against a country prefix.
type Normalizer struct {
	prefix string
}

func New(countryPrefix string) *Normalizer {
	if countryPrefix == "" {
		countryPrefix = "62"
	}
	return &Normalizer{prefix: countryPrefix}
}

// Normalize returns the canonical form of raw or a ValidationError.
//
// Repair rules, applied to the digit string after stripping everything
// non-numeric:
//   - leading "0" is replaced with the country prefix
//   - a "+<prefix>" form keeps its digits ("+" was already stripped)
//   - a string already starting with the prefix is kept
//   - any other digit string longer than five digits gets the prefix
//     prepended
//
// The result is accepted only when it is 10 to 15 digits long and starts
// with the prefix.
func (n *Normalizer) Normalize(raw string) (string, error) {
	digits := stripNonDigits(raw)
	if digits == "" {
		return "", domain.NewValidationError("number", "empty number")
	}

	switch {
	case strings.HasPrefix(digits, "0"):
		digits = n.prefix + digits[1:]
	case strings.HasPrefix(digits, n.prefix):
		// already canonical
	case len(digits) > 5:
		digits = n.prefix + digits
	}

	if len(digits) < minLength || len(digits) > maxLength {
		return "", domain.NewValidationError("number", "invalid length after normalization")
	}
	if !strings.HasPrefix(digits, n.prefix) {
		return "", domain.NewValidationError("number", "missing country prefix")
	}
	return digits, nil
}

// NormalizeBatch normalizes every contact, splitting the batch into
// accepted and rejected rows. Order and duplicates are preserved;
// rejections keep the original row index.
func (n *Normalizer) NormalizeBatch(contacts []domain.Contact) (accepted []domain.Contact, rejected []domain.RejectedContact) {
	for i, ct := range contacts {
		num, err := n.Normalize(ct.Number)
		if err != nil {
			rejected = append(rejected, domain.RejectedContact{
				Index:  i,
				Number: ct.Number,
				Reason: err.Error(),
			})
			continue
		}
		ct.Number = num
		accepted = append(accepted, ct)
	}
	return accepted, rejected
}

func stripNonDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
