// Package validate holds the pure domain-identifier validators: the NHS
// number Modulus-11 check and UK postcode normalization. No dependencies,
// no side effects; empty or malformed input is reported as invalid, never
// panicked on.
package validate

import (
	"regexp"
	"strings"
)

// ukPostcodeOutward matches the recognized outward codes once spacing is
// removed: A9, A99, AA9, AA99, A9A, AA9A. The inward code is always
// digit-letter-letter.
// Formats: A9 9AA, A99 9AA, AA9 9AA, AA99 9AA, A9A 9AA, AA9A 9AA.
var ukPostcodeRe = regexp.MustCompile(`^(?:[A-Z][0-9]{1,2}|[A-Z]{2}[0-9]{1,2}|[A-Z][0-9][A-Z]|[A-Z]{2}[0-9][A-Z])[0-9][A-Z]{2}$`)

// IsValidNHSNumber reports whether the input is a valid NHS number under the
// Modulus-11 algorithm (https://www.datadictionary.nhs.uk/attributes/nhs_number.html).
// Non-digit separators are stripped before checking; after stripping the
// input must be exactly 10 digits.
//
// The first nine digits are weighted 10 down to 2 and summed. The check
// digit is 11 minus the sum modulo 11, with 11 treated as 0; a computed
// check of 10 makes the number invalid outright. The number is valid only
// when the computed check digit equals the literal tenth digit.
func IsValidNHSNumber(nhsNumber string) bool {
	cleaned := stripNonDigits(nhsNumber)
	if len(cleaned) != 10 {
		return false
	}

	sum := 0
	for i := 0; i < 9; i++ {
		sum += int(cleaned[i]-'0') * (10 - i)
	}
	check := (11 - sum%11) % 11

	return check != 10 && check == int(cleaned[9]-'0')
}

// FormatNHSNumber canonicalizes an NHS number to its bare 10-digit form.
// The second return is false when the input fails validation.
func FormatNHSNumber(nhsNumber string) (string, bool) {
	if !IsValidNHSNumber(nhsNumber) {
		return "", false
	}
	return stripNonDigits(nhsNumber), true
}

// IsValidUKPostcode reports whether the input matches a recognized UK
// postcode format. Spaces are ignored and matching is case-insensitive;
// other separators are not accepted.
func IsValidUKPostcode(postcode string) bool {
	cleaned := cleanPostcode(postcode)
	return ukPostcodeRe.MatchString(cleaned)
}

// FormatUKPostcode canonicalizes a UK postcode: uppercase, one space before
// the 3-character inward code, nothing else. The canonical form of a
// canonical form is itself. The second return is false when the input fails
// validation.
func FormatUKPostcode(postcode string) (string, bool) {
	cleaned := cleanPostcode(postcode)
	if !ukPostcodeRe.MatchString(cleaned) {
		return "", false
	}
	return cleaned[:len(cleaned)-3] + " " + cleaned[len(cleaned)-3:], true
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

func cleanPostcode(s string) string {
	return strings.ToUpper(strings.ReplaceAll(s, " ", ""))
}
