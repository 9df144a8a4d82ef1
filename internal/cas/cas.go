// Package cas extracts and validates CAS Registry Numbers from chemical
// name text.
package cas

import (
	"regexp"
	"strings"
)

// Pattern matches a CAS Registry Number: 2-7 digits, hyphen, 2 digits,
// hyphen, 1 check digit. Example: 71-43-2 (benzene).
var Pattern = regexp.MustCompile(`\b(\d{2,7}-\d{2}-\d)\b`)

// Extract returns the first valid CAS number found in text, or "" if none.
func Extract(text string) string {
	for _, m := range Pattern.FindAllString(text, -1) {
		if Validate(m) {
			return m
		}
	}
	return ""
}

// ExtractAll returns every valid CAS number found in text.
func ExtractAll(text string) []string {
	var out []string
	for _, m := range Pattern.FindAllString(text, -1) {
		if Validate(m) {
			out = append(out, m)
		}
	}
	return out
}

// Validate checks a CAS number's format and check digit. The check digit
// is the weighted sum, right to left, of every digit but the last, mod 10.
func Validate(cas string) bool {
	if !Pattern.MatchString(cas) {
		return false
	}

	digits := strings.ReplaceAll(cas, "-", "")
	if len(digits) < 5 {
		return false
	}

	checkDigit := int(digits[len(digits)-1] - '0')

	total := 0
	numberPart := digits[:len(digits)-1]
	for i := 0; i < len(numberPart); i++ {
		// Position counted from the right, starting at 1.
		pos := len(numberPart) - i
		d := int(numberPart[i] - '0')
		total += d * pos
	}

	return checkDigit == total%10
}

// Format accepts a CAS number with or without hyphens and returns the
// standard hyphenated form, or "" if the result would not validate.
func Format(cas string) string {
	digits := strings.ReplaceAll(cas, "-", "")
	if len(digits) < 5 {
		return ""
	}

	check := digits[len(digits)-1:]
	second := digits[len(digits)-3 : len(digits)-1]
	first := digits[:len(digits)-3]

	formatted := first + "-" + second + "-" + check
	if !Validate(formatted) {
		return ""
	}
	return formatted
}

// IsFormat reports whether text matches the CAS number shape without
// checking the check digit.
func IsFormat(text string) bool {
	return Pattern.MatchString(strings.TrimSpace(text))
}
