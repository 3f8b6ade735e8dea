package lookup

import (
	"strings"
	"time"
)

// KeyNormalizer canonicalizes entity keys before comparison so that the
// same census tract spelled "1790701001", " 1790701001 " or "1790701001.0"
// joins. PadWidth left-pads all-digit keys with zeros when positive.
type KeyNormalizer struct {
	PadWidth int
}

// Normalize returns the canonical form of key.
func (n KeyNormalizer) Normalize(key string) string {
	k := strings.ToUpper(strings.TrimSpace(key))
	if k == "" {
		return ""
	}
	if i := strings.IndexByte(k, '.'); i > 0 && allDigits(k[:i]) && strings.Trim(k[i+1:], "0") == "" {
		k = k[:i]
	}
	if n.PadWidth > 0 && allDigits(k) && len(k) < n.PadWidth {
		k = strings.Repeat("0", n.PadWidth-len(k)) + k
	}
	return k
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05.000",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.000",
	"02/01/2006",
	"02/01/2006 15:04:05",
	"2006/01/02",
	"02-01-2006",
}

// ParseYear extracts a year from an integer ("2018"), an integral float
// ("2018.0"), or a date/datetime. Ambiguous day/month order does not matter
// because only the year is kept.
func ParseYear(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if y, ok := parseIntegral(s); ok {
		if y < 1000 || y > 9999 {
			return 0, false
		}
		return y, true
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Year(), true
		}
	}
	// US-style month-first dates still carry the year in the last field.
	if parts := strings.Split(s, "/"); len(parts) == 3 {
		if f := strings.Fields(parts[2]); len(f) > 0 {
			if y, ok := parseIntegral(f[0]); ok && y >= 1000 && y <= 9999 {
				return y, true
			}
		}
	}
	return 0, false
}

// parseIntegral parses "2018" or "2018.0".
func parseIntegral(s string) (int, bool) {
	if i := strings.IndexByte(s, '.'); i > 0 {
		if strings.Trim(s[i+1:], "0") != "" {
			return 0, false
		}
		s = s[:i]
	}
	if !allDigits(s) {
		return 0, false
	}
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
		if n > 1_000_000 {
			return 0, false
		}
	}
	return n, true
}
