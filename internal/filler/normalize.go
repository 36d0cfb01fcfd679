// File: internal/filler/normalize.go
package filler

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	usDateRe  = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)
	isoDateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	digitsRe  = regexp.MustCompile(`^\d{3,4}$`)
	clockRe   = regexp.MustCompile(`^\d{1,2}:\d{2}$`)
)

// NormalizeDate converts MM/DD/YYYY into the YYYY-MM-DD shape date inputs
// expect. ISO dates pass through untouched, so the function is idempotent;
// anything unrecognized is returned as-is.
func NormalizeDate(v string) string {
	v = strings.TrimSpace(v)
	if isoDateRe.MatchString(v) {
		return v
	}
	if m := usDateRe.FindStringSubmatch(v); m != nil {
		return fmt.Sprintf("%s-%s-%s", m[3], pad2(m[1]), pad2(m[2]))
	}
	return v
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

// NormalizeTime converts bare 3-4 digit clock values into HH:MM. "930"
// becomes "09:30", "1430" becomes "14:30". Values already carrying a colon
// get zero-padded hours; anything unrecognized is returned as-is.
func NormalizeTime(v string) string {
	v = strings.TrimSpace(v)
	if clockRe.MatchString(v) {
		if len(v) == 4 { // H:MM
			return "0" + v
		}
		return v
	}
	if digitsRe.MatchString(v) {
		if len(v) == 3 {
			v = "0" + v
		}
		return v[:2] + ":" + v[2:]
	}
	return v
}

// uncheckedValues are the spellings that mean "leave the box unticked".
var uncheckedValues = map[string]struct{}{
	"false": {},
	"0":     {},
	"no":    {},
	"off":   {},
	"":      {},
}

// CheckboxTruthy maps a resolved value onto a checkbox state. Everything
// except the explicit unchecked spellings counts as checked.
func CheckboxTruthy(v string) bool {
	_, unchecked := uncheckedValues[strings.ToLower(strings.TrimSpace(v))]
	return !unchecked
}
