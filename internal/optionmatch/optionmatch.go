// File: internal/optionmatch/optionmatch.go

// Package optionmatch maps desired values onto the fixed option sets of
// select and radio controls. Matching is tiered: exact value, exact visible
// text, then substring in either direction, each comparison case-insensitive.
package optionmatch

import (
	"strings"

	"github.com/xkilldash9x/formpilot-cli/api/schemas"
)

// placeholderKeywords mark options that exist only to prompt the user.
var placeholderKeywords = []string{"select", "choose", "pick", "---"}

// IsPlaceholder reports whether an option is a non-choice like
// "-- Select a country --" or an empty value.
func IsPlaceholder(o schemas.Option) bool {
	if strings.TrimSpace(o.Value) == "" && strings.TrimSpace(o.Text) == "" {
		return true
	}
	text := strings.ToLower(o.Text)
	for _, kw := range placeholderKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// Match resolves a desired value against the option set. The returned option
// is the one to submit; ok is false when nothing plausibly matches.
func Match(desired string, options []schemas.Option) (schemas.Option, bool) {
	want := strings.ToLower(strings.TrimSpace(desired))
	if want == "" || len(options) == 0 {
		return schemas.Option{}, false
	}

	// Tier 1: exact value.
	for _, o := range options {
		if strings.ToLower(o.Value) == want {
			return o, true
		}
	}
	// Tier 2: exact visible text.
	for _, o := range options {
		if strings.ToLower(strings.TrimSpace(o.Text)) == want {
			return o, true
		}
	}
	// Tier 3: substring in either direction, skipping placeholders so a
	// desired value of "select" never lands on "-- Select --".
	for _, o := range options {
		if IsPlaceholder(o) {
			continue
		}
		val := strings.ToLower(o.Value)
		text := strings.ToLower(o.Text)
		if containsEither(text, want) || containsEither(val, want) {
			return o, true
		}
	}
	return schemas.Option{}, false
}

func containsEither(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// categoryPreference lists preferred picks for common dropdown categories.
// Entries are tried in order against the option set.
type categoryPreference struct {
	keywords []string
	picks    []string
}

var preferences = []categoryPreference{
	{[]string{"country"}, []string{"united states", "usa", "us", "canada", "uk"}},
	{[]string{"state", "province"}, []string{"california", "ca", "new york", "ny", "texas"}},
	{[]string{"title", "salutation", "prefix"}, []string{"mr", "ms", "mrs", "dr"}},
	{[]string{"gender", "sex"}, []string{"prefer not", "other", "female", "male"}},
	{[]string{"age"}, []string{"25-34", "26-35", "18-24"}},
}

// DefaultFor picks a sensible option when no desired value exists. The field
// text (label, name, id joined) steers category preferences; otherwise the
// first non-placeholder option wins, and the very first as a last resort.
func DefaultFor(fieldText string, options []schemas.Option) (schemas.Option, bool) {
	if len(options) == 0 {
		return schemas.Option{}, false
	}
	lowered := strings.ToLower(fieldText)
	for _, pref := range preferences {
		if !matchesAnyKeyword(lowered, pref.keywords) {
			continue
		}
		for _, pick := range pref.picks {
			if o, ok := Match(pick, options); ok {
				return o, true
			}
		}
	}
	// An empty value submits nothing even when the visible text looks real,
	// so the default scan requires a non-empty value too.
	for _, o := range options {
		if strings.TrimSpace(o.Value) == "" || IsPlaceholder(o) {
			continue
		}
		return o, true
	}
	return options[0], true
}

func matchesAnyKeyword(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
