// File: internal/resolver/generators.go
package resolver

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"github.com/xkilldash9x/formpilot-cli/api/schemas"
	"github.com/xkilldash9x/formpilot-cli/internal/optionmatch"
)

// Deterministic defaults per semantic type. These back the rule tier when
// generation was skipped or came up empty.
var ruleDefaults = map[schemas.SemanticType]string{
	schemas.TypeEmail:    "test.user@example.com",
	schemas.TypePhone:    "555-123-4567",
	schemas.TypeDate:     "1990-01-15",
	schemas.TypeTime:     "10:30",
	schemas.TypeURL:      "https://example.com",
	schemas.TypeName:     "Alex Johnson",
	schemas.TypeText:     "Sample text response",
	schemas.TypeTextarea: "This is a sample response generated for form testing purposes.",
}

const (
	passwordUppers  = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	passwordLowers  = "abcdefghijkmnpqrstuvwxyz"
	passwordDigits  = "23456789"
	passwordSymbols = "!@#$%^&*"
)

// ruleValue produces a deterministic-shape value for one field. ok is false
// only when the semantic type has no rule at all.
func (r *Resolver) ruleValue(f schemas.FieldSchema, semantic schemas.SemanticType) (string, bool) {
	switch semantic {
	case schemas.TypeSelect, schemas.TypeRadio:
		if o, ok := optionmatch.DefaultFor(fieldText(f), f.Options); ok {
			return o.Value, true
		}
		return "", false
	case schemas.TypeCheckbox:
		return strconv.FormatBool(r.checkboxChoice(f)), true
	case schemas.TypeFile:
		return r.attachmentPath, true
	case schemas.TypePassword:
		return r.generatePassword(f.Constraints), true
	case schemas.TypeNumber:
		return numberWithin(f.Constraints), true
	default:
		v, ok := ruleDefaults[semantic]
		if !ok {
			return "", false
		}
		return fitLength(v, f.Constraints), true
	}
}

// checkboxChoice decides whether a checkbox should be ticked. Consent-style
// boxes are always ticked, promotional ones are a coin flip, and anything
// else leans two-to-one toward ticked.
func (r *Resolver) checkboxChoice(f schemas.FieldSchema) bool {
	text := strings.ToLower(fieldText(f))
	for _, kw := range []string{"agree", "accept", "terms", "privacy", "policy", "required", "mandatory"} {
		if strings.Contains(text, kw) {
			return true
		}
	}
	for _, kw := range []string{"newsletter", "marketing", "promotional"} {
		if strings.Contains(text, kw) {
			return r.rng.Intn(2) == 0
		}
	}
	return r.rng.Intn(3) < 2
}

// generatePassword builds a password honoring length constraints, with at
// least two uppercase letters, two digits and two symbols mixed in.
func (r *Resolver) generatePassword(c schemas.Constraints) string {
	minLen := c.MinLength
	if minLen < 8 {
		minLen = 8
	}
	maxLen := c.MaxLength
	if maxLen <= 0 || maxLen > 20 {
		maxLen = 20
	}
	if maxLen < minLen {
		maxLen = minLen
	}
	length := minLen + r.rng.Intn(maxLen-minLen+1)

	chars := make([]byte, 0, length)
	for i := 0; i < 2; i++ {
		chars = append(chars, passwordUppers[r.rng.Intn(len(passwordUppers))])
		chars = append(chars, passwordDigits[r.rng.Intn(len(passwordDigits))])
		chars = append(chars, passwordSymbols[r.rng.Intn(len(passwordSymbols))])
	}
	for len(chars) < length {
		chars = append(chars, passwordLowers[r.rng.Intn(len(passwordLowers))])
	}
	shuffle(r.rng, chars)
	return string(chars)
}

func shuffle(rng *rand.Rand, b []byte) {
	for i := len(b) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		b[i], b[j] = b[j], b[i]
	}
}

// numberWithin picks a value inside declared numeric bounds, defaulting to 42.
func numberWithin(c schemas.Constraints) string {
	min, hasMin := parseInt(c.Min)
	max, hasMax := parseInt(c.Max)
	switch {
	case hasMin && hasMax:
		if max < min {
			return strconv.Itoa(min)
		}
		return strconv.Itoa(min + (max-min)/2)
	case hasMin:
		return strconv.Itoa(min)
	case hasMax:
		if max < 42 {
			return strconv.Itoa(max)
		}
		return "42"
	default:
		return "42"
	}
}

func parseInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// fitLength pads or truncates a value so it satisfies length constraints.
func fitLength(v string, c schemas.Constraints) string {
	if c.MaxLength > 0 && len(v) > c.MaxLength {
		v = v[:c.MaxLength]
	}
	for c.MinLength > 0 && len(v) < c.MinLength {
		v += "x"
	}
	return v
}

// fieldText joins the descriptive attributes of a field for keyword scans.
func fieldText(f schemas.FieldSchema) string {
	return strings.Join([]string{f.Label, f.Name, f.ID, f.Placeholder}, " ")
}

// contextText is the human-facing description forwarded to generation.
func contextText(f schemas.FieldSchema) string {
	parts := make([]string, 0, 3)
	if f.Label != "" {
		parts = append(parts, f.Label)
	}
	if f.Placeholder != "" {
		parts = append(parts, fmt.Sprintf("placeholder: %s", f.Placeholder))
	}
	if len(parts) == 0 && f.Name != "" {
		parts = append(parts, f.Name)
	}
	if len(parts) == 0 {
		parts = append(parts, f.ID)
	}
	return strings.Join(parts, ", ")
}
