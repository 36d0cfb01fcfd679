// File: internal/resolver/invalid.go
package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/xkilldash9x/formpilot-cli/api/schemas"
	"github.com/xkilldash9x/formpilot-cli/internal/classifier"
)

// Named negative-testing scenarios. Each one plants a specific class of bad
// data into the fields it targets; every other field resolves normally, so
// the form exercises exactly one validation path at a time.
const (
	ScenarioEmptyRequired = "empty_required_fields"
	ScenarioInvalidEmail  = "invalid_email"
	ScenarioInvalidPhone  = "invalid_phone"
	ScenarioSQLInjection  = "sql_injection"
	ScenarioXSS           = "xss"
	ScenarioBoundary      = "boundary_values"
)

const (
	invalidEmailValue = "invalid-email-format"
	invalidPhoneValue = "not-a-phone-number"
	sqlInjectionValue = "'; DROP TABLE users; --"
	xssValue          = "<script>alert('XSS')</script>"
	boundaryNumeric   = "999999999"
)

// Scenarios lists the supported invalid-data scenario names.
func Scenarios() []string {
	return []string{
		ScenarioEmptyRequired,
		ScenarioInvalidEmail,
		ScenarioInvalidPhone,
		ScenarioSQLInjection,
		ScenarioXSS,
		ScenarioBoundary,
	}
}

// ResolveInvalid resolves the form with one class of deliberately bad data.
// The scenario decides which fields get poisoned; the rest run through the
// normal pipeline.
func (r *Resolver) ResolveInvalid(ctx context.Context, form schemas.FormSchema, scenario string, explicit map[string]string, pageCtx *schemas.PageContext) (schemas.ResolvedValueMap, error) {
	pre, err := r.invalidOverrides(form, scenario)
	if err != nil {
		return nil, err
	}
	return r.resolveInto(ctx, form, explicit, pageCtx, pre)
}

func (r *Resolver) invalidOverrides(form schemas.FormSchema, scenario string) (schemas.ResolvedValueMap, error) {
	pre := make(schemas.ResolvedValueMap)
	types := classifier.ClassifyForm(form)

	set := func(f schemas.FieldSchema, v string) {
		pre[f.ID] = schemas.ResolvedValue{FieldID: f.ID, Value: v, Source: schemas.SourceRuleBased}
	}

	switch scenario {
	case ScenarioEmptyRequired:
		for _, f := range form.Fields {
			if f.Required {
				set(f, "")
			}
		}
	case ScenarioInvalidEmail:
		for _, f := range form.Fields {
			if types[f.ID] == schemas.TypeEmail {
				set(f, invalidEmailValue)
			}
		}
	case ScenarioInvalidPhone:
		for _, f := range form.Fields {
			if types[f.ID] == schemas.TypePhone {
				set(f, invalidPhoneValue)
			}
		}
	case ScenarioSQLInjection:
		for _, f := range form.Fields {
			if isTextual(types[f.ID]) {
				set(f, sqlInjectionValue)
			}
		}
	case ScenarioXSS:
		for _, f := range form.Fields {
			if isTextual(types[f.ID]) {
				set(f, xssValue)
			}
		}
	case ScenarioBoundary:
		for _, f := range form.Fields {
			if v, ok := boundaryValue(f, types[f.ID]); ok {
				set(f, v)
			}
		}
	default:
		return nil, fmt.Errorf("unknown invalid-data scenario %q (valid: %s)",
			scenario, strings.Join(Scenarios(), ", "))
	}
	return pre, nil
}

// boundaryValue produces a value that overshoots the field's own limits.
func boundaryValue(f schemas.FieldSchema, st schemas.SemanticType) (string, bool) {
	if st == schemas.TypeNumber {
		if max, ok := parseInt(f.Constraints.Max); ok {
			return fmt.Sprintf("%d", max+1), true
		}
		return boundaryNumeric, true
	}
	if f.Constraints.MaxLength > 0 {
		return strings.Repeat("x", f.Constraints.MaxLength+10), true
	}
	return "", false
}

// isTextual reports whether a field accepts free text that payload strings
// can ride in on.
func isTextual(st schemas.SemanticType) bool {
	switch st {
	case schemas.TypeText, schemas.TypeTextarea, schemas.TypeName:
		return true
	default:
		return false
	}
}
