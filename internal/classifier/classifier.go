// File: internal/classifier/classifier.go

// Package classifier infers the semantic type of a form field from its raw
// control type and surrounding text. Classification is deterministic and
// never calls out to the network.
package classifier

import (
	"strings"

	"github.com/xkilldash9x/formpilot-cli/api/schemas"
)

// rawTypeMap covers control types that fully determine the semantic type on
// their own, before any text matching runs.
var rawTypeMap = map[string]schemas.SemanticType{
	"email":           schemas.TypeEmail,
	"password":        schemas.TypePassword,
	"tel":             schemas.TypePhone,
	"date":            schemas.TypeDate,
	"datetime-local":  schemas.TypeDate,
	"time":            schemas.TypeTime,
	"number":          schemas.TypeNumber,
	"range":           schemas.TypeNumber,
	"url":             schemas.TypeURL,
	"file":            schemas.TypeFile,
	"select":          schemas.TypeSelect,
	"select-one":      schemas.TypeSelect,
	"select-multiple": schemas.TypeSelect,
	"checkbox":        schemas.TypeCheckbox,
	"radio":           schemas.TypeRadio,
	"textarea":        schemas.TypeTextarea,
}

// keywordRule matches descriptive text against a list of substrings.
type keywordRule struct {
	semantic schemas.SemanticType
	keywords []string
}

// keywordRules run in order; the first hit wins. More specific categories
// come first so that e.g. "email address" classifies as email, not name.
var keywordRules = []keywordRule{
	{schemas.TypeEmail, []string{"email", "e-mail"}},
	{schemas.TypePassword, []string{"password", "passwd"}},
	{schemas.TypePhone, []string{"phone", "mobile", "telephone", "cell"}},
	{schemas.TypeName, []string{"name", "first", "last", "full"}},
	{schemas.TypeDate, []string{"date", "birthday", "dob"}},
	{schemas.TypeNumber, []string{"age", "quantity", "amount", "count", "zip", "postal"}},
	{schemas.TypeURL, []string{"website", "url", "homepage"}},
	{schemas.TypeTextarea, []string{"message", "comment", "description"}},
}

// Classify determines the semantic type of a single field.
//
// The raw control type wins when it is unambiguous. For generic text inputs
// the label, name, ID and placeholder are scanned for keywords; fields that
// match nothing fall back to plain text.
func Classify(f schemas.FieldSchema) schemas.SemanticType {
	raw := strings.ToLower(strings.TrimSpace(f.RawType))
	if st, ok := rawTypeMap[raw]; ok {
		return st
	}
	if len(f.Options) > 0 && raw != "radio" {
		return schemas.TypeSelect
	}

	haystack := strings.ToLower(strings.Join([]string{f.Label, f.Name, f.ID, f.Placeholder}, " "))
	for _, rule := range keywordRules {
		for _, kw := range rule.keywords {
			if strings.Contains(haystack, kw) {
				return rule.semantic
			}
		}
	}
	return schemas.TypeText
}

// ClassifyForm annotates every field of a form, keyed by field ID.
func ClassifyForm(form schemas.FormSchema) map[string]schemas.SemanticType {
	out := make(map[string]schemas.SemanticType, len(form.Fields))
	for _, f := range form.Fields {
		out[f.ID] = Classify(f)
	}
	return out
}

// credential keyword sets for detecting login-style fields by name/label.
var (
	usernameKeywords = []string{"username", "user", "login", "email", "user_id"}
	passwordKeywords = []string{"password", "pass", "pwd"}
)

// IsUsernameField reports whether a field looks like a login identifier.
func IsUsernameField(f schemas.FieldSchema) bool {
	return matchesAny(f, usernameKeywords)
}

// IsPasswordField reports whether a field looks like a login password.
func IsPasswordField(f schemas.FieldSchema) bool {
	if strings.EqualFold(f.RawType, "password") {
		return true
	}
	return matchesAny(f, passwordKeywords)
}

func matchesAny(f schemas.FieldSchema, keywords []string) bool {
	haystack := strings.ToLower(strings.Join([]string{f.Name, f.ID, f.Label}, " "))
	for _, kw := range keywords {
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}
