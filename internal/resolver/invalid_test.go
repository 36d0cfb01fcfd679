// File: internal/resolver/invalid_test.go
package resolver

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/formpilot-cli/api/schemas"
)

func invalidTestForm() schemas.FormSchema {
	return schemas.FormSchema{Fields: []schemas.FieldSchema{
		{ID: "email", RawType: "email", Required: true},
		{ID: "phone", RawType: "tel"},
		{ID: "comment", RawType: "textarea", Label: "Comments",
			Constraints: schemas.Constraints{MaxLength: 20}},
		{ID: "qty", RawType: "number", Constraints: schemas.Constraints{Max: "10"}},
		{ID: "nickname", RawType: "text", Label: "Nickname"},
	}}
}

func TestResolveInvalid_UnknownScenario(t *testing.T) {
	r := newTestResolver(nil)
	_, err := r.ResolveInvalid(context.Background(), invalidTestForm(), "nonsense", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown invalid-data scenario")
}

func TestResolveInvalid_EmptyRequired(t *testing.T) {
	r := newTestResolver(nil)
	got, err := r.ResolveInvalid(context.Background(), invalidTestForm(), ScenarioEmptyRequired, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "", got["email"].Value)
	// Non-required fields still resolve to valid data.
	assert.Equal(t, "555-123-4567", got["phone"].Value)
}

func TestResolveInvalid_InvalidEmail(t *testing.T) {
	r := newTestResolver(nil)
	got, err := r.ResolveInvalid(context.Background(), invalidTestForm(), ScenarioInvalidEmail, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "invalid-email-format", got["email"].Value)
	assert.Equal(t, "555-123-4567", got["phone"].Value)
}

func TestResolveInvalid_InvalidPhone(t *testing.T) {
	r := newTestResolver(nil)
	got, err := r.ResolveInvalid(context.Background(), invalidTestForm(), ScenarioInvalidPhone, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "not-a-phone-number", got["phone"].Value)
	assert.Equal(t, "test.user@example.com", got["email"].Value)
}

func TestResolveInvalid_PayloadScenarios(t *testing.T) {
	r := newTestResolver(nil)

	got, err := r.ResolveInvalid(context.Background(), invalidTestForm(), ScenarioSQLInjection, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "'; DROP TABLE users; --", got["nickname"].Value)
	assert.Equal(t, "'; DROP TABLE users; --", got["comment"].Value)
	// Email fields are not free-text carriers.
	assert.Equal(t, "test.user@example.com", got["email"].Value)

	got, err = r.ResolveInvalid(context.Background(), invalidTestForm(), ScenarioXSS, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "<script>alert('XSS')</script>", got["nickname"].Value)
}

func TestResolveInvalid_BoundaryValues(t *testing.T) {
	r := newTestResolver(nil)
	got, err := r.ResolveInvalid(context.Background(), invalidTestForm(), ScenarioBoundary, nil, nil)
	require.NoError(t, err)

	// MaxLength 20 gets overshot by 10.
	assert.Equal(t, strings.Repeat("x", 30), got["comment"].Value)
	// Numeric max 10 gets overshot by 1.
	assert.Equal(t, "11", got["qty"].Value)
}

func TestResolveInvalid_ExplicitStillWinsElsewhere(t *testing.T) {
	r := newTestResolver(nil)
	got, err := r.ResolveInvalid(context.Background(), invalidTestForm(), ScenarioInvalidEmail,
		map[string]string{"nickname": "zed"}, nil)
	require.NoError(t, err)

	assert.Equal(t, "invalid-email-format", got["email"].Value)
	assert.Equal(t, "zed", got["nickname"].Value)
	assert.Equal(t, schemas.SourceExplicit, got["nickname"].Source)
}

func TestScenarios_ListsAll(t *testing.T) {
	assert.ElementsMatch(t, []string{
		"empty_required_fields", "invalid_email", "invalid_phone",
		"sql_injection", "xss", "boundary_values",
	}, Scenarios())
}
