package schemas

import "time"

// SourceTier records which stage of the resolution pipeline produced a value.
type SourceTier string

const (
	SourceExplicit        SourceTier = "explicit"
	SourceCredential      SourceTier = "credential"
	SourceBatchGenerated  SourceTier = "batch_generated"
	SourceSingleGenerated SourceTier = "single_generated"
	SourceRuleBased       SourceTier = "rule_based"
	SourceFallback        SourceTier = "fallback"
)

// ResolvedValue is the final value chosen for one field plus its provenance.
type ResolvedValue struct {
	FieldID string     `json:"field_id"`
	Value   string     `json:"value"`
	Source  SourceTier `json:"source"`
}

// ResolvedValueMap maps every field ID of a form to its resolved value.
// A complete resolution has exactly one entry per field in the form.
type ResolvedValueMap map[string]ResolvedValue

// GenerationField is one field forwarded to the generative backend. Options
// carries the fixed choice set of select/radio controls so the backend can
// state a preference among them.
type GenerationField struct {
	FieldID      string   `json:"field_id"`
	SemanticHint string   `json:"semantic_hint"`
	ContextText  string   `json:"context_text"`
	Options      []string `json:"options,omitempty"`
}

// GenerationRequest bundles the fields of a single form for one batch call.
type GenerationRequest struct {
	Fields           []GenerationField `json:"fields"`
	FormContext      string            `json:"form_context,omitempty"`
	PageInstructions []string          `json:"page_instructions,omitempty"`
}

// GenerationResponse maps field IDs to generated values. Missing keys mean
// the backend produced nothing usable for that field.
type GenerationResponse map[string]string

// FieldError reports one field that could not be filled.
type FieldError struct {
	FieldID  string `json:"field_id"`
	Selector string `json:"selector"`
	Reason   string `json:"reason"`
}

// FillReport summarizes a fill pass over one form. Per-field failures are
// collected rather than aborting the pass.
type FillReport struct {
	TotalFields  int          `json:"total_fields"`
	FilledCount  int          `json:"filled_count"`
	SkippedCount int          `json:"skipped_count"`
	Errors       []FieldError `json:"errors,omitempty"`
}

// Succeeded reports whether every attempted field was filled.
func (r *FillReport) Succeeded() bool { return len(r.Errors) == 0 }

// SessionMetadata describes a cached authenticated session on disk.
type SessionMetadata struct {
	Timestamp time.Time `json:"timestamp"`
	Expiry    time.Time `json:"expiry"`
	URL       string    `json:"url"`
	UserAgent string    `json:"user_agent"`
}

// AuthStatus is the observable state of the authentication cache.
type AuthStatus struct {
	Authenticated   bool       `json:"authenticated"`
	StateFileExists bool       `json:"state_file_exists"`
	MetaFileExists  bool       `json:"meta_file_exists"`
	CachedTimestamp *time.Time `json:"cached_timestamp,omitempty"`
	CachedExpiry    *time.Time `json:"cached_expiry,omitempty"`
}
