package schemas

// SemanticType is the inferred logical category of a form field, distinct
// from the raw control type reported by the scanner.
type SemanticType string

const (
	TypeEmail    SemanticType = "email"
	TypePassword SemanticType = "password"
	TypePhone    SemanticType = "phone"
	TypeDate     SemanticType = "date"
	TypeTime     SemanticType = "time"
	TypeNumber   SemanticType = "number"
	TypeURL      SemanticType = "url"
	TypeFile     SemanticType = "file"
	TypeSelect   SemanticType = "select"
	TypeCheckbox SemanticType = "checkbox"
	TypeRadio    SemanticType = "radio"
	TypeTextarea SemanticType = "textarea"
	TypeName     SemanticType = "name"
	TypeText     SemanticType = "text"
)

// Constraints carries the validation attributes declared on a field.
// String-valued bounds (Min/Max) keep the raw attribute text; consumers
// parse them per semantic type (numbers, times, dates).
type Constraints struct {
	MinLength int    `json:"min_length,omitempty"`
	MaxLength int    `json:"max_length,omitempty"`
	Min       string `json:"min,omitempty"`
	Max       string `json:"max,omitempty"`
	Pattern   string `json:"pattern,omitempty"`
}

// Option is one entry of a select or radio group.
type Option struct {
	Value string `json:"value"`
	Text  string `json:"text"`
}

// FieldSchema describes one input control as produced by the external
// form-detection scanner. It is immutable once produced.
type FieldSchema struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	RawType     string      `json:"raw_type"`
	Label       string      `json:"label"`
	Placeholder string      `json:"placeholder"`
	Required    bool        `json:"required"`
	Selector    string      `json:"selector"`
	Constraints Constraints `json:"constraints"`
	Options     []Option    `json:"options,omitempty"`
}

// FormSchema is one detected form. Field IDs are unique within a form.
type FormSchema struct {
	Fields         []FieldSchema `json:"fields"`
	SubmitSelector string        `json:"submit_selector"`
}
