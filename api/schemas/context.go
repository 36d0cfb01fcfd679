package schemas

// CredentialHint is a credential pair discovered on the page itself, e.g.
// demo-site login instructions printed next to the form.
type CredentialHint struct {
	Role   string `json:"role"`
	Value  string `json:"value"`
	Source string `json:"source,omitempty"`
}

// PageContext is the output of the external page-analysis stage: anything
// on the page that should steer value resolution.
type PageContext struct {
	HasCredentials bool             `json:"has_credentials"`
	Credentials    []CredentialHint `json:"credentials,omitempty"`
	Instructions   []string         `json:"instructions,omitempty"`
}

// CredentialFor returns the hint value for a role ("username" or
// "password"), or "" when the page offered none.
func (p *PageContext) CredentialFor(role string) string {
	if p == nil {
		return ""
	}
	for _, c := range p.Credentials {
		if c.Role == role {
			return c.Value
		}
	}
	return ""
}
