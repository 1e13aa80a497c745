package model

import "strings"

// MatchStatus is the terminal classification of a provider record after the
// resolution pipeline has run.
type MatchStatus string

const (
	MatchFound      MatchStatus = "FOUND"
	MatchPartial    MatchStatus = "PARTIAL"
	MatchNotFound   MatchStatus = "NOT_FOUND"
	MatchProcessing MatchStatus = "PROCESSING"
	MatchError      MatchStatus = "ERROR"
)

// Provider is a single healthcare-provider identity from an uploaded roster.
// It is read-only through the pipeline.
type Provider struct {
	ProjectID    string `json:"project_id"`
	FirstName    string `json:"first_name,omitempty"`
	MiddleName   string `json:"middle_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	AddressLine1 string `json:"address_line_1,omitempty"`
	AddressLine2 string `json:"address_line_2,omitempty"`
	City         string `json:"city,omitempty"`
	StateCode    string `json:"state_code,omitempty"`
}

// FullName joins the non-empty name parts with single spaces.
func (p Provider) FullName() string {
	parts := make([]string, 0, 3)
	for _, s := range []string{p.FirstName, p.MiddleName, p.LastName} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// ExtractedContact is a candidate contact pulled from one scraped page.
type ExtractedContact struct {
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	FullAddress string `json:"full_address"`
	SourceURL   string `json:"source_url"`
}

// IsEmpty reports whether the contact carries no useful field. Empty
// candidates are dropped before verification.
func (c ExtractedContact) IsEmpty() bool {
	return c.Phone == "" && c.Email == "" && c.FullAddress == ""
}

// VerificationOutcome is the identity-match judgment for one candidate.
type VerificationOutcome struct {
	Confidence int    `json:"confidence"`
	Reasoning  string `json:"reasoning"`
}

// RecordResult is the terminal outcome of resolving one provider record.
// Contact is nil unless Status is FOUND or PARTIAL.
type RecordResult struct {
	Contact    *ExtractedContact `json:"contact,omitempty"`
	Confidence int               `json:"confidence"`
	Reasoning  string            `json:"reasoning"`
	SourceURLs []string          `json:"source_urls"`
	Status     MatchStatus       `json:"status"`
	Retries    int               `json:"retries"`
}
