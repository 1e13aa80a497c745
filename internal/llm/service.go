// Package llm performs contact extraction and identity verification
// through Claude.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contact-cli/internal/model"
	"github.com/sells-group/contact-cli/pkg/anthropic"
)

const (
	// maxExtractChars caps the page text sent for extraction.
	maxExtractChars = 6000

	// maxVerifyChars caps the page context sent for verification.
	maxVerifyChars = 3000

	extractMaxTokens = 500
	verifyMaxTokens  = 300
)

// extractionPrompt is the system prompt for contact extraction.
const extractionPrompt = `You are an expert data extraction assistant specialising in healthcare provider (HCP) contact information.

Given the raw text from a web page, extract the following contact details for the specified healthcare provider:
- phone: Phone number (with area code if available)
- email: Email address
- full_address: Complete mailing/practice address

Rules:
1. Only extract information that clearly belongs to the specified person.
2. If a field is not found, return an empty string for that field.
3. Return ONLY valid JSON with the keys: phone, email, full_address.
4. Do NOT make up or guess information.`

// verificationPrompt is the system prompt for identity verification.
const verificationPrompt = `You are an identity verification expert for healthcare providers.

Given an HCP's known details (name, city, state) and extracted contact information from a web page, determine whether the extracted information belongs to the same person.

Consider:
1. Name match (exact or close variations)
2. Location match (city, state)
3. Professional context (healthcare/medical field)
4. Any other identifying details on the page

Return ONLY valid JSON with:
- confidence: integer 0-100 (0 = definitely not the same person, 100 = definitely the same)
- reasoning: brief explanation of your assessment`

// Service defines the LLM operations the pipeline needs.
type Service interface {
	// ExtractContact pulls phone, email and address for the provider out of
	// page text.
	ExtractContact(ctx context.Context, pageText string, p model.Provider, sourceURL string) (model.ExtractedContact, error)
	// VerifyIdentity scores how likely the extracted contact belongs to the
	// provider, 0 to 100.
	VerifyIdentity(ctx context.Context, p model.Provider, contact model.ExtractedContact, pageText string) (model.VerificationOutcome, error)
}

type service struct {
	client anthropic.Client
	model  string
}

// NewService creates a Service backed by the given Anthropic client.
func NewService(client anthropic.Client, modelID string) Service {
	return &service{client: client, model: modelID}
}

type extractResponse struct {
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	FullAddress string `json:"full_address"`
}

type verifyResponse struct {
	Confidence int    `json:"confidence"`
	Reasoning  string `json:"reasoning"`
}

func (s *service) ExtractContact(ctx context.Context, pageText string, p model.Provider, sourceURL string) (model.ExtractedContact, error) {
	userMsg := fmt.Sprintf(
		"Healthcare Provider: %s\nLocation: %s, %s\n\nWeb page text:\n%s",
		p.FullName(), p.City, p.StateCode, truncate(pageText, maxExtractChars),
	)

	text, usage, err := s.complete(ctx, extractionPrompt, userMsg, extractMaxTokens)
	if err != nil {
		return model.ExtractedContact{}, eris.Wrap(err, "llm: extract contact")
	}
	usage.LogCost(s.model, "extract")

	var result extractResponse
	if err := decodeJSON(text, &result); err != nil {
		return model.ExtractedContact{}, eris.Wrap(err, "llm: parse extraction response")
	}

	return model.ExtractedContact{
		Phone:       strings.TrimSpace(result.Phone),
		Email:       strings.TrimSpace(result.Email),
		FullAddress: strings.TrimSpace(result.FullAddress),
		SourceURL:   sourceURL,
	}, nil
}

func (s *service) VerifyIdentity(ctx context.Context, p model.Provider, contact model.ExtractedContact, pageText string) (model.VerificationOutcome, error) {
	userMsg := fmt.Sprintf(
		"Known HCP Details:\n  Name: %s\n  City: %s\n  State: %s\n  Address: %s %s\n\n"+
			"Extracted Contact:\n  Phone: %s\n  Email: %s\n  Address: %s\n  Source: %s\n\n"+
			"Page context:\n%s",
		p.FullName(), p.City, p.StateCode, p.AddressLine1, p.AddressLine2,
		contact.Phone, contact.Email, contact.FullAddress, contact.SourceURL,
		truncate(pageText, maxVerifyChars),
	)

	text, usage, err := s.complete(ctx, verificationPrompt, userMsg, verifyMaxTokens)
	if err != nil {
		return model.VerificationOutcome{}, eris.Wrap(err, "llm: verify identity")
	}
	usage.LogCost(s.model, "verify")

	var result verifyResponse
	if err := decodeJSON(text, &result); err != nil {
		return model.VerificationOutcome{}, eris.Wrap(err, "llm: parse verification response")
	}

	if result.Confidence < 0 {
		result.Confidence = 0
	}
	if result.Confidence > 100 {
		result.Confidence = 100
	}

	zap.L().Debug("identity verified",
		zap.String("project_id", p.ProjectID),
		zap.Int("confidence", result.Confidence),
	)
	return model.VerificationOutcome{
		Confidence: result.Confidence,
		Reasoning:  result.Reasoning,
	}, nil
}

// complete sends one system+user exchange and returns the first text block.
func (s *service) complete(ctx context.Context, systemPrompt, userMsg string, maxTokens int64) (string, anthropic.TokenUsage, error) {
	resp, err := s.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       s.model,
		MaxTokens:   maxTokens,
		System:      anthropic.BuildCachedSystemBlocks(systemPrompt),
		Messages:    []anthropic.Message{{Role: "user", Content: userMsg}},
		Temperature: floatPtr(0),
	})
	if err != nil {
		return "", anthropic.TokenUsage{}, err
	}

	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text, resp.Usage, nil
		}
	}
	return "", resp.Usage, eris.New("llm: empty response")
}

// decodeJSON unmarshals the outermost JSON object in text, tolerating
// surrounding prose or markdown fences.
func decodeJSON(text string, v any) error {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return eris.Errorf("llm: no JSON object in response: %s", snippet(text))
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), v); err != nil {
		return eris.Wrap(err, "llm: unmarshal response")
	}
	return nil
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}

func snippet(s string) string {
	return truncate(s, 120)
}

func floatPtr(f float64) *float64 {
	return &f
}
