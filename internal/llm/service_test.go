package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contact-cli/internal/model"
	"github.com/sells-group/contact-cli/pkg/anthropic"
)

type mockAnthropicClient struct {
	mock.Mock
}

func (m *mockAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
	}
}

var testProvider = model.Provider{
	ProjectID: "P-100",
	FirstName: "Jane",
	LastName:  "Smith",
	City:      "Springfield",
	StateCode: "IL",
}

func TestExtractContact(t *testing.T) {
	mc := new(mockAnthropicClient)
	mc.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return len(req.Messages) == 1 &&
			assert.ObjectsAreEqual("user", req.Messages[0].Role)
	})).Return(textResponse(`{"phone": "(217) 555-0142", "email": "", "full_address": "100 Main St, Springfield, IL"}`), nil)

	svc := NewService(mc, "claude-haiku-4-5-20251001")
	contact, err := svc.ExtractContact(context.Background(), "page text", testProvider, "https://example.com/a")
	require.NoError(t, err)

	assert.Equal(t, "(217) 555-0142", contact.Phone)
	assert.Empty(t, contact.Email)
	assert.Equal(t, "100 Main St, Springfield, IL", contact.FullAddress)
	assert.Equal(t, "https://example.com/a", contact.SourceURL)
}

func TestExtractContactTruncatesPageText(t *testing.T) {
	long := make([]byte, maxExtractChars*2)
	for i := range long {
		long[i] = 'x'
	}

	mc := new(mockAnthropicClient)
	mc.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return len(req.Messages[0].Content) < maxExtractChars+200
	})).Return(textResponse(`{"phone": "", "email": "", "full_address": ""}`), nil)

	svc := NewService(mc, "claude-haiku-4-5-20251001")
	contact, err := svc.ExtractContact(context.Background(), string(long), testProvider, "https://example.com/a")
	require.NoError(t, err)
	assert.True(t, contact.IsEmpty())
	mc.AssertExpectations(t)
}

func TestExtractContactMarkdownFence(t *testing.T) {
	mc := new(mockAnthropicClient)
	mc.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse("Here is the result:\n```json\n{\"phone\": \"555\", \"email\": \"j@x.org\", \"full_address\": \"\"}\n```"), nil)

	svc := NewService(mc, "claude-haiku-4-5-20251001")
	contact, err := svc.ExtractContact(context.Background(), "text", testProvider, "https://example.com/a")
	require.NoError(t, err)
	assert.Equal(t, "555", contact.Phone)
	assert.Equal(t, "j@x.org", contact.Email)
}

func TestExtractContactBadJSON(t *testing.T) {
	mc := new(mockAnthropicClient)
	mc.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse("I could not find anything."), nil)

	svc := NewService(mc, "claude-haiku-4-5-20251001")
	_, err := svc.ExtractContact(context.Background(), "text", testProvider, "https://example.com/a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse extraction response")
}

func TestVerifyIdentity(t *testing.T) {
	mc := new(mockAnthropicClient)
	mc.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(`{"confidence": 85, "reasoning": "name and city match"}`), nil)

	svc := NewService(mc, "claude-haiku-4-5-20251001")
	outcome, err := svc.VerifyIdentity(context.Background(), testProvider, model.ExtractedContact{Phone: "555"}, "page text")
	require.NoError(t, err)
	assert.Equal(t, 85, outcome.Confidence)
	assert.Equal(t, "name and city match", outcome.Reasoning)
}

func TestVerifyIdentityClampsConfidence(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{"above range", `{"confidence": 140, "reasoning": "r"}`, 100},
		{"below range", `{"confidence": -5, "reasoning": "r"}`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mc := new(mockAnthropicClient)
			mc.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse(tt.raw), nil)

			svc := NewService(mc, "claude-haiku-4-5-20251001")
			outcome, err := svc.VerifyIdentity(context.Background(), testProvider, model.ExtractedContact{}, "text")
			require.NoError(t, err)
			assert.Equal(t, tt.want, outcome.Confidence)
		})
	}
}

func TestVerifyIdentityRequestError(t *testing.T) {
	mc := new(mockAnthropicClient)
	mc.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, assert.AnError)

	svc := NewService(mc, "claude-haiku-4-5-20251001")
	_, err := svc.VerifyIdentity(context.Background(), testProvider, model.ExtractedContact{}, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "verify identity")
}
