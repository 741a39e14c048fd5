package extract

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairline-labs/fairline/internal/resilience"
	"github.com/fairline-labs/fairline/pkg/anthropic"
)

// mockClient returns canned responses and records requests.
type mockClient struct {
	responses []*anthropic.MessageResponse
	errs      []error
	calls     int
	requests  []anthropic.MessageRequest
}

func (m *mockClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	i := m.calls
	m.calls++
	m.requests = append(m.requests, req)
	if i < len(m.errs) && m.errs[i] != nil {
		return nil, m.errs[i]
	}
	if i < len(m.responses) {
		return m.responses[i], nil
	}
	return nil, eris.New("mock exhausted")
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
	}
}

const sampleExtraction = "```json\n" + `{
  "identity": {"name": "Jordan Reyes", "address": "12 Oak St", "ssn_last4": "1234", "birth_year": "1988", "confidence": 95},
  "scores": {"equifax": 612},
  "tradelines": [
    {"creditor": "Capital One", "account_number": "5178-00-221", "balance": "$0", "past_due": "$500", "status": "Charge-off", "reported_at": "2026-01-15", "confidence": 130}
  ]
}` + "\n```"

func TestExtractReportParsesFencedJSON(t *testing.T) {
	client := &mockClient{responses: []*anthropic.MessageResponse{textResponse(sampleExtraction)}}
	p := NewAnthropicProvider(client, Options{})

	raw, err := p.ExtractReport(context.Background(), "report-a.txt", "full report text")
	require.NoError(t, err)

	assert.Equal(t, "Jordan Reyes", raw.Identity.Name)
	assert.Equal(t, 95, raw.Identity.Confidence)
	assert.Equal(t, "report-a.txt", raw.Identity.Source)
	assert.Equal(t, 612, raw.Scores["equifax"])

	require.Len(t, raw.Tradelines, 1)
	tl := raw.Tradelines[0]
	assert.Equal(t, "Capital One", tl.Creditor)
	assert.Equal(t, "$500", tl.PastDue)
	assert.Equal(t, 100, tl.Confidence, "extractor confidence above range is clamped")
	assert.Equal(t, "report-a.txt", tl.Source)

	// Prompt carries the document and the source label.
	require.Len(t, client.requests, 1)
	assert.Contains(t, client.requests[0].Messages[0].Content, "full report text")
	assert.Contains(t, client.requests[0].Messages[0].Content, "report-a.txt")
}

func TestExtractReportRetriesTransientFailures(t *testing.T) {
	client := &mockClient{
		errs:      []error{resilience.NewTransientError(eris.New("overloaded"), 529), nil},
		responses: []*anthropic.MessageResponse{nil, textResponse(`{"tradelines": []}`)},
	}
	p := NewAnthropicProvider(client, Options{})
	p.retry.BaseDelay = 1
	p.retry.Jitter = 0

	raw, err := p.ExtractReport(context.Background(), "r", "text")
	require.NoError(t, err)
	assert.Empty(t, raw.Tradelines)
	assert.Equal(t, 2, client.calls)
}

func TestExtractReportRejectsGarbage(t *testing.T) {
	client := &mockClient{responses: []*anthropic.MessageResponse{textResponse("I could not find any data.")}}
	p := NewAnthropicProvider(client, Options{})

	_, err := p.ExtractReport(context.Background(), "r", "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no JSON object")
}

func TestExtractReportEmptyInput(t *testing.T) {
	p := NewAnthropicProvider(&mockClient{}, Options{})
	_, err := p.ExtractReport(context.Background(), "r", "   ")
	assert.Error(t, err)
}

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"plain fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"prose wrapper", "Here you go:\n{\"a\":1}\nDone.", `{"a":1}`},
		{"no object", "nothing here", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanJSON(tt.in))
		})
	}
}
