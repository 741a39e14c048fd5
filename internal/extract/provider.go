package extract

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fairline-labs/fairline/internal/model"
	"github.com/fairline-labs/fairline/internal/resilience"
	"github.com/fairline-labs/fairline/pkg/anthropic"
)

// Provider turns unstructured report text into an untrusted RawReport. The
// output is never consumed directly; normalization owns all trust decisions.
type Provider interface {
	ExtractReport(ctx context.Context, source, text string) (*model.RawReport, error)
}

// Options configures the Anthropic-backed provider.
type Options struct {
	Model             string
	MaxTokens         int64
	RequestsPerSecond float64
}

// AnthropicProvider extracts report structure with the Messages API, guarded
// by a rate limiter, retries, and a circuit breaker.
type AnthropicProvider struct {
	client  anthropic.Client
	opts    Options
	limiter *rate.Limiter
	retry   resilience.RetryConfig
	breaker *resilience.Breaker
}

// NewAnthropicProvider builds a provider over the given client.
func NewAnthropicProvider(client anthropic.Client, opts Options) *AnthropicProvider {
	if opts.Model == "" {
		opts.Model = "claude-sonnet-4-5-20250929"
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 8192
	}
	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("anthropic", "extract_report")

	return &AnthropicProvider{
		client:  client,
		opts:    opts,
		limiter: limiter,
		retry:   retry,
		breaker: resilience.NewBreaker(resilience.BreakerConfig{}),
	}
}

// ExtractReport sends the report text for structured extraction and parses
// the returned JSON. Per-record confidences are clamped to [0,100].
func (p *AnthropicProvider) ExtractReport(ctx context.Context, source, text string) (*model.RawReport, error) {
	if strings.TrimSpace(text) == "" {
		return nil, eris.New("extract: empty report text")
	}
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "extract: rate limit wait")
		}
	}

	req := anthropic.MessageRequest{
		Model:     p.opts.Model,
		MaxTokens: p.opts.MaxTokens,
		System: []anthropic.SystemBlock{{
			Text:         extractionSystemPrompt,
			CacheControl: &anthropic.CacheControl{TTL: "5m"},
		}},
		Messages: []anthropic.Message{{
			Role:    "user",
			Content: buildExtractionPrompt(source, text),
		}},
	}

	resp, err := resilience.DoVal(ctx, p.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return resilience.BreakerVal(ctx, p.breaker, func(ctx context.Context) (*anthropic.MessageResponse, error) {
			return p.client.CreateMessage(ctx, req)
		})
	})
	if err != nil {
		return nil, eris.Wrap(err, "extract: create message")
	}
	resp.Usage.LogCost(p.opts.Model, "extract_report")

	raw, err := parseExtraction(resp)
	if err != nil {
		return nil, err
	}

	for i := range raw.Tradelines {
		raw.Tradelines[i].Confidence = model.ClampConfidence(raw.Tradelines[i].Confidence)
		if raw.Tradelines[i].Source == "" {
			raw.Tradelines[i].Source = source
		}
	}
	raw.Identity.Confidence = model.ClampConfidence(raw.Identity.Confidence)
	if raw.Identity.Source == "" {
		raw.Identity.Source = source
	}

	zap.L().Info("extract: report parsed",
		zap.String("source", source),
		zap.Int("tradelines", len(raw.Tradelines)),
	)
	return raw, nil
}

func parseExtraction(resp *anthropic.MessageResponse) (*model.RawReport, error) {
	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	cleaned := cleanJSON(sb.String())
	if cleaned == "" {
		return nil, eris.New("extract: no JSON object in response")
	}

	var raw model.RawReport
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, eris.Wrap(err, "extract: unmarshal response")
	}
	return &raw, nil
}

// cleanJSON strips markdown fences and extracts the JSON object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return ""
	}
	return strings.TrimSpace(text[start : end+1])
}
