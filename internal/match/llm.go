package match

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/sells-group/debtlink/internal/extract"
	"github.com/sells-group/debtlink/internal/model"
	"github.com/sells-group/debtlink/internal/resilience"
	"github.com/sells-group/debtlink/pkg/anthropic"
)

// LLMAssisted is the last-resort strategy: instrument attributes plus
// bounded document excerpts go to a text-generation model with a
// fixed-schema prompt. The model's confidence is clamped at 1.0 and
// anything below AcceptMin is discarded rather than stored, so bad
// guesses never accumulate as low-confidence links. Every failure mode
// (timeout, open circuit, malformed JSON) reads as "no match".
type LLMAssisted struct {
	client       anthropic.Client
	model        string
	acceptMin    float64
	excerptChars int
	callTimeout  time.Duration

	gate    *semaphore.Weighted
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig
}

// LLMOptions configures the assisted matcher.
type LLMOptions struct {
	Model         string
	AcceptMin     float64       // default 0.7
	ExcerptChars  int           // default 4000
	MaxConcurrent int64         // default 3
	CallTimeout   time.Duration // default 60s
}

// NewLLMAssisted builds the assisted strategy around an Anthropic client.
func NewLLMAssisted(client anthropic.Client, opts LLMOptions) *LLMAssisted {
	if opts.AcceptMin <= 0 {
		opts.AcceptMin = 0.7
	}
	if opts.ExcerptChars <= 0 {
		opts.ExcerptChars = 4000
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 3
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 60 * time.Second
	}
	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.OnRetry = resilience.RetryLogger("anthropic", "match")

	return &LLMAssisted{
		client:       client,
		model:        opts.Model,
		acceptMin:    opts.AcceptMin,
		excerptChars: opts.ExcerptChars,
		callTimeout:  opts.CallTimeout,
		gate:         semaphore.NewWeighted(opts.MaxConcurrent),
		breaker:      resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
		retry:        retryCfg,
	}
}

func (*LLMAssisted) Method() model.MatchMethod { return model.MethodLLM }

const llmSystemPrompt = `You link corporate debt instruments to the legal documents that govern them.
Given one instrument and numbered document excerpts, decide which document, if any, governs the instrument.
Respond with JSON only, no prose, in exactly this schema:
{"matches": [{"document_id": <int>, "confidence": <float 0.0-1.0>}]}
Return an empty matches array when no document governs the instrument.`

func (s *LLMAssisted) Score(ctx context.Context, inst *model.Instrument, docs []model.Document) (*Result, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	if err := s.gate.Acquire(ctx, 1); err != nil {
		return nil, nil
	}
	defer s.gate.Release(1)

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	resp, err := resilience.ExecuteVal(callCtx, s.breaker, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return resilience.DoVal(ctx, s.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
			return s.client.CreateMessage(ctx, anthropic.MessageRequest{
				Model:     s.model,
				MaxTokens: 1024,
				System:    []anthropic.SystemBlock{{Text: llmSystemPrompt}},
				Messages:  []anthropic.Message{{Role: "user", Content: s.buildPrompt(inst, docs)}},
			})
		})
	})
	if err != nil {
		// Fallback failure is "no match", never fatal for the batch.
		zap.L().Warn("assisted match call failed",
			zap.Int64("instrument_id", inst.ID),
			zap.Error(err),
		)
		return nil, nil
	}

	resp.Usage.LogCost(s.model, "match")
	return s.parseResponse(inst, docs, resp.Text()), nil
}

func (s *LLMAssisted) buildPrompt(inst *model.Instrument, docs []model.Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Instrument:\n  name: %s\n  type: %s\n", inst.Name, inst.Type)
	if pct := inst.CouponPct(); pct != nil {
		fmt.Fprintf(&b, "  coupon: %s%%\n", extract.NormalizeRate(*pct))
	}
	if y := inst.MaturityYear(); y != 0 {
		fmt.Fprintf(&b, "  maturity_year: %d\n", y)
	}
	if amt := instrumentAmount(inst); amt != 0 {
		fmt.Fprintf(&b, "  amount_usd: %.2f\n", float64(amt)/100)
	}

	b.WriteString("\nCandidate documents:\n")
	for i := range docs {
		doc := &docs[i]
		excerpt := doc.Content
		if len(excerpt) > s.excerptChars {
			excerpt = excerpt[:s.excerptChars]
		}
		fmt.Fprintf(&b, "\n[document_id=%d] %s\n%s\n", doc.ID, doc.Title, excerpt)
	}
	return b.String()
}

// llmMatchResponse is the fixed response schema.
type llmMatchResponse struct {
	Matches []struct {
		DocumentID int64   `json:"document_id"`
		Confidence float64 `json:"confidence"`
	} `json:"matches"`
}

// parseResponse decodes the model's JSON and applies the acceptance rules.
// Malformed JSON and unknown document IDs read as "no match".
func (s *LLMAssisted) parseResponse(inst *model.Instrument, docs []model.Document, text string) *Result {
	raw := extractJSON(text)
	if raw == "" {
		return nil
	}

	var parsed llmMatchResponse
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		zap.L().Warn("assisted match returned malformed JSON",
			zap.Int64("instrument_id", inst.ID),
		)
		return nil
	}

	valid := make(map[int64]bool, len(docs))
	for i := range docs {
		valid[docs[i].ID] = true
	}

	for _, m := range parsed.Matches {
		if !valid[m.DocumentID] {
			continue
		}
		confidence := m.Confidence
		if confidence > 1.0 {
			confidence = 1.0
		}
		if confidence < s.acceptMin {
			continue
		}
		return &Result{
			DocumentID: m.DocumentID,
			Method:     model.MethodLLM,
			Confidence: confidence,
			Evidence: map[string]any{
				"model":            s.model,
				"model_confidence": m.Confidence,
			},
		}
	}
	return nil
}

// extractJSON returns the outermost JSON object in a response, tolerating
// code fences and surrounding prose.
func extractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}
