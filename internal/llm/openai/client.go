package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/article-matcher/internal/common"
	"github.com/joseph-ayodele/article-matcher/internal/llm"
)

var (
	_ llm.SemanticMatcher = (*Client)(nil)
	_ llm.ColumnInferrer  = (*Client)(nil)
)

// SuggestMatch implements llm.SemanticMatcher using text-only chat/completions.
// Suggestions naming an id outside the sample are discarded.
func (c *Client) SuggestMatch(ctx context.Context, req llm.MatchRequest) (*llm.MatchSuggestion, error) {
	if len(req.Sample) == 0 || strings.TrimSpace(req.Query) == "" {
		return nil, nil
	}
	rid := uuid.New().String()
	start := time.Now()

	content, err := c.complete(ctx, rid, llm.BuildMatchSystemPrompt(), llm.BuildMatchUserPrompt(req), llm.BuildMatchJSONSchema(), "record_id", "confidence")
	if err != nil {
		return nil, err
	}

	var out struct {
		RecordID   *int64  `json:"record_id"`
		Confidence float64 `json:"confidence"`
		Reason     string  `json:"reason"`
	}
	if err := json.Unmarshal(content, &out); err != nil {
		return nil, fmt.Errorf("unmarshal suggestion: %w", err)
	}
	if out.RecordID == nil {
		c.logger.Info("llm.match.none", "req_id", rid, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, nil
	}
	known := false
	for _, e := range req.Sample {
		if e.ID == *out.RecordID {
			known = true
			break
		}
	}
	if !known {
		c.logger.Warn("llm.match.unknown_record", "req_id", rid, "record_id", *out.RecordID)
		return nil, nil
	}

	c.logger.Info("llm.match.ok",
		"req_id", rid,
		"record_id", *out.RecordID,
		"confidence", out.Confidence,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return &llm.MatchSuggestion{RecordID: *out.RecordID, Confidence: out.Confidence, Reason: out.Reason}, nil
}

// InferColumns implements llm.ColumnInferrer.
func (c *Client) InferColumns(ctx context.Context, sample [][]string) (*llm.ColumnSuggestion, error) {
	if len(sample) == 0 {
		return nil, nil
	}
	cols := 0
	for _, row := range sample {
		cols = max(cols, len(row))
	}
	rid := uuid.New().String()

	content, err := c.complete(ctx, rid, llm.BuildColumnsSystemPrompt(), llm.BuildColumnsUserPrompt(sample),
		llm.BuildColumnsJSONSchema(len(sample), cols), "header_row", "identifier_column", "descriptive_column")
	if err != nil {
		return nil, err
	}
	var out llm.ColumnSuggestion
	if err := json.Unmarshal(content, &out); err != nil {
		return nil, fmt.Errorf("unmarshal columns: %w", err)
	}
	c.logger.Info("llm.columns.ok",
		"req_id", rid,
		"header_row", out.HeaderRow,
		"identifier_column", out.IdentifierColumn,
		"descriptive_column", out.DescriptiveColumn,
	)
	return &out, nil
}

// complete sends one chat completion and returns the schema-valid JSON content.
func (c *Client) complete(ctx context.Context, rid, system, user string, schema map[string]any, numericKeys ...string) ([]byte, error) {
	if c.cfg.APIKey == "" {
		return nil, common.ErrAssistUnavailable
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	start := time.Now()

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
			{"role": "system", "content": "JSON Schema:\n" + mustJSON(schema)},
		},
	}
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}

	raw, status, err := llm.SendJSON(common.WithRequestID(ctx, rid), c.http, endpoint, body, headers, c.logger)
	if err != nil {
		c.logger.Error("llm.complete.http_error",
			"req_id", rid, "status", status, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, errors.Join(common.ErrAssistUnavailable, err)
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return nil, fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		return nil, fmt.Errorf("no choices in openai response")
	}
	content := []byte(llm.StripCodeFence(cc.Choices[0].Message.Content))

	verr := llm.ValidateJSONAgainstSchema(schema, content)
	if verr == nil {
		return content, nil
	}
	if !c.cfg.LenientOptional {
		c.logger.Error("llm.complete.schema_validation_failed", "req_id", rid, "error", verr, "content", string(content))
		return nil, fmt.Errorf("schema validation failed: %w", verr)
	}
	cleaned, changed, sErr := llm.SanitizeNumbers(content, numericKeys...)
	if sErr != nil {
		c.logger.Error("llm.complete.sanitize_failed", "req_id", rid, "error", sErr)
		return nil, fmt.Errorf("sanitize failed: %w", sErr)
	}
	if err := llm.ValidateJSONAgainstSchema(schema, cleaned); err != nil {
		c.logger.Error("llm.complete.schema_validation_failed", "req_id", rid, "error", err, "content", string(content))
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}
	c.logger.Warn("llm.complete.lenient_sanitize_applied", "req_id", rid, "changed", changed)
	return cleaned, nil
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
