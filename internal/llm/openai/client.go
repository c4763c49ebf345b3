package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goopenai "github.com/sashabaranov/go-openai"

	"github.com/joseph-ayodele/gig-earnings-audit/internal/entity"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/llm"
)

// Refine implements llm.Refiner using a JSON-object chat completion.
func (c *Client) Refine(ctx context.Context, req llm.RefineRequest) (*entity.EarningsPatch, []byte, error) {
	rid := uuid.New().String()
	start := time.Now()

	key := llm.CacheKey(c.cfg.Model, req.PlatformHint+"\x00"+req.RawText)
	if cached, ok := c.cache.Get(key); ok {
		var out entity.EarningsPatch
		if err := json.Unmarshal(cached, &out); err == nil {
			c.logger.Info("llm.refine.cache_hit", "req_id", rid, "model", c.cfg.Model)
			return &out, cached, nil
		}
	}

	c.logger.Info("llm.refine.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"text_len", len(req.RawText),
		"platform_hint", req.PlatformHint,
	)

	schema := llm.BuildEarningsJSONSchema()
	request := goopenai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
		ResponseFormat: &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: llm.BuildSystemPrompt(req)},
			{Role: goopenai.ChatMessageRoleUser, Content: llm.BuildUserPrompt(req) + "\n\nReturn ONLY JSON that matches the provided schema."},
			{Role: goopenai.ChatMessageRoleSystem, Content: "JSON Schema:\n" + mustJSON(schema)},
		},
	}

	resp, err := c.chat.CreateChatCompletion(ctx, request)
	if err != nil {
		attrs := []any{"req_id", rid, "error", err, "elapsed_ms", time.Since(start).Milliseconds()}
		var apiErr *goopenai.APIError
		if errors.As(err, &apiErr) {
			attrs = append(attrs, "status", apiErr.HTTPStatusCode)
		}
		c.logger.Error("llm.refine.api_error", attrs...)
		return nil, nil, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		c.logger.Error("llm.refine.no_choices",
			"req_id", rid,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, nil, fmt.Errorf("no choices in openai response")
	}
	rawContent := []byte(llm.StripCodeFence(resp.Choices[0].Message.Content))

	// Validate strictly first.
	if err := llm.ValidateJSONAgainstSchema(schema, rawContent); err != nil {
		if !c.cfg.LenientOptional {
			c.logger.Error("llm.refine.schema_validation_failed",
				"req_id", rid, "error", err,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return nil, rawContent, fmt.Errorf("schema validation failed: %w", err)
		}
		cleaned, dropped, sErr := llm.NormalizeAndSanitizeJSON(rawContent, c.logger)
		if sErr != nil {
			c.logger.Error("llm.refine.sanitize_failed",
				"req_id", rid, "error", sErr,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return nil, rawContent, fmt.Errorf("sanitize failed: %w", sErr)
		}
		if vErr := llm.ValidateJSONAgainstSchema(schema, cleaned); vErr != nil {
			c.logger.Error("llm.refine.schema_validation_failed",
				"req_id", rid, "error", vErr,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return nil, cleaned, fmt.Errorf("schema validation failed: %w", vErr)
		}
		c.logger.Warn("llm.refine.lenient_sanitize_applied",
			"req_id", rid, "dropped", dropped,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		rawContent = cleaned
	}

	var out entity.EarningsPatch
	if err := json.Unmarshal(rawContent, &out); err != nil {
		c.logger.Error("llm.refine.unmarshal_failed",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, rawContent, fmt.Errorf("unmarshal fields: %w", err)
	}
	c.cache.Set(key, rawContent)

	c.logger.Info("llm.refine.ok",
		"req_id", rid,
		"has_total", out.Total != nil,
		"penalties", len(out.Penalties),
		"ratings", len(out.Ratings),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return &out, rawContent, nil
}

// Transcribe implements llm.Transcriber with a vision chat completion.
func (c *Client) Transcribe(ctx context.Context, imagePath string) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	dataURL, mimeType, err := llm.ReadImageAsDataURL(imagePath)
	if err != nil {
		c.logger.Error("llm.transcribe.read_failed", "req_id", rid, "path", imagePath, "error", err)
		return "", err
	}
	c.logger.Info("llm.transcribe.start", "req_id", rid, "model", c.cfg.VisionModel, "mime", mimeType)

	resp, err := c.chat.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: c.cfg.VisionModel,
		Messages: []goopenai.ChatCompletionMessage{
			{
				Role: goopenai.ChatMessageRoleUser,
				MultiContent: []goopenai.ChatMessagePart{
					{Type: goopenai.ChatMessagePartTypeText, Text: llm.BuildTranscribePrompt()},
					{Type: goopenai.ChatMessagePartTypeImageURL, ImageURL: &goopenai.ChatMessageImageURL{
						URL:    dataURL,
						Detail: goopenai.ImageURLDetailHigh,
					}},
				},
			},
		},
	})
	if err != nil {
		c.logger.Error("llm.transcribe.api_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", fmt.Errorf("openai vision: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in openai response")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	c.logger.Info("llm.transcribe.ok",
		"req_id", rid,
		"text_len", len(text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
