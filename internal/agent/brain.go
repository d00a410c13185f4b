package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/rahul/casepilot/internal/driver"
	"github.com/rahul/casepilot/internal/observability"
	"github.com/tidwall/gjson"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
	"golang.org/x/time/rate"
)

// ErrBadAnswer is returned when the model reply carries no usable result.
var ErrBadAnswer = errors.New("model returned an unusable answer")

// Brain answers the driver's questions about a page with an LLM. Every
// prompt asks for a JSON object with a "result" field.
type Brain struct {
	Model     llms.Model
	ModelName string
	Prompts   *PromptManager
	Logger    *observability.Logger // optional
	Limiter   *rate.Limiter         // optional
}

var _ driver.Brain = (*Brain)(nil)

func NewBrain(model llms.Model, modelName string, prompts *PromptManager, logger *observability.Logger, limiter *rate.Limiter) *Brain {
	if prompts == nil {
		prompts = NewPromptManager("")
	}
	return &Brain{
		Model:     model,
		ModelName: modelName,
		Prompts:   prompts,
		Logger:    logger,
		Limiter:   limiter,
	}
}

// Locate picks the element matching prompt. An empty ID means no match.
func (b *Brain) Locate(ctx context.Context, prompt string, elements []driver.Element) (string, error) {
	list, err := json.Marshal(elements)
	if err != nil {
		return "", fmt.Errorf("encode elements: %w", err)
	}
	input := fmt.Sprintf("TARGET: %s\n\nELEMENTS:\n%s", prompt, list)

	answer, err := b.ask(ctx, OpLocate, input)
	if err != nil {
		return "", err
	}
	res, err := parseAnswer(answer)
	if err != nil {
		return "", err
	}
	if res.Type == gjson.Null {
		return "", nil
	}
	return res.String(), nil
}

// Extract answers demand from page text in the shape kind asks for.
func (b *Brain) Extract(ctx context.Context, kind driver.ExtractKind, demand, page string, opts map[string]any) (any, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "EXPECTED TYPE: %s\n", kind)
	fmt.Fprintf(&sb, "QUESTION: %s\n", demand)
	if len(opts) > 0 {
		o, err := json.Marshal(opts)
		if err != nil {
			return nil, fmt.Errorf("encode options: %w", err)
		}
		fmt.Fprintf(&sb, "OPTIONS: %s\n", o)
	}
	sb.WriteString("\nPAGE:\n")
	sb.WriteString(page)

	answer, err := b.ask(ctx, OpExtract, sb.String())
	if err != nil {
		return nil, err
	}
	res, err := parseAnswer(answer)
	if err != nil {
		return nil, err
	}
	return res.Value(), nil
}

// Judge decides whether statement holds for page.
func (b *Brain) Judge(ctx context.Context, statement, page string) (driver.Verdict, error) {
	input := fmt.Sprintf("STATEMENT: %s\n\nPAGE:\n%s", statement, page)

	answer, err := b.ask(ctx, OpJudge, input)
	if err != nil {
		return driver.Verdict{}, err
	}
	res, err := parseAnswer(answer)
	if err != nil {
		return driver.Verdict{}, err
	}
	return driver.Verdict{
		Pass:   res.Type == gjson.True,
		Reason: gjson.Get(stripFences(answer), "reason").String(),
	}, nil
}

func (b *Brain) ask(ctx context.Context, op Operation, input string) (string, error) {
	if b.Limiter != nil {
		if err := b.Limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	messages := []llms.MessageContent{
		{
			Role:  schema.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(b.Prompts.System(op))},
		},
		{
			Role:  schema.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(input)},
		},
	}

	resp, err := b.Model.GenerateContent(ctx, messages, llms.WithTemperature(0))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: %w: no choices", op, ErrBadAnswer)
	}

	choice := resp.Choices[0]
	b.Logger.LogLLM(string(op), input, choice.Content)
	if choice.GenerationInfo != nil {
		b.Logger.LogCost(string(op), infoInt(choice.GenerationInfo, "PromptTokens"), infoInt(choice.GenerationInfo, "CompletionTokens"), b.ModelName)
	}
	log.Printf("[Brain] %s answered %d chars", op, len(choice.Content))
	return choice.Content, nil
}

// parseAnswer pulls the "result" field out of a model reply.
func parseAnswer(content string) (gjson.Result, error) {
	body := stripFences(content)
	if !gjson.Valid(body) {
		start := strings.Index(body, "{")
		end := strings.LastIndex(body, "}")
		if start < 0 || end <= start || !gjson.Valid(body[start:end+1]) {
			return gjson.Result{}, fmt.Errorf("%w: %q", ErrBadAnswer, truncate(content, 200))
		}
		body = body[start : end+1]
	}
	res := gjson.Get(body, "result")
	if !res.Exists() {
		return gjson.Result{}, fmt.Errorf("%w: missing result in %q", ErrBadAnswer, truncate(content, 200))
	}
	return res, nil
}

// stripFences removes a surrounding markdown code fence.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.Index(s, "\n"); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func infoInt(info map[string]any, key string) int {
	switch v := info[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
