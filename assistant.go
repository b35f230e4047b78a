package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"
)

const basePersona = "你是一個專業的AI助手，請用繁體中文回答問題。"

var errEmptyCompletion = errors.New("model returned an empty response")

// Generator produces a completion for a single prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeminiGenerator calls the Gemini API through the genai SDK.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiGenerator{client: client, model: model}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	return resp.Text(), nil
}

var personalityStyles = map[string]string{
	"友善": "請用親切友善的語氣回答。",
	"專業": "請用專業嚴謹的語氣回答。",
	"幽默": "請在回答中適度加入幽默感。",
	"簡潔": "請直接切入重點，避免贅述。",
}

var lengthStyles = map[int]string{
	1: "回答控制在一兩句話。",
	2: "回答保持簡短。",
	3: "回答長度適中。",
	4: "回答請詳細說明。",
	5: "回答請非常詳細，並盡量附上範例。",
}

// Assistant owns prompt templating on top of a Generator. A nil generator
// means no API key was configured and every call fails with
// ErrAssistantDisabled.
type Assistant struct {
	gen Generator
	log *slog.Logger
}

func NewAssistant(gen Generator, log *slog.Logger) *Assistant {
	if log == nil {
		log = discardLogger()
	}
	return &Assistant{gen: gen, log: log}
}

// NewAssistantFromConfig builds a Gemini-backed assistant, or a disabled
// one when the key is missing or the client cannot be created.
func NewAssistantFromConfig(ctx context.Context, cfg LLMConfig, log *slog.Logger) *Assistant {
	if log == nil {
		log = discardLogger()
	}
	if cfg.APIKey == "" {
		log.Warn("no LLM API key configured, assistant disabled")
		return NewAssistant(nil, log)
	}
	gen, err := NewGeminiGenerator(ctx, cfg.APIKey, cfg.Model)
	if err != nil {
		log.Warn("assistant disabled", "error", err)
		return NewAssistant(nil, log)
	}
	return NewAssistant(gen, log)
}

func (a *Assistant) Enabled() bool {
	return a != nil && a.gen != nil
}

// Reply answers a question using the persona described by settings.
func (a *Assistant) Reply(ctx context.Context, question string, settings map[string]any) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", ErrEmptyQuery
	}
	personality, _ := settings["personality"].(string)
	length := settingInt(settings["response_length"], 3)
	return a.generate(ctx, BuildChatPrompt(question, personality, length))
}

// AnalyzeNews asks for a short structured reading of one article.
func (a *Assistant) AnalyzeNews(ctx context.Context, item NewsItem) (string, error) {
	if strings.TrimSpace(item.Title) == "" {
		return "", ErrEmptyQuery
	}
	return a.generate(ctx, BuildNewsAnalysisPrompt(item))
}

func (a *Assistant) generate(ctx context.Context, prompt string) (string, error) {
	if !a.Enabled() {
		return "", ErrAssistantDisabled
	}
	text, err := a.gen.Generate(ctx, prompt)
	if err != nil {
		a.log.Warn("completion failed", "error", err)
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errEmptyCompletion
	}
	return text, nil
}

// BuildChatPrompt concatenates the persona and the user question.
func BuildChatPrompt(question, personality string, length int) string {
	var b strings.Builder
	b.WriteString(basePersona)
	if style, ok := personalityStyles[personality]; ok {
		b.WriteString(style)
	}
	b.WriteString(lengthStyles[clampLength(length)])
	b.WriteString("\n\n用戶問題：")
	b.WriteString(strings.TrimSpace(question))
	return b.String()
}

func BuildNewsAnalysisPrompt(item NewsItem) string {
	return fmt.Sprintf("請簡要分析這則新聞：\n標題：%s\n摘要：%s\n\n"+
		"請提供：1.核心重點 2.產業影響 3.趨勢預測\n用繁體中文回答，保持簡潔。",
		item.Title, item.Summary)
}

func clampLength(n int) int {
	if n < 1 {
		return 1
	}
	if n > 5 {
		return 5
	}
	return n
}

// settingInt reads a numeric setting that may have come from JSON.
func settingInt(v any, def int) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
	}
	return def
}
