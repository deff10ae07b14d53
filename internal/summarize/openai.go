package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"memoai/internal/domain"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"
	defaultTimeout = 45 * time.Second
)

// Config controls the OpenAI summarization client.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenAIClient produces meeting summaries via the chat-completions API.
type OpenAIClient struct {
	cfg    Config
	client *http.Client
	log    *zap.Logger
}

func NewOpenAIClient(cfg Config, log *zap.Logger) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &OpenAIClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log,
	}, nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Summarize condenses a transcript, optionally enriched with the user's
// notes, into the requested style.
func (c *OpenAIClient) Summarize(ctx context.Context, transcript string, notes string, style domain.SummaryStyle) (string, error) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return "", errors.New("nothing to summarize")
	}

	payload, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: styleInstruction(style)},
			{Role: "user", Content: buildUserPrompt(transcript, notes)},
		},
		Temperature: 0.3,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("summarization request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		c.log.Warn("summarization rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("model", c.cfg.Model),
		)
		return "", fmt.Errorf("openai http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode summarization response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("summarization response contained no choices")
	}

	summary := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if summary == "" {
		return "", errors.New("summarization response was empty")
	}
	return summary, nil
}

func styleInstruction(style domain.SummaryStyle) string {
	switch style {
	case domain.SummaryStyleHeadline:
		return "You summarize meeting transcripts. Respond with a single short headline, no more than twelve words, capturing the main outcome."
	case domain.SummaryStyleParagraph:
		return "You summarize meeting transcripts. Respond with one concise paragraph covering decisions, owners and deadlines."
	default:
		return "You summarize meeting transcripts. Respond with short bullet points covering decisions, action items and open questions. One bullet per line, starting with '- '."
	}
}

func buildUserPrompt(transcript string, notes string) string {
	var b strings.Builder
	b.WriteString("Transcript:\n")
	b.WriteString(transcript)
	if notes = strings.TrimSpace(notes); notes != "" {
		b.WriteString("\n\nAttendee notes:\n")
		b.WriteString(notes)
	}
	return b.String()
}
