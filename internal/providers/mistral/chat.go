package mistral

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"meetscribe/internal/domain"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

const summarySystemPrompt = "You are an assistant that summarizes meetings. From the provided transcript, " +
	"produce a structured JSON summary with these fields:\n" +
	"- key_points: list of the key points discussed\n" +
	"- decisions: list of decisions made\n" +
	"- action_items: list of actions, each with 'description' and 'assignee' (null when unidentified)\n" +
	"Respond ONLY with the JSON, no text before or after."

const titleSystemPrompt = "You are an assistant that writes concise meeting titles. " +
	"Produce a single short title (at most eight words) for the provided transcript. " +
	"Respond with the title only."

// Summarize sends the full diarized transcript to the chat endpoint and
// returns a structured summary.
func (p *Provider) Summarize(ctx context.Context, transcript string) (domain.Summary, error) {
	content, err := p.chat(ctx, chatRequest{
		Model: p.cfg.ChatModel,
		Messages: []chatMessage{
			{Role: "system", Content: summarySystemPrompt},
			{Role: "user", Content: "Meeting transcript:\n\n" + transcript},
		},
		Temperature:    0.2,
		MaxTokens:      2000,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return domain.Summary{}, err
	}

	var summary domain.Summary
	if err := json.Unmarshal([]byte(content), &summary); err != nil {
		return domain.Summary{}, fmt.Errorf("failed to decode summary: %w", err)
	}
	return summary, nil
}

// Title generates a short title for the transcript.
func (p *Provider) Title(ctx context.Context, transcript string) (string, error) {
	content, err := p.chat(ctx, chatRequest{
		Model: p.cfg.ChatModel,
		Messages: []chatMessage{
			{Role: "system", Content: titleSystemPrompt},
			{Role: "user", Content: "Meeting transcript:\n\n" + transcript},
		},
		Temperature: 0.3,
		MaxTokens:   50,
	})
	if err != nil {
		return "", err
	}
	return strings.Trim(strings.TrimSpace(content), `"`), nil
}

func (p *Provider) chat(ctx context.Context, request chatRequest) (string, error) {
	payload, err := json.Marshal(request)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.APIBaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("chat API error %d: %s", resp.StatusCode, detail)
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("failed to decode chat response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", errors.New("chat response contained no choices")
	}
	return decoded.Choices[0].Message.Content, nil
}
