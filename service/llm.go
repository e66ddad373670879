package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/AnTengye/keydates/config"
	"github.com/AnTengye/keydates/model"
	"github.com/AnTengye/keydates/pkg/logger"
	"github.com/google/uuid"
)

// maxErrorBody caps how much of an upstream error body is kept.
const maxErrorBody = 2048

type LLMService struct {
	config     *config.LLMConfig
	httpClient *http.Client
}

// ChatCompletionRequest is the body sent to the chat completions endpoint.
type ChatCompletionRequest struct {
	Model          string              `json:"model"`
	Messages       []model.ChatMessage `json:"messages"`
	Temperature    float64             `json:"temperature"`
	ResponseFormat ResponseFormat      `json:"response_format"`
}

type ResponseFormat struct {
	Type string `json:"type"`
}

// ChatCompletionResponse keeps only what the extractor reads.
type ChatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string          `json:"content"`
			JSON    json.RawMessage `json:"json,omitempty"`
		} `json:"message"`
	} `json:"choices"`
}

func NewLLMService(cfg *config.LLMConfig) *LLMService {
	return &LLMService{
		config: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

// Complete sends messages at temperature 0 in JSON mode and returns the raw
// content of the first choice.
func (s *LLMService) Complete(ctx context.Context, messages []model.ChatMessage) (string, error) {
	if s.config.APIKey == "" {
		return "", ErrAuthMissing
	}

	rid := uuid.New().String()
	start := time.Now()

	jsonData, err := json.Marshal(ChatCompletionRequest{
		Model:          s.config.Model,
		Messages:       messages,
		Temperature:    0,
		ResponseFormat: ResponseFormat{Type: "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIURL, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	logger.Debug(ctx, "llm.http.request",
		"req_id", rid,
		"model", s.config.Model,
		"messages", len(messages),
		"content_length", len(jsonData),
	)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		logger.Error(ctx, "llm.http.send_error", "req_id", rid, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return "", fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", ErrTransport, err)
	}

	logger.Info(ctx, "llm.http.response",
		"req_id", rid,
		"status", resp.StatusCode,
		"bytes", len(body),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return "", &UpstreamError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var result ChatCompletionResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrTransport, err)
	}

	return firstChoiceContent(result), nil
}

func firstChoiceContent(r ChatCompletionResponse) string {
	if len(r.Choices) == 0 {
		return ""
	}
	msg := r.Choices[0].Message
	if msg.Content != "" {
		return msg.Content
	}
	if len(msg.JSON) > 0 && string(msg.JSON) != "null" {
		return string(msg.JSON)
	}
	return ""
}
