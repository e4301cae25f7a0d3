package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"strings"
	"time"

	"neuraslide/internal/types"
)

// fallbackResponses is the deterministic acknowledgement pool used when no
// AI provider is configured or the provider call fails. Selection hashes
// the incoming message so retried events produce the same reply.
var fallbackResponses = []string{
	"Thanks for reaching out! We'll get back to you shortly.",
	"Got your message! Someone from our team will reply soon.",
	"Thanks for your message! We appreciate you reaching out.",
	"We received your message and will respond as soon as we can.",
}

// AIClient generates response text via an OpenAI-compatible chat completion
// endpoint. When no API key is configured the client runs in fallback mode
// and serves canned acknowledgements.
type AIClient struct {
	base      *BaseClient
	baseURL   string
	apiKey    types.SecretString
	model     string
	maxTokens int
}

// NewAIClient creates a text-generation client. An empty apiKey puts the
// client in fallback-only mode.
func NewAIClient(baseURL string, apiKey types.SecretString, model string, maxTokens int, timeout time.Duration, opts ...BaseClientOption) *AIClient {
	return &AIClient{
		base: NewBaseClient(
			&http.Client{Timeout: timeout},
			"ai-provider",
			DefaultRetryPolicy(),
			"neuraslide/1.0",
			opts...,
		),
		baseURL:   baseURL,
		apiKey:    apiKey,
		model:     model,
		maxTokens: maxTokens,
	}
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
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

// GenerateText produces a reply for the incoming message guided by the
// automation's prompt. Provider failures degrade to the fallback pool
// rather than failing the caller; the result is truncated to maxLength.
func (c *AIClient) GenerateText(ctx context.Context, prompt, incomingMessage string, maxLength int) (string, error) {
	if c.apiKey.Unmask() == "" {
		return truncate(fallbackFor(incomingMessage), maxLength), nil
	}

	text, err := c.complete(ctx, prompt, incomingMessage)
	if err != nil {
		return truncate(fallbackFor(incomingMessage), maxLength), nil
	}
	return truncate(text, maxLength), nil
}

func (c *AIClient) complete(ctx context.Context, prompt, incomingMessage string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: prompt},
			{Role: "user", Content: incomingMessage},
		},
		MaxTokens: c.maxTokens,
	})
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode chat request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build chat request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey.Unmask())

	resp, err := c.base.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", types.NewAppError(
			types.ErrCodeUpstreamAI,
			fmt.Sprintf("chat completion failed with status %d", resp.StatusCode),
			nil,
		)
	}

	var parsed chatResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&parsed); err != nil {
		return "", types.NewAppError(types.ErrCodeUpstreamAI, "failed to decode chat response", err)
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return "", types.NewAppError(types.ErrCodeUpstreamAI, "chat response contained no content", nil)
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

func fallbackFor(incomingMessage string) string {
	h := fnv.New32a()
	h.Write([]byte(incomingMessage))
	return fallbackResponses[h.Sum32()%uint32(len(fallbackResponses))]
}

// truncate caps text at maxLength runes, replacing the tail with an
// ellipsis marker. Caps too small for "..." get the single-rune ellipsis so
// the cut stays visible. maxLength <= 0 means unlimited.
func truncate(text string, maxLength int) string {
	if maxLength <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= maxLength {
		return text
	}
	if maxLength <= 3 {
		return string(runes[:maxLength-1]) + "…"
	}
	return string(runes[:maxLength-3]) + "..."
}
