package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"neuraslide/internal/types"
)

// InstagramClient talks to the Instagram Graph API for outbound actions:
// replying to comments and sending direct messages. All calls go through
// the shared BaseClient for circuit breaking and retries.
type InstagramClient struct {
	base    *BaseClient
	baseURL string
}

// NewInstagramClient creates a Graph API client. baseURL is typically
// https://graph.instagram.com.
func NewInstagramClient(baseURL string, timeout time.Duration, opts ...BaseClientOption) *InstagramClient {
	return &InstagramClient{
		base: NewBaseClient(
			&http.Client{Timeout: timeout},
			"instagram-graph",
			DefaultRetryPolicy(),
			"neuraslide/1.0",
			opts...,
		),
		baseURL: baseURL,
	}
}

type graphErrorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// ReplyToComment posts a reply to the comment identified by commentID.
func (c *InstagramClient) ReplyToComment(ctx context.Context, accessToken, commentID, text string) error {
	form := url.Values{}
	form.Set("message", text)
	form.Set("access_token", accessToken)

	endpoint := fmt.Sprintf("%s/%s/replies", c.baseURL, url.PathEscape(commentID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		bytes.NewBufferString(form.Encode()))
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build comment reply request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return c.execute(req, "comment reply")
}

// SendMessage sends a direct message to the recipient. The recipient must
// have messaged the account first (standard messaging window rules apply
// upstream; the Graph API rejects out-of-window sends).
func (c *InstagramClient) SendMessage(ctx context.Context, accessToken, recipientID, text string) error {
	payload := map[string]any{
		"recipient": map[string]string{"id": recipientID},
		"message":   map[string]string{"text": text},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode message payload", err)
	}

	endpoint := fmt.Sprintf("%s/me/messages?access_token=%s", c.baseURL, url.QueryEscape(accessToken))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build send message request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.execute(req, "direct message send")
}

func (c *InstagramClient) execute(req *http.Request, action string) error {
	resp, err := c.base.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	// Non-retryable 4xx: surface the Graph API error message when present.
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var envelope graphErrorEnvelope
	message := fmt.Sprintf("%s failed with status %d", action, resp.StatusCode)
	if json.Unmarshal(raw, &envelope) == nil && envelope.Error.Message != "" {
		message = fmt.Sprintf("%s failed: %s", action, envelope.Error.Message)
	}
	return types.NewAppErrorWithDetails(
		types.ErrCodeUpstreamInstagram,
		message,
		nil,
		map[string]any{"status": resp.StatusCode, "graph_code": envelope.Error.Code},
	)
}
