// Package ai implements the recommendation gateway: prompt composition, a
// bounded-retry call to an external chat-completion model and normalization
// of the response into at most three product suggestions.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// ChatCompleter is the outbound dependency of the gateway; satisfied by
// Client and faked in tests.
type ChatCompleter interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Client calls an OpenAI-compatible chat-completions endpoint.
type Client struct {
	apiKey      string
	baseURL     string
	model       string
	maxAttempts int
	timeout     time.Duration // per-attempt deadline
	http        *http.Client
}

// NewClient builds a client. One logical client exists per process; the
// transport timeout caps a single exchange independently of the per-attempt
// deadline.
func NewClient(apiKey, baseURL, model string, maxAttempts int, timeout time.Duration) *Client {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if timeout <= 0 {
		timeout = 25 * time.Second
	}
	return &Client{
		apiKey:      apiKey,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		model:       model,
		maxAttempts: maxAttempts,
		timeout:     timeout,
		http:        &http.Client{Timeout: 30 * time.Second},
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
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

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete sends one system+user exchange and returns the model's text.
// Attempts are capped; network aborts, resets, 5xx and 429 are retried with
// a backoff of one second times the attempt number, everything else fails
// fast.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return "", err
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			delay := time.Duration(attempt-1) * time.Second
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		text, err := c.attempt(ctx, body)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !retriable(err) {
			return "", err
		}
	}
	return "", fmt.Errorf("ai: %d attempts exhausted: %w", c.maxAttempts, lastErr)
}

func (c *Client) attempt(ctx context.Context, body []byte) (string, error) {
	actx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(actx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("ai request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("ai response read: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var ae apiError
		msg := strings.TrimSpace(string(respBody))
		if json.Unmarshal(respBody, &ae) == nil && ae.Error.Message != "" {
			msg = ae.Error.Message
		}
		return "", &statusError{code: resp.StatusCode, message: msg}
	}

	var cr chatResponse
	if err := json.Unmarshal(respBody, &cr); err != nil {
		return "", fmt.Errorf("ai response decode: %w", err)
	}
	if len(cr.Choices) == 0 {
		return "", errors.New("ai response has no choices")
	}
	return cr.Choices[0].Message.Content, nil
}

type statusError struct {
	code    int
	message string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("ai upstream %d: %s", e.code, e.message)
}

// retriable covers network aborts, connection resets, 5xx and 429.
func retriable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "connection reset") || strings.Contains(s, "broken pipe") ||
		strings.Contains(s, "EOF")
}
