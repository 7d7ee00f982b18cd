// Package llm implements the client side of the external LLM HTTP contract
//: POST a chat-completion request, extract the assistant message, and
// surface transport/timeout failures to the caller for retry classification.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Request is a chat-completion request body.
type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

// Message is a single chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseEnvelope struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Client calls the external LLM endpoint over HTTP.
type Client struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	tracer     oteltrace.Tracer
}

// New builds a Client. A nil httpClient is replaced by one with a 30s
// per-call Timeout; a non-nil httpClient is used as given, Timeout included.
func New(httpClient *http.Client, endpoint, apiKey string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{httpClient: httpClient, endpoint: endpoint, apiKey: apiKey, tracer: otel.Tracer("dirt-man/llm")}
}

// Complete calls the endpoint and returns the assistant's message content.
// The span exists purely for correlation with the rest of the pipeline's
// trace, not for sampling decisions.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	requestID := uuid.New().String()
	ctx, span := c.tracer.Start(ctx, "llm.complete", oteltrace.WithAttributes(
		attribute.String("llm.model", req.Model),
		attribute.String("llm.request_id", requestID),
	))
	defer span.End()

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("llm: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llm: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Request-Id", requestID)
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &TransientError{Cause: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TransientError{Cause: err}
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return "", &TransientError{Cause: fmt.Errorf("llm: status %d: %s", resp.StatusCode, respBody)}
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("llm: status %d: %s", resp.StatusCode, respBody)
	}

	var envelope responseEnvelope
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return "", fmt.Errorf("llm: decode response: %w", err)
	}
	if len(envelope.Choices) == 0 {
		return "", fmt.Errorf("llm: empty choices in response")
	}
	return envelope.Choices[0].Message.Content, nil
}

// TransientError marks a failure the caller should retry.
type TransientError struct {
	Cause error
}

func (e *TransientError) Error() string { return "llm: transient: " + e.Cause.Error() }
func (e *TransientError) Unwrap() error { return e.Cause }
