// Package gateway talks GraphQL over HTTP to the learning platform backend.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/enrolhub/checkout-engine/internal/domain"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxResponseBytes = 4 << 20

type tokenKey struct{}

// WithToken attaches the caller's bearer token to ctx. Every backend call
// made with the returned context is authenticated as that caller.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func tokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

type Client struct {
	url        string
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(url string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		url:     url,
		timeout: timeout,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   map[string]json.RawMessage `json:"data"`
	Errors []graphQLError             `json:"errors"`
}

type graphQLError struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// RemoteError carries the messages of a GraphQL error response. It matches
// domain.ErrRemote with errors.Is.
type RemoteError struct {
	Operation string
	Messages  []string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s: %s", domain.ErrRemote, e.Operation, strings.Join(e.Messages, "; "))
}

func (e *RemoteError) Unwrap() error {
	return domain.ErrRemote
}

// do runs one operation and decodes the data field named field into out.
// A JSON null leaves out at its zero value.
func (c *Client) do(ctx context.Context, field, query string, variables map[string]any, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("encode %s request: %w", field, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", field, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token := tokenFrom(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrNetwork, field, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: %s: read body: %v", domain.ErrNetwork, field, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("backend returned unexpected status", "operation", field, "status", resp.StatusCode)
		return fmt.Errorf("%w: %s: unexpected status %d", domain.ErrNetwork, field, resp.StatusCode)
	}

	var payload graphQLResponse
	err = json.Unmarshal(raw, &payload)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrMalformedResponse, field, err)
	}

	if len(payload.Errors) > 0 {
		messages := make([]string, len(payload.Errors))
		for i, e := range payload.Errors {
			messages[i] = e.Message
		}
		return &RemoteError{Operation: field, Messages: messages}
	}

	data, ok := payload.Data[field]
	if !ok {
		return fmt.Errorf("%w: %s: missing data field", domain.ErrMalformedResponse, field)
	}

	err = json.Unmarshal(data, out)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrMalformedResponse, field, err)
	}

	return nil
}
