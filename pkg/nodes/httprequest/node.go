// Package httprequest implements the call-external-api node: an HTTP
// request whose response is captured into an execution variable.
package httprequest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/atendohq/atendo/pkg/models"
	"github.com/atendohq/atendo/pkg/protocol"
	"github.com/atendohq/atendo/pkg/template"
)

const (
	defaultTimeout        = 30 * time.Second
	defaultResultVariable = "api_response"
	maxResponseBytes      = 1024 * 1024
)

type retryConfig struct {
	attempts int
	delay    time.Duration
}

type HTTPRequestNode struct {
	id             string
	url            string
	method         string
	headers        map[string]string
	body           string
	timeout        time.Duration
	resultVariable string
	retries        retryConfig
}

func NewHTTPRequestNode(id string, config map[string]any) (*HTTPRequestNode, error) {
	url, _ := config["url"].(string)
	if url == "" {
		return nil, fmt.Errorf("call-external-api node %s: url is required", id)
	}

	method, _ := config["method"].(string)
	if method == "" {
		method = http.MethodGet
	}

	headers := make(map[string]string)
	if raw, ok := config["headers"].(map[string]any); ok {
		for key, value := range raw {
			if str, ok := value.(string); ok {
				headers[key] = str
			}
		}
	}

	body, _ := config["body"].(string)

	timeout := defaultTimeout
	if seconds, ok := config["timeout"].(float64); ok && seconds > 0 {
		timeout = time.Duration(seconds) * time.Second
	}

	resultVariable, _ := config["result_variable"].(string)
	if resultVariable == "" {
		resultVariable = defaultResultVariable
	}

	retries := retryConfig{attempts: 1}
	if raw, ok := config["retries"].(map[string]any); ok {
		if attempts, ok := raw["attempts"].(float64); ok && attempts >= 1 {
			retries.attempts = int(attempts)
		}

		if delay, ok := raw["delay"].(float64); ok && delay >= 0 {
			retries.delay = time.Duration(delay) * time.Millisecond
		}
	}

	return &HTTPRequestNode{
		id:             id,
		url:            url,
		method:         strings.ToUpper(method),
		headers:        headers,
		body:           body,
		timeout:        timeout,
		resultVariable: resultVariable,
		retries:        retries,
	}, nil
}

func (n *HTTPRequestNode) Kind() models.NodeKind {
	return models.NodeKindHTTPRequest
}

// HTTPError is a response with status 400 or above.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

func (n *HTTPRequestNode) Execute(ctx context.Context, nodeCtx protocol.NodeContext) (protocol.NodeOutcome, error) {
	url, err := template.RenderWithExecution(n.url, nodeCtx.Execution, nodeCtx.Inbound)
	if err != nil {
		return protocol.NodeOutcome{}, fmt.Errorf("rendering url: %w", err)
	}

	body, err := template.RenderWithExecution(n.body, nodeCtx.Execution, nodeCtx.Inbound)
	if err != nil {
		return protocol.NodeOutcome{}, fmt.Errorf("rendering body: %w", err)
	}

	headers := make(map[string]string, len(n.headers))

	for key, value := range n.headers {
		rendered, err := template.RenderWithExecution(value, nodeCtx.Execution, nodeCtx.Inbound)
		if err != nil {
			return protocol.NodeOutcome{}, fmt.Errorf("rendering header %s: %w", key, err)
		}

		headers[key] = rendered
	}

	var lastErr error

	for attempt := 1; attempt <= n.retries.attempts; attempt++ {
		if attempt > 1 {
			time.Sleep(n.retries.delay)
		}

		result, err := n.performRequest(ctx, url, body, headers)
		if err == nil {
			return protocol.NodeOutcome{
				Summary:   "api call succeeded",
				Output:    result,
				Variables: map[string]any{n.resultVariable: result},
			}, nil
		}

		lastErr = err

		// Client errors are not retried, only server and network failures.
		httpErr := &HTTPError{}
		if errors.As(err, &httpErr) && httpErr.StatusCode < 500 {
			break
		}
	}

	return protocol.NodeOutcome{}, fmt.Errorf("call-external-api node %s failed after %d attempts: %w", n.id, n.retries.attempts, lastErr)
}

func (n *HTTPRequestNode) performRequest(ctx context.Context, url, body string, headers map[string]string) (map[string]any, error) {
	var reqBody io.Reader
	if body != "" {
		reqBody = strings.NewReader(body)
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, n.method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	if body != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	result := map[string]any{
		"status_code": resp.StatusCode,
		"body":        string(respBody),
	}

	var jsonBody any
	if err := json.Unmarshal(respBody, &jsonBody); err == nil {
		result["json"] = jsonBody
	}

	return result, nil
}
