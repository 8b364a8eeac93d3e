// Package executor is the HTTP client for the code-execution collaborator.
// The sandbox compiles and runs submissions against test cases and answers
// with an ordered verdict list; everything else about it is out of scope.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"codearena/internal/common"
	"codearena/internal/domain/model"
)

// Client executes code remotely. Run exercises the public test cases only;
// Submit the full ordered set. The response shape is identical, the
// persistence semantics differ at the caller.
type Client interface {
	Run(ctx context.Context, token, problemID, language, code string) ([]model.Verdict, error)
	Submit(ctx context.Context, token, problemID, language, code string) ([]model.Verdict, error)
}

type httpClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) Client {
	return &httpClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type executeRequest struct {
	Language string `json:"language"`
	Code     string `json:"code"`
}

func (c *httpClient) Run(ctx context.Context, token, problemID, language, code string) ([]model.Verdict, error) {
	return c.execute(ctx, token, "/api/execute-run/"+problemID, language, code)
}

func (c *httpClient) Submit(ctx context.Context, token, problemID, language, code string) ([]model.Verdict, error) {
	return c.execute(ctx, token, "/api/execute-submit/"+problemID, language, code)
}

func (c *httpClient) execute(ctx context.Context, token, path, language, code string) ([]model.Verdict, error) {
	body, err := json.Marshal(executeRequest{Language: language, Code: code})
	if err != nil {
		return nil, fmt.Errorf("executor: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("executor: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executor unreachable: %w", common.ErrCollaborator)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		// Short-circuit, never retried.
		return nil, common.ErrAccessDenied
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s: %w", upstreamMessage(resp.Body, resp.StatusCode), common.ErrCollaborator)
	}

	var verdicts []model.Verdict
	if err := json.NewDecoder(resp.Body).Decode(&verdicts); err != nil {
		return nil, fmt.Errorf("executor: decode verdicts: %w", common.ErrCollaborator)
	}
	return verdicts, nil
}

// upstreamMessage surfaces the payload's message when present, else a
// generic one.
func upstreamMessage(body io.Reader, status int) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.NewDecoder(body).Decode(&payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return fmt.Sprintf("executor returned status %d", status)
}
