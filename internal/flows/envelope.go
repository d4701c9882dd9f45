package flows

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// maxBody bounds how much of an auth response is read.
const maxBody = 1 << 20

// Envelope is the response wrapper every auth endpoint returns.
type Envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// APIError reports a non-2xx response from an auth endpoint.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return "auth endpoint: status " + strconv.Itoa(e.Status)
	}
	return fmt.Sprintf("auth endpoint: status %d: %s", e.Status, e.Message)
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

type call struct {
	method string
	path   string
	body   any
	token  string
}

func send(ctx context.Context, client *http.Client, c call, deps Deps) (*Envelope, error) {
	var payload io.Reader = http.NoBody
	if c.body != nil {
		raw, err := json.Marshal(c.body)
		if err != nil {
			return nil, fmt.Errorf("encode %s body: %w", c.path, err)
		}
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, c.method, deps.resolve(c.path), payload)
	if err != nil {
		return nil, err
	}
	for k, vs := range deps.Headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if c.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set(deps.authHeader(), "Bearer "+c.token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, err
	}

	var env Envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		if decodeErr == nil {
			apiErr.Message = env.Message
		}
		return nil, apiErr
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: %v", deps.Errors.Malformed, decodeErr)
	}
	return &env, nil
}

func rejected(sentinel error, env *Envelope) error {
	if env.Message == "" {
		return sentinel
	}
	return fmt.Errorf("%w: %s", sentinel, env.Message)
}
