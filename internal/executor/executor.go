package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"api-chain/internal/logging"
	"api-chain/internal/request"
	"api-chain/internal/util"
)

var (
	// ErrNetwork is matched by transport faults and non-2xx responses.
	ErrNetwork = errors.New("network failure")
	// ErrParse is returned when a successful response body is not JSON.
	ErrParse = errors.New("failed to parse response as JSON")
)

// CallError describes a failed API call. StatusCode is zero for transport faults.
type CallError struct {
	StatusCode int
	Status     string
	Err        error
}

func (e *CallError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("API call failed: %d %s", e.StatusCode, e.Status)
	}
	return fmt.Sprintf("API call failed: %v", e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

func (e *CallError) Is(target error) bool { return target == ErrNetwork }

// Response is a successful call: the status and the decoded JSON body.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Data       any
}

// ExecuteRequest sends the built request with a JSON content type and decodes the
// response body. Statuses outside 200-299 fail with a *CallError and nothing is retried.
func ExecuteRequest(ctx context.Context, client *http.Client, built *request.Request) (*Response, error) {
	var body io.Reader
	if built.Body != nil {
		body = bytes.NewReader(built.Body)
	}
	req, err := http.NewRequestWithContext(ctx, built.Method, built.URL, body)
	if err != nil {
		return nil, &CallError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		logging.Logf(logging.Debug, "Request %s %s failed: %v", built.Method, built.URL, err)
		return nil, &CallError{Err: err}
	}
	defer resp.Body.Close()

	bodyBytes, readErr := io.ReadAll(resp.Body)
	logging.Logf(logging.Debug, "Response status: %s", resp.Status)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logging.Logf(logging.Debug, "Response body: %s", util.Snippet(bodyBytes))
		return nil, &CallError{
			StatusCode: resp.StatusCode,
			Status:     statusText(resp),
			Err:        fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}
	if readErr != nil {
		return nil, &CallError{Err: fmt.Errorf("failed to read response body (status %d): %w", resp.StatusCode, readErr)}
	}

	var data any
	if err := json.Unmarshal(bodyBytes, &data); err != nil {
		return nil, fmt.Errorf("%w: %v (body: '%s')", ErrParse, err, util.Snippet(bodyBytes))
	}
	logging.Logf(logging.Debug, "Response: %s", util.Snippet(bodyBytes))

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       bodyBytes,
		Data:       data,
	}, nil
}

// statusText is the reason phrase the server sent, or the standard text for the code.
func statusText(resp *http.Response) string {
	code := strconv.Itoa(resp.StatusCode)
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, code))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}
