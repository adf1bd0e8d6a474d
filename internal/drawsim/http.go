package drawsim

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fununcle/perfectcircle/pkg/logger"
)

// submission outcomes.
const (
	resultAccepted  = "accepted"
	resultDuplicate = "duplicate"
	resultRejected  = "rejected"
	resultFailed    = "failed"
)

// HTTPClient wraps http.Client with a timeout.
type HTTPClient struct {
	client *http.Client
}

func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{client: &http.Client{Timeout: timeout}}
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Post performs a POST request with a JSON body.
func (c *HTTPClient) Post(ctx context.Context, url string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

// getJSON fetches url and decodes a 200 response into v. Other statuses
// are returned as *statusError.
func (c *HTTPClient) getJSON(ctx context.Context, url string, v any) error {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &statusError{code: resp.StatusCode, body: string(body)}
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string { return fmt.Sprintf("HTTP %d: %s", e.code, e.body) }

// submitAttempts posts attempts concurrently and re-sends the first
// Duplicates of them afterwards.
func submitAttempts(ctx context.Context, config *Config, attempts []Attempt, stats *Stats) {
	log := logger.Get()
	log.Info(ctx, "submitting attempts", logger.Int("attempts", len(attempts)), logger.Int("workers", config.Workers))

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/attempts"

	var submitted, accepted, duplicate, rejected, failed atomic.Int64
	count := func(result string) {
		switch result {
		case resultAccepted:
			accepted.Add(1)
		case resultDuplicate:
			duplicate.Add(1)
		case resultRejected:
			rejected.Add(1)
		default:
			failed.Add(1)
		}
	}

	queue := make([]Attempt, 0, len(attempts)+config.Duplicates)
	queue = append(queue, attempts...)
	queue = append(queue, attempts[:min(config.Duplicates, len(attempts))]...)

	ch := make(chan Attempt, config.Workers*workerChanMult)
	var wg sync.WaitGroup
	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for a := range ch {
				result := submitSingleAttempt(ctx, client, url, a, config.Retries)
				submitted.Add(1)
				count(result)
				if result == resultFailed && config.Verbose {
					log.Warn(ctx, "attempt submission failed", logger.String("attempt_id", a.AttemptID))
				}
			}
		}()
	}

	// The originals go first so duplicates find their IDs recorded.
	send := func(batch []Attempt) {
		for _, a := range batch {
			select {
			case <-ctx.Done():
				return
			case ch <- a:
			}
		}
	}
	send(queue[:len(attempts)])
	send(queue[len(attempts):])
	close(ch)
	wg.Wait()

	stats.AttemptsSubmitted = int(submitted.Load())
	stats.AttemptsAccepted = int(accepted.Load())
	stats.AttemptsDuplicate = int(duplicate.Load())
	stats.AttemptsRejected = int(rejected.Load())
	stats.AttemptsFailed = int(failed.Load())

	log.Info(ctx, "attempt submission completed",
		logger.Int("accepted", stats.AttemptsAccepted),
		logger.Int("duplicate", stats.AttemptsDuplicate),
		logger.Int("rejected", stats.AttemptsRejected),
		logger.Int("failed", stats.AttemptsFailed))
}

// submitSingleAttempt posts one attempt, backing off on 429.
func submitSingleAttempt(ctx context.Context, client *HTTPClient, url string, a Attempt, retries int) string {
	for try := 0; ; try++ {
		resp, err := client.Post(ctx, url, a)
		if err != nil {
			return resultFailed
		}
		var ack AckResponse
		_ = json.NewDecoder(resp.Body).Decode(&ack)
		_ = resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusAccepted:
			return resultAccepted
		case http.StatusOK:
			return resultDuplicate
		case http.StatusTooManyRequests:
			if try >= retries {
				return resultRejected
			}
			select {
			case <-ctx.Done():
				return resultRejected
			case <-time.After(retryBackoff * time.Duration(try+1)):
			}
		default:
			return resultFailed
		}
	}
}
