package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const (
	defaultWebhookTimeout     = 10 * time.Second
	defaultWebhookQueueSize   = 256
	defaultWebhookMaxAttempts = 3
	defaultWebhookBackoff     = time.Second
	maxWebhookBackoff         = 30 * time.Second
)

// WebhookConfig holds webhook sink configuration.
type WebhookConfig struct {
	URLs        []string
	Timeout     time.Duration
	QueueSize   int
	MaxAttempts int
	Backoff     time.Duration
}

// WebhookSink posts every event as JSON to a fixed list of URLs. A single
// worker delivers events in publish order.
type WebhookSink struct {
	config     WebhookConfig
	httpClient *http.Client
	queue      chan Event

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewWebhookSink creates a webhook sink. Call Start to begin delivery.
func NewWebhookSink(config WebhookConfig) *WebhookSink {
	if config.Timeout <= 0 {
		config.Timeout = defaultWebhookTimeout
	}
	if config.QueueSize <= 0 {
		config.QueueSize = defaultWebhookQueueSize
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaultWebhookMaxAttempts
	}
	if config.Backoff <= 0 {
		config.Backoff = defaultWebhookBackoff
	}

	return &WebhookSink{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		queue:  make(chan Event, config.QueueSize),
		stopCh: make(chan struct{}),
	}
}

// Enqueue implements Sink.
func (s *WebhookSink) Enqueue(event Event) bool {
	select {
	case s.queue <- event:
		return true
	default:
		recordWebhookDelivery("dropped")
		return false
	}
}

// Start launches the delivery worker.
func (s *WebhookSink) Start(ctx context.Context) {
	slog.Info("starting realtime webhook sink",
		"urls", len(s.config.URLs),
		"queue_size", s.config.QueueSize,
		"max_attempts", s.config.MaxAttempts,
	)

	s.wg.Add(1)
	go s.run(ctx)
}

// Stop signals the worker to exit and waits for it. Events already queued
// are delivered first unless the worker context is canceled.
func (s *WebhookSink) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
	slog.Info("realtime webhook sink stopped")
}

func (s *WebhookSink) run(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			s.drain(ctx)
			return
		case event := <-s.queue:
			s.deliverAll(ctx, event)
		}
	}
}

func (s *WebhookSink) drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-s.queue:
			s.deliverAll(ctx, event)
		default:
			return
		}
	}
}

func (s *WebhookSink) deliverAll(ctx context.Context, event Event) {
	for _, url := range s.config.URLs {
		s.deliver(ctx, url, event)
	}
}

func (s *WebhookSink) deliver(ctx context.Context, url string, event Event) {
	body, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal realtime event", "error", err)
		recordWebhookDelivery("failed")
		return
	}

	for attempt := 1; attempt <= s.config.MaxAttempts; attempt++ {
		err = s.post(ctx, url, body)
		if err == nil {
			recordWebhookDelivery("success")
			return
		}

		slog.Warn("webhook delivery failed",
			"url", maskURL(url),
			"attempt", attempt,
			"max_attempts", s.config.MaxAttempts,
			"error", err,
		)

		if !isRetryable(err) || attempt == s.config.MaxAttempts {
			break
		}
		recordWebhookDelivery("retry")
		if !s.wait(ctx, calcBackoff(s.config.Backoff, attempt)) {
			return
		}
	}

	recordWebhookDelivery("failed")
}

func (s *WebhookSink) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return &PermanentError{Message: fmt.Sprintf("create request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return &RetryableError{Message: fmt.Sprintf("send request: %v", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	return handleResponse(resp)
}

func handleResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RetryableError{Code: resp.StatusCode, Message: "rate limited"}
	case resp.StatusCode >= 500:
		return &RetryableError{Code: resp.StatusCode, Message: fmt.Sprintf("server error: %s", string(body))}
	default:
		return &PermanentError{Code: resp.StatusCode, Message: fmt.Sprintf("rejected: %s", string(body))}
	}
}

// wait sleeps for d unless the sink is stopped first.
func (s *WebhookSink) wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	case <-s.stopCh:
		return false
	}
}

func calcBackoff(initial time.Duration, attempt int) time.Duration {
	backoff := initial << (attempt - 1)
	if backoff > maxWebhookBackoff || backoff <= 0 {
		backoff = maxWebhookBackoff
	}
	return backoff
}

func maskURL(url string) string {
	if len(url) > 40 {
		return url[:20] + "..." + url[len(url)-10:]
	}
	return url
}

// PermanentError indicates a delivery error that should not be retried.
type PermanentError struct {
	Code    int
	Message string
}

func (e *PermanentError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("webhook error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("webhook error: %s", e.Message)
}

// RetryableError indicates a temporary delivery error.
type RetryableError struct {
	Code    int
	Message string
}

func (e *RetryableError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("webhook error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("webhook error: %s", e.Message)
}

func isRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}
