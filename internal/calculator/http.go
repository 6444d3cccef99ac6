package calculator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	dErrors "carbonregistry/pkg/domain-errors"
	"carbonregistry/pkg/platform/circuit"
)

const defaultTimeout = 5 * time.Second

// ErrCircuitOpen is returned without a network call while the breaker is open.
var ErrCircuitOpen = errors.New("calculator circuit open")

type computeRequest struct {
	SubDomain string  `json:"subDomain"`
	Request   Request `json:"request"`
}

type computeResponse struct {
	CreditQuantity int64 `json:"creditQuantity"`
}

// HTTPClient calls an external calculator service over JSON/HTTP.
type HTTPClient struct {
	url     string
	client  *http.Client
	breaker *circuit.Breaker
	logger  *slog.Logger
}

type HTTPOption func(*HTTPClient)

func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTPClient) {
		if c != nil {
			h.client = c
		}
	}
}

func WithBreaker(b *circuit.Breaker) HTTPOption {
	return func(h *HTTPClient) {
		if b != nil {
			h.breaker = b
		}
	}
}

func WithLogger(l *slog.Logger) HTTPOption {
	return func(h *HTTPClient) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHTTPClient targets url; the timeout bounds each call.
func NewHTTPClient(url string, timeout time.Duration, opts ...HTTPOption) *HTTPClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	h := &HTTPClient{
		url:     url,
		client:  &http.Client{Timeout: timeout},
		breaker: circuit.New("calculator"),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *HTTPClient) Compute(ctx context.Context, req Request) (int64, error) {
	if req == nil {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "calculator request is required")
	}
	if !h.breaker.Allow() {
		return 0, ErrCircuitOpen
	}
	quantity, err := h.do(ctx, req)
	switch {
	case err == nil || isClientRejection(err):
		if _, change := h.breaker.RecordSuccess(); change.Closed {
			h.logger.InfoContext(ctx, "calculator circuit closed")
		}
	case ctx.Err() != nil:
		// The caller gave up; says nothing about the calculator.
	default:
		if _, change := h.breaker.RecordFailure(); change.Opened {
			h.logger.WarnContext(ctx, "calculator circuit opened", "error", err)
		}
	}
	if err != nil {
		return 0, err
	}
	return quantity, nil
}

// statusError is a non-200 answer from the calculator.
type statusError struct {
	code int
	body []byte
}

func (e *statusError) Error() string {
	return fmt.Sprintf("calculator returned %d: %s", e.code, e.body)
}

// isClientRejection reports a 4xx answer: the calculator is up and refused
// this request. 429 signals overload and counts against the breaker.
func isClientRejection(err error) bool {
	var se *statusError
	if !errors.As(err, &se) {
		return false
	}
	return se.code >= 400 && se.code < 500 && se.code != http.StatusTooManyRequests
}

func (h *HTTPClient) do(ctx context.Context, req Request) (int64, error) {
	body, err := json.Marshal(computeRequest{SubDomain: string(req.SubDomain()), Request: req})
	if err != nil {
		return 0, fmt.Errorf("encode calculator request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build calculator request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("call calculator: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, &statusError{code: resp.StatusCode, body: bytes.TrimSpace(snippet)}
	}
	var out computeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode calculator response: %w", err)
	}
	return out.CreditQuantity, nil
}
