// Package sparkkit implements mailkit.Transport on top of the
// SparkPost Transmissions API.
package sparkkit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/plainq/sparkmail/errkit"
	"github.com/plainq/sparkmail/httpkit"
	"github.com/plainq/sparkmail/logkit"
	"github.com/plainq/sparkmail/mailkit"
)

const (
	// EndpointUS is the transmissions endpoint of SparkPost.
	EndpointUS = "https://api.sparkpost.com/api/v1/transmissions"

	// EndpointEU is the transmissions endpoint of SparkPost EU.
	EndpointEU = "https://api.eu.sparkpost.com/api/v1/transmissions"

	// maxErrorBody limits the response body read on failures.
	maxErrorBody = 64 << 10

	userAgent = "sparkmail"
)

// Option configures the Transport.
type Option func(t *Transport)

// WithEndpoint sets the transmissions endpoint, EndpointUS by default.
func WithEndpoint(endpoint string) Option {
	return func(t *Transport) { t.endpoint = strings.TrimRight(endpoint, "/") }
}

// WithHTTPClient sets the client used for requests.
func WithHTTPClient(client *http.Client) Option {
	return func(t *Transport) {
		if client != nil {
			t.client = client
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// Transport sends payloads to SparkPost.
type Transport struct {
	apiKey   string
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

// New returns a new Transport authenticated with apiKey.
func New(apiKey string, options ...Option) *Transport {
	t := Transport{
		apiKey:   apiKey,
		endpoint: EndpointUS,
		client:   httpkit.NewClient(httpkit.WithUserAgent(userAgent)),
		logger:   logkit.Nop(),
	}

	for _, option := range options {
		option(&t)
	}

	return &t
}

type response struct {
	Results *mailkit.Result          `json:"results"`
	Errors  []mailkit.APIErrorDetail `json:"errors"`
}

// Send implements mailkit.Transport.
func (t *Transport) Send(ctx context.Context, payload mailkit.Payload) (*mailkit.Result, error) {
	body, err := json.Marshal(Transmission(payload))
	if err != nil {
		return nil, fmt.Errorf("encode transmission: %w: %w", err, errkit.ErrValidation)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w: %w", err, errkit.ErrConfiguration)
	}

	req.Header.Set("Authorization", t.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()

	res, err := t.client.Do(req)
	if err != nil {
		metrics.GetOrCreateCounter(requestTotalStr("error")).Inc()
		return nil, fmt.Errorf("send transmission: %w", err)
	}

	defer func() { _ = res.Body.Close() }()

	status := strconv.Itoa(res.StatusCode)

	metrics.GetOrCreateSummaryExt(requestDurationStr(status), 5*time.Minute, []float64{0.95, 0.99}).
		UpdateDuration(start)

	metrics.GetOrCreateCounter(requestTotalStr(status)).
		Inc()

	var decoded response

	if res.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		apiErr := mailkit.APIError{StatusCode: res.StatusCode}

		if err := json.Unmarshal(raw, &decoded); err == nil {
			apiErr.Errors = decoded.Errors
		}

		t.logger.Warn("SparkPost rejected transmission",
			slog.String("status", status),
			slog.String("error", apiErr.Error()),
		)

		return nil, &apiErr
	}

	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if decoded.Results == nil {
		return nil, fmt.Errorf("decode response: no results: %w", errkit.ErrUnavailable)
	}

	t.logger.Debug("SparkPost accepted transmission",
		slog.String("id", decoded.Results.ID),
		slog.Int("accepted", decoded.Results.TotalAccepted),
		slog.Int("rejected", decoded.Results.TotalRejected),
	)

	return decoded.Results, nil
}

func requestDurationStr(status string) string {
	return `sparkmail_sparkpost_request_duration{code="` + status + `"}`
}

func requestTotalStr(status string) string {
	return `sparkmail_sparkpost_requests_total{code="` + status + `"}`
}
