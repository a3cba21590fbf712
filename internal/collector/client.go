// =============================================================================
// Donation Importer - Collector Client
// =============================================================================
//
// The collector is the donations service that stores an accepted batch.
// The client posts the batch as JSON and turns the answer into a Receipt or
// an AppError:
//
//   | Outcome                          | Result                      |
//   |----------------------------------|-----------------------------|
//   | 2xx with {"message","count"}     | Receipt                     |
//   | 2xx with a body that isn't JSON  | SUBMISSION_ERROR            |
//   | non-2xx                          | SUBMISSION_ERROR, status,   |
//   |                                  | "error" and "details"       |
//   | no response (dial, timeout, ...) | NETWORK_ERROR               |
//
// The request carries the CSRF token and session cookies a browser would
// send, so the service's web middleware accepts it.
//
// =============================================================================

package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"

	"github.com/Beto18v/AdoptaFacil-sub000/internal/config"
	apperrors "github.com/Beto18v/AdoptaFacil-sub000/internal/errors"
	"github.com/Beto18v/AdoptaFacil-sub000/internal/types"
)

// DefaultPayloadKey is the JSON key holding the records.
const DefaultPayloadKey = "donations"

// fallbackMessage is used when a failure response has no "error" field.
const fallbackMessage = "the donations service rejected the import"

// maxResponseBody bounds how much of a response is read.
const maxResponseBody = 1 << 20

// Client submits batches to the donations service.
type Client struct {
	endpoint   *url.URL
	payloadKey string
	csrfToken  string
	httpClient *http.Client
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. Its cookie jar, if any, is kept.
// hc itself is never modified.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			clone := *hc
			c.httpClient = &clone
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New builds a client from the collector settings. Configured cookies are
// placed in a cookie jar scoped to the endpoint.
func New(cfg config.CollectorSettings, opts ...Option) (*Client, error) {
	endpoint, err := url.Parse(cfg.Endpoint)
	if err != nil || endpoint.Scheme == "" || endpoint.Host == "" {
		return nil, fmt.Errorf("invalid collector endpoint %q", cfg.Endpoint)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	if len(cfg.Cookies) > 0 {
		cookies := make([]*http.Cookie, 0, len(cfg.Cookies))
		for name, value := range cfg.Cookies {
			cookies = append(cookies, &http.Cookie{Name: name, Value: value, Path: "/"})
		}
		jar.SetCookies(endpoint, cookies)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		endpoint:   endpoint,
		payloadKey: cfg.PayloadKey,
		csrfToken:  cfg.CSRFToken,
		httpClient: &http.Client{Timeout: timeout, Jar: jar},
		logger:     zap.NewNop(),
	}
	if c.payloadKey == "" {
		c.payloadKey = DefaultPayloadKey
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient.Jar == nil {
		c.httpClient.Jar = jar
	}
	return c, nil
}

// response is the JSON body the service answers with.
type response struct {
	Message string         `json:"message"`
	Count   *int           `json:"count"`
	Error   string         `json:"error"`
	Details map[string]any `json:"details"`
}

// Submit posts batch and returns the service's receipt.
//
// PARAMETERS:
//   - ctx: Bounds the request; cancellation yields NETWORK_ERROR.
//   - requestID: Sent as X-Request-Id so both sides can correlate logs.
//   - batch: The records to import.
//
// RETURNS:
//   - The receipt on a 2xx JSON answer.
//   - SUBMISSION_ERROR or NETWORK_ERROR otherwise.
func (c *Client) Submit(ctx context.Context, requestID string, batch types.ImportBatch) (*types.Receipt, error) {
	if len(batch) == 0 {
		return nil, apperrors.EmptyBatch()
	}

	body, err := json.Marshal(map[string]types.ImportBatch{c.payloadKey: batch})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeSubmission, err, "failed to encode the batch")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.Network(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if c.csrfToken != "" {
		req.Header.Set("X-CSRF-TOKEN", c.csrfToken)
	}
	if requestID != "" {
		req.Header.Set("X-Request-Id", requestID)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("donations service unreachable", zap.String("endpoint", c.endpoint.Redacted()), zap.Error(err))
		return nil, apperrors.Network(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, apperrors.Network(err)
	}

	c.logger.Info("donations service answered",
		zap.Int("status", resp.StatusCode),
		zap.Int("records", len(batch)),
		zap.Duration("elapsed", time.Since(start)),
	)

	var parsed response
	parseErr := json.Unmarshal(raw, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := parsed.Error
		if parseErr != nil || msg == "" {
			msg = fallbackMessage
		}
		subErr := apperrors.Submission(resp.StatusCode, msg)
		subErr.Details = parsed.Details
		return nil, subErr
	}

	if parseErr != nil {
		return nil, apperrors.Submission(resp.StatusCode, "the donations service sent an unreadable answer")
	}

	receipt := &types.Receipt{Message: parsed.Message, Count: len(batch)}
	if parsed.Count != nil {
		receipt.Count = *parsed.Count
	}
	return receipt, nil
}
