package httpx

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	apperrors "github.com/pvasseur/streamsync/internal/errors"
	"github.com/pvasseur/streamsync/internal/logger"
	"github.com/pvasseur/streamsync/internal/retry"
)

const (
	defaultTimeout      = 30 * time.Second
	defaultIdleTimeout  = 90 * time.Second
	maxIdleConnsPerHost = 16
)

// defaultUserAgents is the ordered rotation list. IPTV panels commonly block
// generic Go clients, so the list starts with player strings the upstreams
// whitelist and falls back to a desktop browser.
var defaultUserAgents = []string{
	"VLC/3.0.18 LibVLC/3.0.18",
	"IPTVSmartersPlayer/3.1.5 (Linux; Android 11)",
	"TiviMate/4.7.0 (Android 12)",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
}

// Config holds resilient client configuration
type Config struct {
	Timeout     time.Duration
	UserAgents  []string
	InsecureTLS bool
	Retry       retry.Config
	Logger      *logger.Logger
}

// Client is a shared HTTP transport for flaky IPTV and metadata upstreams:
// certificate-trust override, ordered user-agent rotation on retryable
// failures, exponential backoff, and tolerant JSON decoding. The client holds
// no per-request state and is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	userAgents []string
	retryCfg   retry.Config
	logger     *logger.Logger
}

// New creates a resilient HTTP client
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if len(cfg.UserAgents) == 0 {
		cfg.UserAgents = defaultUserAgents
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.Config{
			MaxAttempts:       len(cfg.UserAgents),
			InitialBackoff:    500 * time.Millisecond,
			MaxBackoff:        30 * time.Second,
			BackoffMultiplier: 2.0,
			JitterFraction:    0.1,
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.AppLogger()
	}

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: maxIdleConnsPerHost,
		IdleConnTimeout:     defaultIdleTimeout,
	}
	if cfg.InsecureTLS {
		// Target IPTV servers routinely present self-signed or expired
		// certificates; certificate validation is disabled for them only.
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		userAgents: cfg.UserAgents,
		retryCfg:   cfg.Retry,
		logger:     cfg.Logger,
	}
}

// Response carries the outcome of a successful request
type Response struct {
	StatusCode int
	Body       []byte
}

// Get performs a GET with user-agent rotation: each retryable failure advances
// to the next agent in the list with exponential backoff between attempts.
func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	return c.Request(ctx, http.MethodGet, url, nil)
}

// Stream performs a GET and hands the body back as a stream so large
// playlists can be parsed line by line without buffering. The retry and
// user-agent rotation discipline applies to establishing the response; the
// caller owns closing the reader.
func (c *Client) Stream(ctx context.Context, url string) (io.ReadCloser, error) {
	agentIdx := 0

	cfg := c.retryCfg
	cfg.OnRetry = func(attempt int, err error) {
		agentIdx = (agentIdx + 1) % len(c.userAgents)
	}

	return retry.DoWithResult(ctx, cfg, func() (io.ReadCloser, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, apperrors.ValidationError(fmt.Sprintf("invalid request: %v", err))
		}
		req.Header.Set("User-Agent", c.userAgents[agentIdx])
		req.Header.Set("Accept", "*/*")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, classifyTransportError(err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
			resp.Body.Close()
			return nil, classifyStatus(resp.StatusCode, body)
		}

		// A 200 with an empty body must surface the same typed error as the
		// buffered path, so the retry discipline gets another chance at the
		// real playlist. Peek before handing the stream over.
		peek := make([]byte, 512)
		n, readErr := io.ReadFull(resp.Body, peek)
		if readErr != nil && readErr != io.EOF && readErr != io.ErrUnexpectedEOF {
			resp.Body.Close()
			return nil, apperrors.TransportError("failed to read response body", readErr)
		}
		if readErr != nil && len(bytes.TrimSpace(peek[:n])) == 0 {
			resp.Body.Close()
			return nil, apperrors.New(apperrors.CodeUpstreamEmpty, "upstream returned an empty body")
		}

		return &streamBody{
			Reader: io.MultiReader(bytes.NewReader(peek[:n]), resp.Body),
			Closer: resp.Body,
		}, nil
	}, apperrors.IsRetryable)
}

// streamBody stitches the peeked prefix back in front of the live body
type streamBody struct {
	io.Reader
	io.Closer
}

// Request performs an HTTP request with the client's retry discipline
func (c *Client) Request(ctx context.Context, method, url string, headers map[string]string) (*Response, error) {
	agentIdx := 0

	cfg := c.retryCfg
	cfg.OnRetry = func(attempt int, err error) {
		agentIdx = (agentIdx + 1) % len(c.userAgents)
		c.logger.WithFields(map[string]interface{}{
			"url":        url,
			"attempt":    attempt,
			"user_agent": c.userAgents[agentIdx],
			"cause":      err.Error(),
		}).Debug("rotating user agent for retry")
	}

	return retry.DoWithResult(ctx, cfg, func() (*Response, error) {
		return c.attempt(ctx, method, url, headers, c.userAgents[agentIdx])
	}, apperrors.IsRetryable)
}

// attempt performs a single request with the given user agent
func (c *Client) attempt(ctx context.Context, method, url string, headers map[string]string, userAgent string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, apperrors.ValidationError(fmt.Sprintf("invalid request: %v", err))
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "*/*")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.TransportError("failed to read response body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyStatus(resp.StatusCode, body)
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return nil, apperrors.New(apperrors.CodeUpstreamEmpty, "upstream returned an empty body")
	}

	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}

// classifyTransportError maps network failures onto the transport taxonomy.
// Timeouts are retryable; an unresolvable host is fatal.
func classifyTransportError(err error) error {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return apperrors.Wrap(err, apperrors.CodeHostUnreachable, "host could not be resolved")
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Wrap(err, apperrors.CodeTransportTimeout, "request timed out")
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperrors.Wrap(err, apperrors.CodeTransportTimeout, "request timed out")
	}

	return apperrors.TransportError("request failed", err)
}

// classifyStatus maps a non-2xx response onto the upstream taxonomy
func classifyStatus(statusCode int, body []byte) error {
	msg := fmt.Sprintf("provider error %d", statusCode)
	if len(body) > 0 && len(body) <= 256 {
		msg = fmt.Sprintf("provider error %d: %s", statusCode, bytes.TrimSpace(body))
	}

	if statusCode == http.StatusTooManyRequests || statusCode == 512 {
		return apperrors.New(apperrors.CodeRateLimited, msg).WithContext("status_code", statusCode)
	}
	return apperrors.UpstreamError(statusCode, msg)
}

// DecodeJSON decodes a payload strictly; malformed data is a hard failure
func DecodeJSON(data []byte, v interface{}) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return apperrors.New(apperrors.CodeUpstreamEmpty, "empty payload")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return apperrors.DecodeError("failed to decode payload", err)
	}
	return nil
}

// DecodeTolerant decodes a payload that is expected to be a container object
// but may arrive as an empty array literal, the Xtream "no data" quirk. The
// empty-array case leaves v untouched so callers see an empty result instead
// of a decode error.
func DecodeTolerant(data []byte, v interface{}) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return apperrors.New(apperrors.CodeUpstreamEmpty, "empty payload")
	}
	if bytes.Equal(trimmed, []byte("[]")) {
		return nil
	}
	if err := json.Unmarshal(trimmed, v); err != nil {
		return apperrors.DecodeError("failed to decode payload", err)
	}
	return nil
}
