// Package telegram implements the HTTP transport for the Telegram Bot
// API: a retrying request client, the wire types, typed API errors and
// thin wrappers for the bot action methods.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/The-Earth/catbot/internal/logger"
	"github.com/The-Earth/catbot/internal/timeutil"
	"github.com/The-Earth/catbot/pkg/constants"
	"github.com/sirupsen/logrus"
)

// DefaultAPIHost is the production Bot API endpoint.
const DefaultAPIHost = "api.telegram.org"

// ClientConfig carries everything the transport needs. Token is
// required; the rest defaults to sane values.
type ClientConfig struct {
	Token    string
	APIHost  string
	ProxyURL string

	MaxRetries        int
	InitialRetryDelay time.Duration
	MaxRetryDelay     time.Duration

	// HTTPTimeout bounds plain (non long-poll) requests.
	HTTPTimeout time.Duration
}

// Client issues authenticated requests against the Bot API. The token
// and proxy are fixed at construction and never renegotiated per call.
type Client struct {
	baseURL  string
	fileURL  string
	client   *http.Client
	poll     *http.Client
	retries  int
	delay    time.Duration
	maxDelay time.Duration
}

// NewClient builds a transport from cfg.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram: token is required")
	}
	if cfg.APIHost == "" {
		cfg.APIHost = DefaultAPIHost
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = constants.DefaultMaxRetries
	}
	if cfg.InitialRetryDelay == 0 {
		cfg.InitialRetryDelay = constants.DefaultInitialRetryDelay
	}
	if cfg.MaxRetryDelay == 0 {
		cfg.MaxRetryDelay = constants.DefaultMaxRetryDelay
	}
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}

	transport := http.DefaultTransport
	if cfg.ProxyURL != "" {
		proxy, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("telegram: invalid proxy url: %w", err)
		}
		transport = &http.Transport{Proxy: http.ProxyURL(proxy)}
	}

	// Test servers run over plain HTTP; APIHost may carry a full URL
	// in that case.
	scheme := "https"
	if strings.Contains(cfg.APIHost, "://") {
		u, err := url.Parse(cfg.APIHost)
		if err != nil {
			return nil, fmt.Errorf("telegram: invalid api host: %w", err)
		}
		scheme = u.Scheme
		cfg.APIHost = u.Host
	}

	return &Client{
		baseURL: fmt.Sprintf("%s://%s/bot%s/", scheme, cfg.APIHost, cfg.Token),
		fileURL: fmt.Sprintf("%s://%s/file/bot%s/", scheme, cfg.APIHost, cfg.Token),
		client: &http.Client{
			Timeout:   cfg.HTTPTimeout,
			Transport: transport,
		},
		poll: &http.Client{
			// The long-poll deadline comes from the request context;
			// no client-level timeout here or every idle poll would
			// abort early.
			Transport: transport,
		},
		retries:  cfg.MaxRetries,
		delay:    cfg.InitialRetryDelay,
		maxDelay: cfg.MaxRetryDelay,
	}, nil
}

// apiResponse is the Bot API envelope every method answers with.
type apiResponse struct {
	Ok          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
	ErrorCode   int             `json:"error_code"`
}

// Invoke performs one Bot API method call. Transient failures (network
// errors, 5xx, 429) are retried with a doubling delay up to the retry
// budget; API-level failures (ok=false) are never retried and come
// back as an *APIError.
func (c *Client) Invoke(ctx context.Context, method string, params url.Values) (json.RawMessage, error) {
	return c.invoke(ctx, c.client, method, params)
}

func (c *Client) invoke(ctx context.Context, hc *http.Client, method string, params url.Values) (json.RawMessage, error) {
	var lastErr error
	delay := c.delay

	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			logger.WithFields(logrus.Fields{
				"method":  method,
				"attempt": attempt,
				"delay":   delay,
				"error":   lastErr,
			}).Warn("telegram-request-retrying")
			if err := timeutil.Sleep(ctx, delay); err != nil {
				return nil, err
			}
			delay *= 2
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		result, retryable, err := c.doRequest(ctx, hc, method, params)
		if err == nil {
			return result, nil
		}
		if !retryable {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
	}

	return nil, fmt.Errorf("telegram: %q failed after %d retries: %w", method, c.retries, lastErr)
}

// doRequest performs a single exchange. The second return value
// reports whether the failure is worth retrying.
func (c *Client) doRequest(ctx context.Context, hc *http.Client, method string, params url.Values) (json.RawMessage, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+method, nil)
	if err != nil {
		return nil, false, err
	}
	req.URL.RawQuery = params.Encode()

	resp, err := hc.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, err
	}

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, true, fmt.Errorf("telegram: %q answered HTTP %d", method, resp.StatusCode)
	}

	var envelope apiResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, false, fmt.Errorf("telegram: decode %q response: %w", method, err)
	}
	if !envelope.Ok {
		return nil, false, newAPIError(method, envelope.ErrorCode, envelope.Description)
	}

	return envelope.Result, false, nil
}

// GetUpdates long-polls for the next batch of updates strictly after
// offset-1. It blocks up to timeout server-side and returns an empty
// batch when the timeout elapses with no events. Cancelling ctx
// abandons an in-flight poll immediately.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration, limit int) ([]Update, error) {
	if limit <= 0 || limit > constants.MaxUpdatesPerBatch {
		limit = constants.MaxUpdatesPerBatch
	}

	allowed, _ := json.Marshal([]string{
		string(KindMessage),
		string(KindCallbackQuery),
		string(KindChatMember),
		string(KindMyChatMember),
		string(KindChatJoinRequest),
	})

	params := url.Values{}
	params.Set("offset", strconv.FormatInt(offset, 10))
	params.Set("limit", strconv.Itoa(limit))
	params.Set("timeout", strconv.Itoa(int(timeout/time.Second)))
	params.Set("allowed_updates", string(allowed))

	// HTTP deadline so a stalled server cannot hold the poll past the
	// long-poll window.
	ctx, cancel := context.WithTimeout(ctx, timeout+constants.PollHTTPGrace)
	defer cancel()

	result, err := c.invoke(ctx, c.poll, "getUpdates", params)
	if err != nil {
		return nil, err
	}

	var updates []Update
	if err := json.Unmarshal(result, &updates); err != nil {
		return nil, fmt.Errorf("telegram: decode updates: %w", err)
	}
	return updates, nil
}

// Download fetches the content behind a getFile result.
func (c *Client) Download(ctx context.Context, file *File) ([]byte, error) {
	if file == nil || file.FilePath == "" {
		return nil, ErrFilePath
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.fileURL+file.FilePath, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s (HTTP %d)", ErrFilePath, file.FilePath, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
