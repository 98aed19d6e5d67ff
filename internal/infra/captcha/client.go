package captcha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/certbridge/auth-service/internal/core/domain"
	"github.com/certbridge/auth-service/internal/core/port"
	"github.com/certbridge/auth-service/internal/infra/config"
)

const defaultVerifyTimeout = 5 * time.Second

// Client verifies challenge tokens against an external reCAPTCHA-style endpoint.
type Client struct {
	httpClient *http.Client
	verifyURL  string
	secret     string
}

// NewClient builds a verifier from configuration. A nil httpClient uses a
// default client bounded by the configured timeout.
func NewClient(cfg config.CaptchaSettings, httpClient *http.Client) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultVerifyTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		httpClient: httpClient,
		verifyURL:  cfg.VerifyURL,
		secret:     cfg.Secret,
	}
}

type verifyResponse struct {
	Success    bool     `json:"success"`
	Score      float64  `json:"score"`
	ErrorCodes []string `json:"error-codes"`
}

// Verify submits the challenge token for verification. Timeouts and transport
// failures map to the dedicated port sentinels so callers can fail closed.
func (c *Client) Verify(ctx context.Context, token, remoteIP string) (*domain.CaptchaResult, error) {
	form := url.Values{}
	form.Set("secret", c.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("captcha: build verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, port.ErrCaptchaTimeout
		}
		return nil, fmt.Errorf("%w: %v", port.ErrCaptchaUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: verify endpoint returned %d", port.ErrCaptchaUnavailable, resp.StatusCode)
	}

	var payload verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode verify response: %v", port.ErrCaptchaUnavailable, err)
	}

	// The score threshold is a policy decision made by the caller; Accepted
	// carries only the remote verdict so a low score stays distinguishable
	// from a rejected challenge.
	result := &domain.CaptchaResult{
		Accepted: payload.Success,
		Score:    payload.Score,
		Errors:   payload.ErrorCodes,
	}
	return result, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
