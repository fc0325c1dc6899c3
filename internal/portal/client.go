package portal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ClientConfig configures the portal endpoints
type ClientConfig struct {
	// LoginURL overrides the login endpoint derived from the portal URL
	LoginURL string

	// LogoutURL overrides the logout endpoint derived from the last portal URL
	LogoutURL string

	// RedirectURL is submitted as the post-login redirect target,
	// defaults to the detector's probe URL
	RedirectURL string

	// RejectionMarkers are case-insensitive substrings of a login response
	// that mean the portal refused the credentials
	RejectionMarkers []string

	// Timeout applies to every request
	Timeout time.Duration
}

// Client performs the login and logout request sequences
type Client struct {
	http     *http.Client
	detector *Detector
	config   ClientConfig
	logger   *slog.Logger
}

// NewClient creates a login client. The detector is used for the
// post-login verification probe.
func NewClient(httpClient *http.Client, detector *Detector, config ClientConfig, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = NewHTTPClient()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	return &Client{
		http:     httpClient,
		detector: detector,
		config:   config,
		logger:   logger,
	}
}

// LoginEndpoint returns the URL the login form is submitted to
func (c *Client) LoginEndpoint(portalURL string) (string, error) {
	if c.config.LoginURL != "" {
		return c.config.LoginURL, nil
	}
	origin, err := originOf(portalURL)
	if err != nil {
		return "", err
	}
	return origin + "/", nil
}

// LogoutEndpoint returns the URL used to end the portal session.
// lastPortalURL may be empty when a logout URL is configured.
func (c *Client) LogoutEndpoint(lastPortalURL string) (string, error) {
	if c.config.LogoutURL != "" {
		return c.config.LogoutURL, nil
	}
	if lastPortalURL == "" {
		return "", errors.New("no logout endpoint configured and no portal seen yet")
	}
	origin, err := originOf(lastPortalURL)
	if err != nil {
		return "", err
	}
	return origin + "/logout?", nil
}

// Login submits one login attempt and verifies it with an independent
// connectivity probe. Retrying is the caller's decision.
func (c *Client) Login(ctx context.Context, session Session, username, password string) error {
	endpoint, err := c.LoginEndpoint(session.PortalURL)
	if err != nil {
		return newError(KindParse, "login", err)
	}

	redirect := c.config.RedirectURL
	if redirect == "" && c.detector != nil {
		redirect = c.detector.ProbeURL()
	}

	form := url.Values{
		"4Tredir":  {redirect},
		"magic":    {session.Magic},
		"username": {username},
		"password": {password},
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return newError(KindParse, "login", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", session.PortalURL)

	c.logger.Debug("Submitting portal login", "endpoint", endpoint, "username", username)

	resp, err := c.http.Do(req)
	if err != nil {
		return newError(KindNetwork, "login", err)
	}
	body, err := readBody(resp)
	resp.Body.Close()
	if err != nil {
		return newError(KindNetwork, "login", err)
	}

	if resp.StatusCode >= 400 {
		return newError(KindRejected, "login", fmt.Errorf("portal answered %d", resp.StatusCode))
	}
	if marker, ok := c.rejected(body); ok {
		return newError(KindRejected, "login", fmt.Errorf("portal response contains %q", marker))
	}

	if c.detector == nil {
		return nil
	}

	result, err := c.detector.Detect(ctx)
	if err != nil {
		return newError(KindNetwork, "verify", err)
	}
	if result.Kind != Clear {
		return newError(KindVerification, "verify", errors.New("portal still intercepting after login"))
	}
	return nil
}

// Logout ends the portal session. Any HTTP answer counts as success so
// that logging out without an active session is not an error.
func (c *Client) Logout(ctx context.Context, lastPortalURL string) error {
	endpoint, err := c.LogoutEndpoint(lastPortalURL)
	if err != nil {
		return newError(KindParse, "logout", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return newError(KindParse, "logout", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return newError(KindNetwork, "logout", err)
	}
	resp.Body.Close()

	c.logger.Debug("Portal logout sent", "endpoint", endpoint, "status", resp.StatusCode)
	return nil
}

func (c *Client) rejected(body string) (string, bool) {
	lower := strings.ToLower(body)
	for _, marker := range c.config.RejectionMarkers {
		if marker != "" && strings.Contains(lower, strings.ToLower(marker)) {
			return marker, true
		}
	}
	return "", false
}

// originOf returns scheme://host[:port] of rawURL, keeping IPv6 brackets
func originOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid portal url %q: %w", rawURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid portal url %q: missing scheme or host", rawURL)
	}
	return u.Scheme + "://" + u.Host, nil
}
