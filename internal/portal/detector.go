package portal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"time"

	"golang.org/x/net/publicsuffix"
)

// maxBodySize caps how much of a portal page is read
const maxBodySize = 1 << 20

// NewHTTPClient builds the client shared by the detector and the login
// client. Redirects are not followed so that HTTP-level interception is
// visible to the detector, and cookies set by the portal are kept for the
// login request.
func NewHTTPClient() *http.Client {
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// Detector issues the connectivity probe and classifies the result
type Detector struct {
	client   *http.Client
	probeURL string
	timeout  time.Duration
	logger   *slog.Logger
}

// NewDetector creates a detector probing probeURL with a fixed per-request
// timeout
func NewDetector(client *http.Client, probeURL string, timeout time.Duration, logger *slog.Logger) *Detector {
	if client == nil {
		client = NewHTTPClient()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		client:   client,
		probeURL: probeURL,
		timeout:  timeout,
		logger:   logger,
	}
}

// ProbeURL returns the connectivity-check endpoint
func (d *Detector) ProbeURL() string {
	return d.probeURL
}

// Detect performs a single connectivity probe. It never retries.
func (d *Detector) Detect(ctx context.Context) (ProbeResult, error) {
	start := time.Now()

	resp, err := d.get(ctx, d.probeURL)
	if err != nil {
		return ProbeResult{}, newError(KindNetwork, "detect", err)
	}
	defer resp.Body.Close()

	logger := d.logger.With("status", resp.StatusCode, "latency", time.Since(start).Round(time.Millisecond))

	switch resp.StatusCode {
	case http.StatusNoContent:
		logger.Debug("Connectivity probe clear")
		return ProbeResult{Kind: Clear}, nil

	case http.StatusOK:
		body, err := readBody(resp)
		if err != nil {
			return ProbeResult{}, newError(KindNetwork, "detect", err)
		}
		location, _ := ExtractPortalURL(body)
		logger.Debug("Connectivity probe intercepted", "location", location)
		return ProbeResult{Kind: PortalRedirect, Location: location, Body: body}, nil

	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		location := resp.Header.Get("Location")
		if location == "" {
			break
		}
		body, _ := readBody(resp)
		logger.Debug("Connectivity probe redirected", "location", location)
		return ProbeResult{Kind: PortalRedirect, Location: location, Body: body}, nil
	}

	return ProbeResult{}, newError(KindNetwork, "detect", fmt.Errorf("unexpected status %d from %s", resp.StatusCode, d.probeURL))
}

// FetchPage retrieves a portal page, used when the intercepted response
// does not itself carry the login form
func (d *Detector) FetchPage(ctx context.Context, pageURL string) (string, error) {
	resp, err := d.get(ctx, pageURL)
	if err != nil {
		return "", newError(KindNetwork, "fetch", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", newError(KindNetwork, "fetch", fmt.Errorf("unexpected status %d from %s", resp.StatusCode, pageURL))
	}

	body, err := readBody(resp)
	if err != nil {
		return "", newError(KindNetwork, "fetch", err)
	}
	return body, nil
}

func (d *Detector) get(ctx context.Context, target string) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := d.client.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// cancelOnClose releases the request timeout once the body is consumed
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

func readBody(resp *http.Response) (string, error) {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	return string(data), nil
}
