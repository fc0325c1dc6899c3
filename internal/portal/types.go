// Package portal detects captive portals, scrapes their login pages and
// performs the login/logout handshake.
package portal

// ProbeKind is the classification of a connectivity probe
type ProbeKind int

const (
	// Clear means the probe endpoint answered 204 No Content
	Clear ProbeKind = iota

	// PortalRedirect means the probe was intercepted by a portal
	PortalRedirect
)

func (k ProbeKind) String() string {
	if k == PortalRedirect {
		return "portal_redirect"
	}
	return "clear"
}

// ProbeResult is produced fresh by every Detect call
type ProbeResult struct {
	Kind ProbeKind

	// Location is the redirect target found in the intercepted response,
	// empty if the page carried none
	Location string

	// Body is the intercepted page, kept so the scraper does not need a
	// second request
	Body string
}

// Session is the per-cycle login context scraped from the portal page
type Session struct {
	PortalURL string
	Magic     string
}
