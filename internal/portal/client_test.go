package portal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// fakePortal emulates a gateway that intercepts the probe until a login
// with the expected credentials and magic arrives
type fakePortal struct {
	mu            sync.Mutex
	loggedIn      bool
	acceptLogin   bool // false keeps intercepting after a "successful" login
	logoutCalls   int
	lastForm      map[string]string
	loginStatus   int
	loginResponse string
}

func (p *fakePortal) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/generate_204", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.loggedIn {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Write([]byte(interceptPage))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		r.ParseForm()
		p.mu.Lock()
		defer p.mu.Unlock()
		p.lastForm = map[string]string{}
		for k := range r.PostForm {
			p.lastForm[k] = r.PostForm.Get(k)
		}
		if p.loginStatus != 0 {
			w.WriteHeader(p.loginStatus)
		}
		if p.lastForm["username"] == "alice" && p.lastForm["password"] == "s3cret" && p.lastForm["magic"] == "0011aabb" {
			p.loggedIn = p.acceptLogin
			w.Write([]byte(p.loginResponse))
			return
		}
		w.Write([]byte("<h2>Firewall Authentication Failed</h2>"))
	})
	mux.HandleFunc("/logout", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.logoutCalls++
		p.loggedIn = false
		w.Write([]byte("logged out"))
	})
	return mux
}

func newPortalClient(t *testing.T, p *fakePortal, cfg ClientConfig) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(p.handler())
	t.Cleanup(srv.Close)

	httpClient := NewHTTPClient()
	detector := NewDetector(httpClient, srv.URL+"/generate_204", time.Second, nil)
	if cfg.LoginURL == "" {
		cfg.LoginURL = srv.URL + "/"
	}
	if cfg.RejectionMarkers == nil {
		cfg.RejectionMarkers = []string{"authentication failed"}
	}
	cfg.Timeout = time.Second
	return NewClient(httpClient, detector, cfg, nil), srv
}

func TestLogin_Success(t *testing.T) {
	p := &fakePortal{acceptLogin: true, loginResponse: "<h2>Authentication Successful</h2>"}
	c, srv := newPortalClient(t, p, ClientConfig{})

	session := Session{PortalURL: "http://10.0.0.1:1000/fgtauth?0011aabb", Magic: "0011aabb"}
	if err := c.Login(context.Background(), session, "alice", "s3cret"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastForm["4Tredir"] != srv.URL+"/generate_204" {
		t.Errorf("expected redirect target to default to the probe url, got %q", p.lastForm["4Tredir"])
	}
	if !p.loggedIn {
		t.Error("expected portal session to be established")
	}
}

func TestLogin_RejectedByMarker(t *testing.T) {
	p := &fakePortal{acceptLogin: true}
	c, _ := newPortalClient(t, p, ClientConfig{})

	session := Session{PortalURL: "http://10.0.0.1:1000/fgtauth?0011aabb", Magic: "0011aabb"}
	err := c.Login(context.Background(), session, "alice", "wrong")
	if KindOf(err) != KindRejected {
		t.Errorf("expected rejected error, got %v", err)
	}
}

func TestLogin_RejectedByStatus(t *testing.T) {
	p := &fakePortal{acceptLogin: true, loginStatus: http.StatusForbidden}
	c, _ := newPortalClient(t, p, ClientConfig{})

	session := Session{PortalURL: "http://10.0.0.1:1000/fgtauth?0011aabb", Magic: "0011aabb"}
	err := c.Login(context.Background(), session, "alice", "s3cret")
	if KindOf(err) != KindRejected {
		t.Errorf("expected rejected error, got %v", err)
	}
}

func TestLogin_VerificationFailed(t *testing.T) {
	p := &fakePortal{acceptLogin: false}
	c, _ := newPortalClient(t, p, ClientConfig{})

	session := Session{PortalURL: "http://10.0.0.1:1000/fgtauth?0011aabb", Magic: "0011aabb"}
	err := c.Login(context.Background(), session, "alice", "s3cret")
	if KindOf(err) != KindVerification {
		t.Errorf("expected verification error, got %v", err)
	}
}

func TestLogin_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	loginURL := srv.URL + "/"
	srv.Close()

	c := NewClient(nil, nil, ClientConfig{LoginURL: loginURL, Timeout: time.Second}, nil)
	err := c.Login(context.Background(), Session{PortalURL: loginURL, Magic: "x"}, "alice", "s3cret")
	if KindOf(err) != KindNetwork {
		t.Errorf("expected network error, got %v", err)
	}
}

func TestLoginEndpoint(t *testing.T) {
	c := NewClient(nil, nil, ClientConfig{}, nil)

	tests := []struct {
		portalURL string
		want      string
		wantErr   bool
	}{
		{"http://172.16.222.1:1000/fgtauth?abc", "http://172.16.222.1:1000/", false},
		{"https://[2001:db8::1]:1003/fgtauth?abc", "https://[2001:db8::1]:1003/", false},
		{"https://portal.example.com/login#x", "https://portal.example.com/", false},
		{"/relative/path", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := c.LoginEndpoint(tt.portalURL)
		if (err != nil) != tt.wantErr {
			t.Errorf("LoginEndpoint(%q) error = %v, wantErr %v", tt.portalURL, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("LoginEndpoint(%q) = %q, want %q", tt.portalURL, got, tt.want)
		}
	}

	configured := NewClient(nil, nil, ClientConfig{LoginURL: "http://gw/login"}, nil)
	if got, _ := configured.LoginEndpoint("http://10.0.0.1/"); got != "http://gw/login" {
		t.Errorf("configured login url not used, got %q", got)
	}
}

func TestLogout_Idempotent(t *testing.T) {
	p := &fakePortal{}
	c, srv := newPortalClient(t, p, ClientConfig{})

	for i := 0; i < 2; i++ {
		if err := c.Logout(context.Background(), srv.URL+"/fgtauth?0011aabb"); err != nil {
			t.Fatalf("Logout #%d failed: %v", i+1, err)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.logoutCalls != 2 {
		t.Errorf("expected 2 logout calls, got %d", p.logoutCalls)
	}
}

func TestLogout_NoActiveSessionStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c := NewClient(nil, nil, ClientConfig{LogoutURL: srv.URL + "/logout?", Timeout: time.Second}, nil)
	if err := c.Logout(context.Background(), ""); err != nil {
		t.Errorf("expected logout to tolerate a 404, got %v", err)
	}
}

func TestLogout_NoEndpoint(t *testing.T) {
	c := NewClient(nil, nil, ClientConfig{}, nil)
	if err := c.Logout(context.Background(), ""); err == nil {
		t.Error("expected error without any logout endpoint")
	}
}
