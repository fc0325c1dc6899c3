package daemon

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.olrik.dev/acp/internal/db"
	"go.olrik.dev/acp/internal/keyring"
	"go.olrik.dev/acp/internal/notify"
	"go.olrik.dev/acp/internal/portal"
	"go.olrik.dev/acp/internal/schedule"
	"go.olrik.dev/acp/internal/state"
)

// Signal sources
const (
	SourceStartup = "startup"
	SourceTimer   = "timer"
	SourceManual  = "manual"
)

// Phase is the loop's position in the check state machine
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseChecking  Phase = "checking"
	PhaseLoggingIn Phase = "logging_in"
	PhaseSleeping  Phase = "sleeping"
	PhaseShutdown  Phase = "shutdown"
)

// Signal requests a check cycle
type Signal struct {
	Source string

	// gen is the cadence timer generation, zero for external signals
	gen uint64
}

// CredentialProvider supplies the portal credentials
type CredentialProvider interface {
	Get() (keyring.Credentials, error)
	Set(username, secret string) error
	Clear() error
}

// Notifier is a fire-and-forget notification sink
type Notifier interface {
	Notify(ctx context.Context, title, body string) error
}

// Detector probes connectivity and fetches portal pages
type Detector interface {
	Detect(ctx context.Context) (portal.ProbeResult, error)
	FetchPage(ctx context.Context, pageURL string) (string, error)
}

// LoginClient submits a single verified login attempt
type LoginClient interface {
	Login(ctx context.Context, session portal.Session, username, password string) error
}

// History records completed cycles
type History interface {
	LogCheck(e db.CheckEvent) error
}

// Options are the loop knobs that may change on config reload
type Options struct {
	Limits            schedule.Limits
	MaxRetries        int
	InitialRetryDelay time.Duration
}

// Components are the collaborators of a Loop. History and Notifier are
// optional.
type Components struct {
	Detector    Detector
	Login       LoginClient
	Credentials CredentialProvider
	Notifier    Notifier
	Store       *state.Store
	History     History
}

// Status is the read-only snapshot published after every transition
type Status struct {
	Phase                 Phase              `json:"phase" yaml:"phase"`
	Regime                schedule.Regime    `json:"regime" yaml:"regime"`
	IntervalSeconds       int64              `json:"interval_seconds" yaml:"interval_seconds"`
	SecondsUntilNextCheck int64              `json:"seconds_until_next_check" yaml:"seconds_until_next_check"`
	NextCheck             time.Time          `json:"next_check,omitzero" yaml:"next_check,omitempty"`
	LastOutcome           string             `json:"last_outcome,omitempty" yaml:"last_outcome,omitempty"`
	LastError             string             `json:"last_error,omitempty" yaml:"last_error,omitempty"`
	CredentialsMissing    bool               `json:"credentials_missing" yaml:"credentials_missing"`
	Checking              bool               `json:"checking" yaml:"checking"`
	ServiceState          state.ServiceState `json:"service_state" yaml:"-"`
}

// Loop is the single owner of the check state machine. Run consumes the
// signal queue; everything else only enqueues.
type Loop struct {
	logger  *slog.Logger
	signals chan Signal

	// owned by the Run goroutine
	comps   Components
	opts    Options
	backoff schedule.State

	pendingMu sync.Mutex
	pending   *reconfig

	timerMu  sync.Mutex
	timer    *time.Timer
	timerGen uint64

	statusMu  sync.RWMutex
	status    Status
	nextCheck time.Time

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

type reconfig struct {
	opts     Options
	detector Detector
	login    LoginClient
}

// NewLoop creates a loop with a signal queue of queueSize
func NewLoop(comps Components, opts Options, queueSize int, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	if queueSize <= 0 {
		queueSize = 10
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.Limits == (schedule.Limits{}) {
		opts.Limits = schedule.DefaultLimits
	}

	l := &Loop{
		logger:  logger,
		signals: make(chan Signal, queueSize),
		comps:   comps,
		opts:    opts,
		backoff: schedule.Initial(opts.Limits),
		sleep:   sleepContext,
		now:     time.Now,
	}
	l.status = Status{
		Phase:           PhaseIdle,
		Regime:          l.backoff.Regime,
		IntervalSeconds: int64(l.backoff.Interval / time.Second),
	}
	if comps.Store != nil {
		l.status.ServiceState = comps.Store.Load()
	}
	return l
}

// Trigger requests a check. It never blocks; when the queue is full the
// request is dropped and false is returned.
func (l *Loop) Trigger(source string) bool {
	return l.enqueue(Signal{Source: source})
}

func (l *Loop) enqueue(sig Signal) bool {
	select {
	case l.signals <- sig:
		return true
	default:
		l.logger.Debug("Signal queue full, dropping check request", "source", sig.Source)
		return false
	}
}

// Reconfigure replaces the knobs and portal collaborators. The change is
// applied before the next cycle starts, never during one.
func (l *Loop) Reconfigure(opts Options, detector Detector, login LoginClient) {
	l.pendingMu.Lock()
	defer l.pendingMu.Unlock()
	l.pending = &reconfig{opts: opts, detector: detector, login: login}
}

// Status returns the current snapshot
func (l *Loop) Status() Status {
	l.statusMu.RLock()
	defer l.statusMu.RUnlock()

	st := l.status
	if !l.nextCheck.IsZero() {
		st.NextCheck = l.nextCheck
		if remaining := l.nextCheck.Sub(l.now()); remaining > 0 {
			st.SecondsUntilNextCheck = int64((remaining + time.Second - 1) / time.Second)
		}
	}
	return st
}

// Run performs a startup check and then serves signals until ctx is done
func (l *Loop) Run(ctx context.Context) error {
	defer func() {
		l.stopTimer()
		l.setPhase(PhaseShutdown)
		l.logger.Info("Check loop stopped")
	}()

	l.Trigger(SourceStartup)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig := <-l.signals:
			for {
				if l.isStale(sig) {
					break
				}
				l.runCycle(ctx, sig)
				if ctx.Err() != nil {
					return ctx.Err()
				}

				// Everything that arrived during the cycle collapses into
				// at most one follow-up
				next, ok := l.collapse()
				if !ok {
					break
				}
				sig = next
			}
		}
	}
}

// collapse drains the queue and returns the latest live signal
func (l *Loop) collapse() (Signal, bool) {
	var latest Signal
	found := false
	for {
		select {
		case sig := <-l.signals:
			if !l.isStale(sig) {
				latest, found = sig, true
			}
		default:
			return latest, found
		}
	}
}

func (l *Loop) isStale(sig Signal) bool {
	if sig.gen == 0 {
		return false
	}
	l.timerMu.Lock()
	defer l.timerMu.Unlock()
	return sig.gen != l.timerGen
}

// cycleResult is what one cycle hands to the scheduler and the store
type cycleResult struct {
	outcome            schedule.Outcome
	portalURL          *string
	loginSucceeded     bool
	attempts           int
	err                error
	credentialsMissing bool
}

func (l *Loop) runCycle(ctx context.Context, sig Signal) {
	l.stopTimer()
	l.applyPending()

	cycleID := uuid.NewString()
	logger := l.logger.With("cycle", cycleID[:8], "trigger", sig.Source)
	start := l.now()

	l.setPhase(PhaseChecking)
	logger.Debug("Check cycle started", "regime", l.backoff.Regime)

	res := l.check(ctx, logger)
	if ctx.Err() != nil {
		logger.Debug("Check cycle aborted by shutdown")
		return
	}

	prev := l.backoff
	l.backoff = schedule.Next(l.backoff, res.outcome, l.opts.Limits)

	var svc state.ServiceState
	if l.comps.Store != nil {
		var err error
		svc, err = l.comps.Store.Update(res.portalURL, res.loginSucceeded)
		if err != nil {
			logger.Warn("Failed to persist service state", "error", err)
		}
	}

	if l.backoff.Regime != prev.Regime {
		logger.Info("Regime changed", "from", prev.Regime, "to", l.backoff.Regime)
	}
	logger.Info("Check cycle finished",
		"outcome", res.outcome,
		"regime", l.backoff.Regime,
		"next_check", l.backoff.Interval)

	l.publish(res, svc)
	l.scheduleNext(l.backoff.Interval)
	l.record(cycleID, sig, res, start)
}

// check runs detection and, when a portal is found, the login ladder
func (l *Loop) check(ctx context.Context, logger *slog.Logger) cycleResult {
	probe, err := l.comps.Detector.Detect(ctx)
	if err != nil {
		logger.Warn("Connectivity check failed", "error", err)
		return cycleResult{outcome: schedule.OutcomeCheckFailed, err: err}
	}

	if probe.Kind == portal.Clear {
		if l.backoff.Regime == schedule.RegimeLoggedIn {
			return cycleResult{outcome: schedule.OutcomeLoginSucceeded}
		}
		return cycleResult{outcome: schedule.OutcomeNoPortal}
	}

	logger.Info("Captive portal detected", "location", probe.Location)

	session, err := ScrapeSession(ctx, l.comps.Detector, probe)
	if err != nil {
		logger.Warn("Could not parse captive portal page", "error", err)
		res := cycleResult{outcome: schedule.OutcomePortalDetected, err: err}
		if probe.Location != "" {
			res.portalURL = &probe.Location
		}
		return res
	}

	return l.loginLadder(ctx, logger, session)
}

// ScrapeSession builds the login session from an intercepted probe,
// fetching the portal page when the magic field is not already in it
func ScrapeSession(ctx context.Context, det Detector, probe portal.ProbeResult) (portal.Session, error) {
	if probe.Location == "" {
		return portal.Session{}, &portal.Error{Kind: portal.KindParse, Op: "scrape", Err: errors.New("no portal URL in intercepted page")}
	}

	magic, ok := portal.ExtractMagicValue(probe.Body)
	if !ok {
		page, err := det.FetchPage(ctx, probe.Location)
		if err != nil {
			return portal.Session{}, err
		}
		magic, ok = portal.ExtractMagicValue(page)
	}
	if !ok {
		return portal.Session{}, &portal.Error{Kind: portal.KindParse, Op: "scrape", Err: errors.New("no magic field in portal page")}
	}

	return portal.Session{PortalURL: probe.Location, Magic: magic}, nil
}

// loginLadder makes up to MaxRetries attempts, waiting InitialRetryDelay
// doubled after each failure
func (l *Loop) loginLadder(ctx context.Context, logger *slog.Logger, session portal.Session) cycleResult {
	res := cycleResult{outcome: schedule.OutcomePortalDetected, portalURL: &session.PortalURL}

	creds, err := l.comps.Credentials.Get()
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			logger.Error("No credentials configured, run 'acp setup'")
			res.credentialsMissing = true
		} else {
			logger.Error("Failed to read credentials", "error", err)
		}
		res.err = err
		return res
	}

	l.setPhase(PhaseLoggingIn)

	delay := l.opts.InitialRetryDelay
	for attempt := 1; attempt <= l.opts.MaxRetries; attempt++ {
		res.attempts = attempt

		err := l.comps.Login.Login(ctx, session, creds.Username, creds.Secret)
		if err == nil {
			logger.Info("Logged in to captive portal", "attempt", attempt, "portal", session.PortalURL)
			l.notify(logger, "Successfully logged in to captive portal")
			res.outcome = schedule.OutcomeLoginSucceeded
			res.loginSucceeded = true
			res.err = nil
			return res
		}
		if ctx.Err() != nil {
			res.err = ctx.Err()
			return res
		}

		res.err = err
		logger.Warn("Login attempt failed",
			"attempt", attempt,
			"max_attempts", l.opts.MaxRetries,
			"kind", portal.KindOf(err),
			"retry_in", delay,
			"error", err)

		if err := l.sleep(ctx, delay); err != nil {
			res.err = err
			return res
		}
		delay *= 2
	}

	logger.Error("Login failed after all attempts", "attempts", res.attempts, "error", res.err)
	return res
}

func (l *Loop) notify(logger *slog.Logger, body string) {
	if l.comps.Notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.comps.Notifier.Notify(ctx, notify.Title, body); err != nil {
			logger.Warn("Failed to send notification", "error", err)
		}
	}()
}

func (l *Loop) applyPending() {
	l.pendingMu.Lock()
	p := l.pending
	l.pending = nil
	l.pendingMu.Unlock()

	if p == nil {
		return
	}
	if p.opts.MaxRetries > 0 {
		l.opts.MaxRetries = p.opts.MaxRetries
	}
	if p.opts.InitialRetryDelay > 0 {
		l.opts.InitialRetryDelay = p.opts.InitialRetryDelay
	}
	if p.opts.Limits != (schedule.Limits{}) {
		l.opts.Limits = p.opts.Limits
		l.backoff.Interval = l.opts.Limits.Clamp(l.backoff.Interval)
	}
	if p.detector != nil {
		l.comps.Detector = p.detector
	}
	if p.login != nil {
		l.comps.Login = p.login
	}
	l.logger.Info("Applied new configuration",
		"min_delay", l.opts.Limits.Min,
		"max_delay", l.opts.Limits.Max,
		"max_retries", l.opts.MaxRetries)
}

// scheduleNext arms the cadence timer. A timer firing after it has been
// replaced carries an outdated generation and is ignored.
func (l *Loop) scheduleNext(d time.Duration) {
	l.timerMu.Lock()
	l.timerGen++
	gen := l.timerGen
	l.timer = time.AfterFunc(d, func() {
		l.enqueue(Signal{Source: SourceTimer, gen: gen})
	})
	l.timerMu.Unlock()

	l.statusMu.Lock()
	l.nextCheck = l.now().Add(d)
	l.status.Phase = PhaseSleeping
	l.status.Checking = false
	l.statusMu.Unlock()
}

func (l *Loop) stopTimer() {
	l.timerMu.Lock()
	defer l.timerMu.Unlock()

	l.timerGen++
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
}

func (l *Loop) setPhase(p Phase) {
	l.statusMu.Lock()
	defer l.statusMu.Unlock()

	l.status.Phase = p
	l.status.Checking = p == PhaseChecking || p == PhaseLoggingIn
	if l.status.Checking || p == PhaseShutdown {
		l.nextCheck = time.Time{}
		l.status.SecondsUntilNextCheck = 0
		l.status.NextCheck = time.Time{}
	}
}

func (l *Loop) publish(res cycleResult, svc state.ServiceState) {
	l.statusMu.Lock()
	defer l.statusMu.Unlock()

	l.status.Regime = l.backoff.Regime
	l.status.IntervalSeconds = int64(l.backoff.Interval / time.Second)
	l.status.LastOutcome = res.outcome.String()
	l.status.LastError = ""
	if res.err != nil {
		l.status.LastError = res.err.Error()
	}
	l.status.CredentialsMissing = res.credentialsMissing
	if l.comps.Store != nil {
		l.status.ServiceState = svc
	}
}

func (l *Loop) record(cycleID string, sig Signal, res cycleResult, start time.Time) {
	if l.comps.History == nil {
		return
	}

	event := db.CheckEvent{
		CycleID:       cycleID,
		Trigger:       sig.Source,
		Outcome:       res.outcome.String(),
		Regime:        l.backoff.Regime.String(),
		Interval:      l.backoff.Interval,
		LoginAttempts: res.attempts,
		Duration:      l.now().Sub(start),
	}
	if res.portalURL != nil {
		event.PortalURL = *res.portalURL
	}
	if res.err != nil {
		event.Error = res.err.Error()
	}
	if err := l.comps.History.LogCheck(event); err != nil {
		l.logger.Debug("Failed to record check history", "error", err)
	}
}

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
