package schedule

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNext_PortalDetected(t *testing.T) {
	for _, regime := range []Regime{RegimeNoPortal, RegimePortalDetected, RegimeLoggedIn} {
		got := Next(State{Regime: regime, Interval: 900 * time.Second}, OutcomePortalDetected, DefaultLimits)
		if got.Regime != RegimePortalDetected || got.Interval != 10*time.Second {
			t.Errorf("from %s: got %+v, want portal_detected/10s", regime, got)
		}
	}
}

func TestNext_LoginSucceeded(t *testing.T) {
	for _, regime := range []Regime{RegimeNoPortal, RegimePortalDetected, RegimeLoggedIn} {
		got := Next(State{Regime: regime, Interval: 10 * time.Second}, OutcomeLoginSucceeded, DefaultLimits)
		if got.Regime != RegimeLoggedIn || got.Interval != 1800*time.Second {
			t.Errorf("from %s: got %+v, want logged_in/1800s", regime, got)
		}
	}
}

func TestNext_NoPortalDecays(t *testing.T) {
	state := State{Regime: RegimeLoggedIn, Interval: 1800 * time.Second}
	want := []time.Duration{
		900 * time.Second,
		450 * time.Second,
		225 * time.Second,
		112500 * time.Millisecond,
		56250 * time.Millisecond,
		28125 * time.Millisecond,
		14062500 * time.Microsecond,
		10 * time.Second,
		10 * time.Second,
	}

	for i, w := range want {
		state = Next(state, OutcomeNoPortal, DefaultLimits)
		if state.Regime != RegimeNoPortal {
			t.Fatalf("step %d: expected no_portal regime, got %s", i, state.Regime)
		}
		if state.Interval != w {
			t.Errorf("step %d: got %s, want %s", i, state.Interval, w)
		}
	}
}

func TestNext_NoPortalHalvingSequence(t *testing.T) {
	state := State{Regime: RegimeNoPortal, Interval: 160 * time.Second}
	want := []time.Duration{80 * time.Second, 40 * time.Second, 20 * time.Second, 10 * time.Second, 10 * time.Second}

	for i, w := range want {
		state = Next(state, OutcomeNoPortal, DefaultLimits)
		if state.Interval != w {
			t.Errorf("step %d: got %s, want %s", i, state.Interval, w)
		}
	}
}

func TestNext_CheckFailedKeepsRegime(t *testing.T) {
	got := Next(State{Regime: RegimeLoggedIn, Interval: 1800 * time.Second}, OutcomeCheckFailed, DefaultLimits)
	if got.Regime != RegimeLoggedIn || got.Interval != 10*time.Second {
		t.Errorf("got %+v, want logged_in/10s", got)
	}
}

func TestNext_AlwaysWithinLimits(t *testing.T) {
	intervals := []time.Duration{0, time.Second, 10 * time.Second, 11 * time.Second, 1800 * time.Second, 24 * time.Hour}
	regimes := []Regime{RegimeNoPortal, RegimePortalDetected, RegimeLoggedIn}
	outcomes := []Outcome{OutcomeNoPortal, OutcomePortalDetected, OutcomeLoginSucceeded, OutcomeCheckFailed}

	for _, iv := range intervals {
		for _, r := range regimes {
			for _, o := range outcomes {
				got := Next(State{Regime: r, Interval: iv}, o, DefaultLimits)
				if got.Interval < DefaultLimits.Min || got.Interval > DefaultLimits.Max {
					t.Errorf("Next(%s/%s, %s) = %s, outside limits", r, iv, o, got.Interval)
				}
			}
		}
	}
}

func TestInitial(t *testing.T) {
	got := Initial(DefaultLimits)
	if got.Regime != RegimeNoPortal || got.Interval != 10*time.Second {
		t.Errorf("unexpected initial state %+v", got)
	}
}

func TestRegime_JSON(t *testing.T) {
	data, err := json.Marshal(struct {
		Regime Regime `json:"regime"`
	}{RegimeLoggedIn})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `{"regime":"logged_in"}` {
		t.Errorf("unexpected json %s", data)
	}

	var r Regime
	if err := r.UnmarshalText([]byte("portal_detected")); err != nil || r != RegimePortalDetected {
		t.Errorf("UnmarshalText = %v, %v", r, err)
	}
	if err := r.UnmarshalText([]byte("bogus")); err == nil {
		t.Error("expected error for unknown regime")
	}
}
