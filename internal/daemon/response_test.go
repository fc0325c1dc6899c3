package daemon

import (
	"encoding/json"
	"strings"
	"testing"

	"go.olrik.dev/acp/internal/schedule"
)

func TestResponseToJSON(t *testing.T) {
	r := &Response{}
	r.AddMessage("Check requested", StatusInfo)
	r.AddData(VersionInfo{Version: "1.2.3", PID: 42})

	var parsed map[string]any
	if err := json.Unmarshal([]byte(r.ToJSON()), &parsed); err != nil {
		t.Fatalf("ToJSON() produced invalid JSON: %v", err)
	}

	messages, ok := parsed["messages"].([]any)
	if !ok || len(messages) != 1 {
		t.Fatalf("expected 1 message, got %v", parsed["messages"])
	}
	data, ok := parsed["data"].(map[string]any)
	if !ok || data["version"] != "1.2.3" {
		t.Errorf("unexpected data %v", parsed["data"])
	}
}

func TestResponseToJSONOmitsEmptyData(t *testing.T) {
	r := &Response{}
	r.AddMessage("OK", StatusInfo)

	if s := r.ToJSON(); strings.Contains(s, "data") {
		t.Errorf("expected data to be omitted when nil: %s", s)
	}
}

func TestResponseDecodeData(t *testing.T) {
	sent := Response{}
	sent.AddMessage("OK", StatusInfo)
	sent.AddData(Status{
		Phase:           PhaseSleeping,
		Regime:          schedule.RegimeLoggedIn,
		IntervalSeconds: 1800,
	})

	// Round trip through the wire form so Data becomes a generic map
	var received Response
	if err := json.Unmarshal([]byte(sent.ToJSON()), &received); err != nil {
		t.Fatal(err)
	}

	var status Status
	if err := received.DecodeData(&status); err != nil {
		t.Fatalf("DecodeData() error: %v", err)
	}
	if status.Regime != schedule.RegimeLoggedIn || status.IntervalSeconds != 1800 || status.Phase != PhaseSleeping {
		t.Errorf("unexpected status %+v", status)
	}

	var empty Response
	if err := empty.DecodeData(&status); err == nil {
		t.Error("expected error decoding a response without data")
	}
}

func TestResponseHasErrors(t *testing.T) {
	r := &Response{}
	r.AddMessage("fine", StatusInfo)
	r.AddMessage("hmm", StatusWarn)
	if r.HasErrors() {
		t.Error("expected no errors")
	}

	r.AddMessage("Unknown command: FOO", StatusError)
	if !r.HasErrors() {
		t.Error("expected errors")
	}
}

func TestResponseLogMessages(t *testing.T) {
	quietLogger(t)

	r := &Response{}
	r.AddMessage("info message", StatusInfo)
	r.AddMessage("warn message", StatusWarn)
	r.AddMessage("error message", StatusError)
	r.AddMessage("unknown status", "UNKNOWN")

	// Should not panic
	r.LogMessages()
}
