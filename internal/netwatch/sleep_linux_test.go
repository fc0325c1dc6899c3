package netwatch

import (
	"testing"

	"github.com/godbus/dbus/v5"
)

func TestIsResume(t *testing.T) {
	tests := []struct {
		name string
		sig  *dbus.Signal
		want bool
	}{
		{"wake", &dbus.Signal{Name: prepareForSleep, Body: []interface{}{false}}, true},
		{"sleep", &dbus.Signal{Name: prepareForSleep, Body: []interface{}{true}}, false},
		{"empty body", &dbus.Signal{Name: prepareForSleep}, false},
		{"wrong type", &dbus.Signal{Name: prepareForSleep, Body: []interface{}{"false"}}, false},
		{"other signal", &dbus.Signal{Name: "org.freedesktop.login1.Manager.SessionNew", Body: []interface{}{false}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isResume(tt.sig); got != tt.want {
				t.Errorf("isResume = %v, want %v", got, tt.want)
			}
		})
	}
}
