package core

import "testing"

func TestFormatVersion(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"v0.4.0", "0.4.0"},
		{"0.4.0", "0.4.0"},
		{"devel-ad721b3", "devel-ad721b3"},
		{"devel-ad721b3-dirty", "devel-ad721b3-dirty"},
		{"devel", "devel"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := FormatVersion(tt.input); got != tt.want {
			t.Errorf("FormatVersion(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestIsPseudoVersion(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"v0.0.0-20260217105831-82903d1d8810", true},
		{"v0.4.1-0.20260217105831-82903d1d8810", true},
		{"v0.0.0-20260217105831-82903d1d8810+dirty", true},
		{"v0.4.0", false},
		{"v0.4.0-rc1", false},
		{"v0.0.0-20260217105831-82903D1D8810", false},
		{"devel", false},
	}

	for _, tt := range tests {
		if got := isPseudoVersion(tt.input); got != tt.want {
			t.Errorf("isPseudoVersion(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
