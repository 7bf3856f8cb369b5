package closerequest

import (
	"testing"
	"time"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"1h", time.Hour, true},
		{"1hr", time.Hour, true},
		{"2 hours", 2 * time.Hour, true},
		{"30m", 30 * time.Minute, true},
		{"45sec", 45 * time.Second, true},
		{"1d", 24 * time.Hour, true},
		{"1h 30m", 90 * time.Minute, true},
		{"2d 3h 15m", 51*time.Hour + 15*time.Minute, true},
		{"1 HOUR 30 Minutes", 90 * time.Minute, true},
		{"5x", 0, false},
		{"1h 5weeks", 0, false},
		{"0m", 0, false},
		{"", 0, false},
		{"soon", 0, false},
		{"106751d", 106751 * 24 * time.Hour, true},
		{"106752d", 0, false},
		{"213504d", 0, false},
		{"106751d 23h 59m 59s", 0, false},
		{"99999999999999999999s", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseDuration(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseDuration(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		in      string
		wantDur time.Duration
		wantMsg string
	}{
		{"", 0, ""},
		{"please confirm", 0, "please confirm"},
		{"1h", time.Hour, ""},
		{"1h please confirm", time.Hour, "please confirm"},
		{"1 hour 30 minutes are you done?", 90 * time.Minute, "are you done?"},
		{"2d 3h", 51 * time.Hour, ""},
		{"5x is not a time", 0, "5x is not a time"},
		{"42 is the answer", 0, "42 is the answer"},
		{"213504d fine", 0, "213504d fine"},
		{"106752d", 0, "106752d"},
	}
	for _, tt := range tests {
		d, msg := SplitArgs(tt.in)
		if d != tt.wantDur || msg != tt.wantMsg {
			t.Errorf("SplitArgs(%q) = %v, %q; want %v, %q", tt.in, d, msg, tt.wantDur, tt.wantMsg)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{1 * time.Second, "1 second"},
		{45 * time.Second, "45 seconds"},
		{time.Minute, "1 minute"},
		{90 * time.Second, "1 minute 30 seconds"},
		{61 * time.Second, "1 minute 1 second"},
		{time.Hour, "1 hour"},
		{90 * time.Minute, "1 hour 30 minutes"},
		{2*time.Hour + time.Minute + 5*time.Second, "2 hours 1 minute"},
		{24 * time.Hour, "1 day"},
		{51*time.Hour + 15*time.Minute, "2 days 3 hours"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.in); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
