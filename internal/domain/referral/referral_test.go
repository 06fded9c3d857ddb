package referral

import "testing"

func TestParseParam(t *testing.T) {
	tests := []struct {
		in     string
		wantID int64
		wantOK bool
	}{
		{"12345", 12345, true},
		{" 77 ", 77, true},
		{"", 0, false},
		{"abc", 0, false},
		{"0", 0, false},
		{"-5", 0, false},
		{"1.5", 0, false},
		{"99999999999999999999", 0, false},
	}
	for _, tc := range tests {
		id, ok := ParseParam(tc.in)
		if id != tc.wantID || ok != tc.wantOK {
			t.Errorf("ParseParam(%q) = (%d, %v), want (%d, %v)", tc.in, id, ok, tc.wantID, tc.wantOK)
		}
	}
}

func TestThresholdReached(t *testing.T) {
	tests := []struct {
		n, every int
		want     bool
	}{
		{0, 5, false},
		{4, 5, false},
		{5, 5, true},
		{6, 5, false},
		{10, 5, true},
		{5, 0, false},
	}
	for _, tc := range tests {
		if got := ThresholdReached(tc.n, tc.every); got != tc.want {
			t.Errorf("ThresholdReached(%d, %d) = %v, want %v", tc.n, tc.every, got, tc.want)
		}
	}
}

func TestUntilNext(t *testing.T) {
	tests := []struct{ n, want int }{
		{0, 5}, {1, 4}, {4, 1}, {5, 5}, {7, 3},
	}
	for _, tc := range tests {
		if got := UntilNext(tc.n, 5); got != tc.want {
			t.Errorf("UntilNext(%d, 5) = %d, want %d", tc.n, got, tc.want)
		}
	}
}

func TestLink(t *testing.T) {
	if got := Link("@tutor_bot", 42); got != "https://t.me/tutor_bot?start=42" {
		t.Errorf("Link = %q", got)
	}
}
