package discord

import "testing"

func TestStripMention(t *testing.T) {
	a := &Adapter{botUserID: "42"}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no mention", "hello there", "hello there"},
		{"plain mention", "<@42> hello", " hello"},
		{"nickname mention", "<@!42> hello", " hello"},
		{"unrelated mention untouched", "<@99> hello", "<@99> hello"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.stripMention(tt.in); got != tt.want {
				t.Errorf("stripMention(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestStripMentionNoBotID(t *testing.T) {
	a := &Adapter{}
	in := "<@42> hello"
	if got := a.stripMention(in); got != in {
		t.Errorf("stripMention with empty botUserID should be a no-op, got %q", got)
	}
}
