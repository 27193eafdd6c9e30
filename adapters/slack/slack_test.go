package slack

import "testing"

func TestStripMention(t *testing.T) {
	a := &Adapter{botUserID: "U123"}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no mention", "hello there", "hello there"},
		{"mention prefix", "<@U123> hello", " hello"},
		{"unrelated mention untouched", "<@U999> hello", "<@U999> hello"},
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
	in := "<@U123> hello"
	if got := a.stripMention(in); got != in {
		t.Errorf("stripMention with empty botUserID should be a no-op, got %q", got)
	}
}
