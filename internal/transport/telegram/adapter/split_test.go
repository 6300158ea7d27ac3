package adapter

import (
	"strings"
	"testing"
	"unicode/utf8"

	kit "pawbot/internal/transport"
)

func TestSplitText(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		in    string
		limit int
		want  int
	}{
		{"short", "hello", 10, 1},
		{"empty", "", 10, 1},
		{"exact", strings.Repeat("a", 10), 10, 1},
		{"hard cut", strings.Repeat("a", 25), 10, 3},
		{"newline cut", "aaaaaa\nbbbbbb\ncccccc", 10, 3},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := splitText(tt.in, tt.limit)
			if len(got) != tt.want {
				t.Fatalf("splitText(%q) = %q, want %d chunks", tt.in, got, tt.want)
			}
			for _, c := range got {
				if utf8.RuneCountInString(c) > tt.limit {
					t.Fatalf("chunk %q exceeds limit %d", c, tt.limit)
				}
			}
		})
	}
}

func TestSplitTextPrefersNewline(t *testing.T) {
	t.Parallel()
	got := splitText("- Date: 2024-01-01\n- Date: 2024-01-02\n", 25)
	if len(got) != 2 || got[0] != "- Date: 2024-01-01" || got[1] != "- Date: 2024-01-02" {
		t.Fatalf("splitText = %q", got)
	}
}

func TestMenuPayload(t *testing.T) {
	t.Parallel()
	p := menuPayload([]kit.BotCommand{
		{Command: "start", Description: "Show help"},
		{Command: ""},
		{Command: "cancel"},
	})
	if len(p.Commands) != 2 || p.Commands[1].Description != "cancel" {
		t.Fatalf("payload = %+v", p.Commands)
	}
}
