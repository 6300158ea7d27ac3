package reminder

import (
	"errors"
	"testing"

	"pawbot/internal/storage"
	logx "pawbot/pkg/logx"
)

func TestParseClock(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"08:30", "08:30", true},
		{"8:30", "08:30", true},
		{" 23:59 ", "23:59", true},
		{"00:00", "00:00", true},
		{"25:00", "", false},
		{"24:00", "", false},
		{"12:60", "", false},
		{"12:5", "", false},
		{"1230", "", false},
		{"ab:cd", "", false},
		{"-1:30", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			c, err := ParseClock(tt.in)
			if !tt.ok {
				if !errors.Is(err, ErrInvalidTimeFormat) {
					t.Fatalf("ParseClock(%q) err = %v, want ErrInvalidTimeFormat", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseClock(%q) err = %v", tt.in, err)
			}
			if c.String() != tt.want {
				t.Fatalf("ParseClock(%q) = %s, want %s", tt.in, c, tt.want)
			}
		})
	}
}

func TestIdentityOf(t *testing.T) {
	t.Parallel()

	base := IdentityOf(7, "08:30", "Feed the dog")
	if base != "reminder:7:08:30:Feed_the_dog" {
		t.Fatalf("IdentityOf = %q", base)
	}
	if got := NormalizeMessage(" Feed \t the\n dog "); got != "Feed the dog" {
		t.Fatalf("NormalizeMessage = %q, want %q", got, "Feed the dog")
	}

	same := []struct{ at, msg string }{
		{"8:30", "Feed the dog"},
		{"08:30", "  Feed   the\tdog "},
	}
	for _, s := range same {
		if got := IdentityOf(7, s.at, s.msg); got != base {
			t.Fatalf("IdentityOf(7, %q, %q) = %q, want %q", s.at, s.msg, got, base)
		}
	}

	distinct := []Identity{
		base,
		IdentityOf(8, "08:30", "Feed the dog"),
		IdentityOf(7, "08:31", "Feed the dog"),
		IdentityOf(7, "08:30", "Feed_the dog"),
		IdentityOf(7, "08:30", "Feed the_dog"),
		IdentityOf(7, "08:30", "Feed%5Fthe dog"),
		IdentityOf(7, "08:30", "Feed the cat"),
		IdentityOf(-7, "08:30", "Feed the dog"),
	}
	seen := map[Identity]int{}
	for i, id := range distinct {
		if j, ok := seen[id]; ok {
			t.Fatalf("identities %d and %d collide: %q", i, j, id)
		}
		seen[id] = i
	}
}

func TestBuildRegistry(t *testing.T) {
	t.Parallel()
	recs := storage.Records{
		"7": {Reminders: []storage.ReminderEntry{
			{Time: "08:30", Message: "Feed the dog"},
			{Time: "8:30", Message: "Feed  the dog"},
			{Time: "25:00", Message: "bad"},
			{Time: "09:00", Message: "  "},
			{Time: "19:00", Message: "Walk"},
		}},
		"abc": {Reminders: []storage.ReminderEntry{{Time: "10:00", Message: "x"}}},
		"42":  {Weights: []storage.WeightEntry{{Date: "2024-01-01", Weight: 3}}},
	}
	r := Build(recs, logx.Nop())

	if got := len(r.Entries()); got != 3 {
		t.Fatalf("entries = %d, want 3", got)
	}
	if got := len(r.Jobs()); got != 2 {
		t.Fatalf("jobs = %d, want 2", got)
	}
	id := IdentityOf(7, "08:30", "Feed the dog")
	got := 0
	for _, e := range r.Entries() {
		if e.ID == id {
			got++
		}
	}
	if got != 2 {
		t.Fatalf("Count = %d, want 2", got)
	}
	j, ok := r.Lookup(id)
	if !ok || j.At != (Clock{Hour: 8, Minute: 30}) || j.Recipient != 7 {
		t.Fatalf("Lookup = %+v, %v", j, ok)
	}
	if d := r.Duplicates(); len(d) != 1 || d[0].ID != id {
		t.Fatalf("Duplicates = %+v", d)
	}
	inv := r.Invalid()
	if len(inv) != 3 {
		t.Fatalf("invalid = %+v, want 3 entries", inv)
	}
	if !errors.Is(inv[0].Err, ErrInvalidTimeFormat) || !errors.Is(inv[1].Err, ErrEmptyMessage) {
		t.Fatalf("invalid reasons = %v, %v", inv[0].Err, inv[1].Err)
	}
	if inv[2].UserKey != "abc" {
		t.Fatalf("invalid[2] = %+v, want bad user key", inv[2])
	}
}

func TestCountIdentity(t *testing.T) {
	t.Parallel()
	list := []storage.ReminderEntry{
		{Time: "08:30", Message: "Feed the dog"},
		{Time: "08:30", Message: "Feed the cat"},
		{Time: "8:30", Message: "Feed the dog"},
	}
	if got := CountIdentity(7, list, IdentityOf(7, "08:30", "Feed the dog")); got != 2 {
		t.Fatalf("CountIdentity = %d, want 2", got)
	}
}
