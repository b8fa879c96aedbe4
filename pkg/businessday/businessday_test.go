package businessday

import (
	"errors"
	"testing"
	"time"
)

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%q) failed: %v", s, err)
	}
	return d
}

func TestOffsetSundayAnchor(t *testing.T) {
	anchor := mustDate(t, "2026-03-15") // Sunday
	got := Offset(anchor, 28)
	want := mustDate(t, "2026-02-04")
	if !got.Equal(want) {
		t.Errorf("Offset(%s, 28) = %s, want %s", anchor.Format(DateLayout), got.Format(DateLayout), want.Format(DateLayout))
	}
}

func TestOffsetZeroReturnsAnchor(t *testing.T) {
	for _, s := range []string{"2026-03-14", "2026-03-15", "2026-03-16"} {
		anchor := mustDate(t, s)
		if got := Offset(anchor, 0); !got.Equal(anchor) {
			t.Errorf("Offset(%s, 0) = %s, want anchor", s, got.Format(DateLayout))
		}
	}
}

func TestOffsetKnownValues(t *testing.T) {
	cases := []struct {
		anchor string
		offset int
		want   string
	}{
		{"2026-03-16", 1, "2026-03-13"},  // Monday back to Friday
		{"2026-03-13", -1, "2026-03-16"}, // Friday forward to Monday
		{"2026-03-15", -2, "2026-03-17"}, // Sunday forward two
		{"2026-03-14", 3, "2026-03-11"},  // Saturday back three
		{"2026-03-18", 5, "2026-03-11"},  // a full week
	}
	for _, c := range cases {
		got := Offset(mustDate(t, c.anchor), c.offset)
		if got.Format(DateLayout) != c.want {
			t.Errorf("Offset(%s, %d) = %s, want %s", c.anchor, c.offset, got.Format(DateLayout), c.want)
		}
	}
}

func TestOffsetProperties(t *testing.T) {
	start := mustDate(t, "2026-01-01")
	for day := 0; day < 21; day++ {
		anchor := start.AddDate(0, 0, day)
		for o := -30; o <= 30; o++ {
			got := Offset(anchor, o)
			if o == 0 {
				continue
			}
			if !IsBusinessDay(got) {
				t.Fatalf("Offset(%s, %d) = %s is a weekend", anchor.Format(DateLayout), o, got.Weekday())
			}
			if o > 0 && got.After(anchor) {
				t.Fatalf("Offset(%s, %d) = %s is after anchor", anchor.Format(DateLayout), o, got.Format(DateLayout))
			}
			if o < 0 && got.Before(anchor) {
				t.Fatalf("Offset(%s, %d) = %s is before anchor", anchor.Format(DateLayout), o, got.Format(DateLayout))
			}
			if o < 0 {
				if n := Between(anchor, got); n != -o {
					t.Fatalf("Between(%s, %s) = %d, want %d", anchor.Format(DateLayout), got.Format(DateLayout), n, -o)
				}
			} else if IsBusinessDay(anchor) {
				if n := Between(anchor, got); n != -o {
					t.Fatalf("Between(%s, %s) = %d, want %d", anchor.Format(DateLayout), got.Format(DateLayout), n, -o)
				}
			}
		}
	}
}

func TestParseDateError(t *testing.T) {
	for _, in := range []string{"", "03/15/2026", "2026-13-01", "2026-3-5x", " 2026-03-15", "2026-03-15\n"} {
		_, err := ParseDate(in)
		if err == nil {
			t.Errorf("ParseDate(%q) expected error", in)
			continue
		}
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Errorf("ParseDate(%q) error %T is not *ParseError", in, err)
		} else if pe.Input != in {
			t.Errorf("ParseError.Input = %q, want %q", pe.Input, in)
		}
	}
}
