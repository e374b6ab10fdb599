package model

import "testing"

func TestParseServiceTime(t *testing.T) {
	cases := map[string]ServiceTime{
		"08:05":    8*3600 + 5*60,
		"8:05:30":  8*3600 + 5*60 + 30,
		"25:10:00": 25*3600 + 10*60,
		" 00:00 ":  0,
	}
	for in, want := range cases {
		got, err := ParseServiceTime(in)
		if err != nil {
			t.Fatalf("%q: %v", in, err)
		}
		if got != want {
			t.Fatalf("%q: expected %d got %d", in, want, got)
		}
	}
	for _, bad := range []string{"", "8", "08:60", "a:b", "-1:00", "1:2:3:4"} {
		if _, err := ParseServiceTime(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestServiceTimeString(t *testing.T) {
	if s := MustServiceTime("25:03:09").String(); s != "25:03:09" {
		t.Fatalf("got %s", s)
	}
}

func TestIntervalOps(t *testing.T) {
	a := Interval{Start: MustServiceTime("08:00"), End: MustServiceTime("08:10")}
	b := Interval{Start: MustServiceTime("08:08"), End: MustServiceTime("08:20")}
	c := Interval{Start: MustServiceTime("08:10"), End: MustServiceTime("08:15")}
	if !a.Overlaps(b) {
		t.Fatalf("expected overlap")
	}
	if a.Overlaps(c) {
		t.Fatalf("half-open intervals touching at 08:10 must not overlap")
	}
	w, ok := a.Intersect(b)
	if !ok || w.Start != MustServiceTime("08:08") || w.End != MustServiceTime("08:10") {
		t.Fatalf("unexpected intersection %v", w)
	}
	if p := a.Pad(60); p.Seconds() != 720 {
		t.Fatalf("expected 720 got %d", p.Seconds())
	}
}
