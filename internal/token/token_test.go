package token

import (
	"errors"
	"strings"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	paths := []Path{
		{},
		{TitleID: "one_piece"},
		{TitleID: "one_piece", Season: "1"},
		{TitleID: "one_piece", Season: "1", Episode: "12"},
		{TitleID: "one_piece", Season: "1", Episode: "12", Quality: "720p"},
	}
	for _, p := range paths {
		s, err := Encode(p)
		if err != nil {
			t.Fatalf("encode %+v: %v", p, err)
		}
		got, err := Decode(s)
		if err != nil {
			t.Fatalf("decode %q: %v", s, err)
		}
		if got != p {
			t.Fatalf("round trip %q: got %+v, want %+v", s, got, p)
		}
	}
}

func TestEncodeFormat(t *testing.T) {
	s, err := Encode(Path{TitleID: "one_piece", Season: "1", Episode: "3", Quality: "4K"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if s != "nav:one_piece:1:3:4K" {
		t.Fatalf("unexpected token %q", s)
	}
}

func TestDecodeRejectsForeignData(t *testing.T) {
	for _, bad := range []string{"pay:view:5", "kind:series", "", "navx:one"} {
		if _, err := Decode(bad); !errors.Is(err, ErrBadPrefix) {
			t.Fatalf("Decode(%q): got %v, want ErrBadPrefix", bad, err)
		}
	}
}

func TestDecodeRejectsEmptySegments(t *testing.T) {
	for _, bad := range []string{"nav:", "nav::1", "nav:a::b"} {
		if _, err := Decode(bad); !errors.Is(err, ErrEmptySegment) {
			t.Fatalf("Decode(%q): got %v, want ErrEmptySegment", bad, err)
		}
	}
}

func TestDecodeRejectsExcessDepth(t *testing.T) {
	if _, err := Decode("nav:a:b:c:d:e"); !errors.Is(err, ErrTooDeep) {
		t.Fatalf("got %v, want ErrTooDeep", err)
	}
}

func TestEncodeRejectsDelimiterInSegment(t *testing.T) {
	if _, err := Encode(Path{TitleID: "a:b"}); err == nil {
		t.Fatalf("expected error for delimiter in segment")
	}
}

func TestEncodeEnforcesLength(t *testing.T) {
	long := strings.Repeat("x", 70)
	if _, err := Encode(Path{TitleID: long}); !errors.Is(err, ErrTooLong) {
		t.Fatalf("got %v, want ErrTooLong", err)
	}
}

func TestChildAndParent(t *testing.T) {
	p := Path{}
	p = p.Child("one_piece").Child("1").Child("2")
	if p.Depth() != 3 || p.Episode != "2" {
		t.Fatalf("child chain wrong: %+v", p)
	}
	p = p.Parent()
	if p.Depth() != 2 || p.Episode != "" {
		t.Fatalf("parent wrong: %+v", p)
	}
}

func TestIsToken(t *testing.T) {
	if !IsToken("nav") || !IsToken("nav:one_piece") {
		t.Fatalf("nav tokens not recognized")
	}
	if IsToken("navigate") || IsToken("pay:view:1") {
		t.Fatalf("foreign data recognized as token")
	}
}
