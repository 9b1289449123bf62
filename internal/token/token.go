// Package token encodes catalog navigation positions into the compact
// opaque strings carried on inline keyboard buttons. The transport keeps no
// session memory between button presses, so the full path rides along.
package token

import (
	"errors"
	"fmt"
	"strings"

	"animebot/pkg/domain"
)

// Prefix marks navigation tokens; everything else on the callback channel
// belongs to workflow buttons.
const Prefix = "nav"

// MaxLen is the transport's bound on callback data.
const MaxLen = 64

var (
	ErrBadPrefix    = errors.New("token: not a navigation token")
	ErrEmptySegment = errors.New("token: empty path segment")
	ErrTooDeep      = errors.New("token: too many path segments")
	ErrTooLong      = fmt.Errorf("token: exceeds %d bytes", MaxLen)
)

// Path is a catalog position. Segments fill front to back: a set Episode
// implies a set Season, and so on. Depth 0 addresses the title list.
type Path struct {
	TitleID string
	Season  string
	Episode string
	Quality string
}

// Depth returns how many segments are set.
func (p Path) Depth() int {
	switch {
	case p.Quality != "":
		return 4
	case p.Episode != "":
		return 3
	case p.Season != "":
		return 2
	case p.TitleID != "":
		return 1
	default:
		return 0
	}
}

func (p Path) segments() []string {
	all := []string{p.TitleID, p.Season, p.Episode, p.Quality}
	return all[:p.Depth()]
}

// Child returns the path extended by one segment.
func (p Path) Child(segment string) Path {
	switch p.Depth() {
	case 0:
		p.TitleID = segment
	case 1:
		p.Season = segment
	case 2:
		p.Episode = segment
	default:
		p.Quality = segment
	}
	return p
}

// Parent returns the path truncated by one segment.
func (p Path) Parent() Path {
	switch p.Depth() {
	case 4:
		p.Quality = ""
	case 3:
		p.Episode = ""
	case 2:
		p.Season = ""
	default:
		p.TitleID = ""
	}
	return p
}

// Encode renders the path as prefix-plus-delimited-segments. Segments must
// be non-empty below the path depth and free of the delimiter; key
// validation at authoring time guarantees this for stored keys, so a
// failure here indicates a programming error upstream.
func Encode(p Path) (string, error) {
	parts := append([]string{Prefix}, p.segments()...)
	for _, seg := range parts[1:] {
		if seg == "" {
			return "", ErrEmptySegment
		}
		if strings.Contains(seg, domain.PathDelimiter) {
			return "", fmt.Errorf("token: segment %q contains delimiter", seg)
		}
	}
	s := strings.Join(parts, domain.PathDelimiter)
	if len(s) > MaxLen {
		return "", ErrTooLong
	}
	return s, nil
}

// Decode parses a callback token back into a path. Malformed input from a
// tampered or truncated button yields a typed error, never a panic.
func Decode(s string) (Path, error) {
	if len(s) > MaxLen {
		return Path{}, ErrTooLong
	}
	parts := strings.Split(s, domain.PathDelimiter)
	if parts[0] != Prefix {
		return Path{}, ErrBadPrefix
	}
	segs := parts[1:]
	if len(segs) > 4 {
		return Path{}, ErrTooDeep
	}
	var p Path
	for _, seg := range segs {
		if seg == "" {
			return Path{}, ErrEmptySegment
		}
		p = p.Child(seg)
	}
	return p, nil
}

// IsToken reports whether callback data belongs to this codec.
func IsToken(s string) bool {
	return s == Prefix || strings.HasPrefix(s, Prefix+domain.PathDelimiter)
}
