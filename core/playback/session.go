// Package playback owns the single-slot "now playing" session: which track is loaded,
// whether it plays, where the transport is, and the fallback walk over resolved URLs.
package playback

import (
	"fmt"
	"math"

	"blogmusic/core/resolver"
)

// TrackRef identifies a playable item. Treat it as immutable once built.
type TrackRef struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Artist    string            `json:"artist"`
	CoverURL  string            `json:"coverUrl,omitempty"`
	SourceURL string            `json:"sourceUrl"`
	Platform  resolver.Platform `json:"platform"`
}

// withPlatform fills in the platform from the link when the caller left it blank.
func (t TrackRef) withPlatform() TrackRef {
	if t.Platform == "" || !t.Platform.IsValid() {
		t.Platform = resolver.IdentifyPlatform(t.SourceURL)
	}
	return t
}

// State 播放会话状态
type State int

const (
	StateEmpty State = iota
	StateLoading
	StatePlaying
	StatePaused
	StateEnded
	StateFailed
)

var stateNames = [...]string{"empty", "loading", "playing", "paused", "ended", "failed"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for i, name := range stateNames {
		if name == string(text) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown playback state %q", text)
}

// Session is a point-in-time copy of the playback state, safe to hand to renderers.
type Session struct {
	Current         *TrackRef `json:"current"`
	State           State     `json:"state"`
	IsPlaying       bool      `json:"isPlaying"`
	PositionSeconds float64   `json:"positionSeconds"`
	DurationSeconds float64   `json:"durationSeconds"` // 0 until metadata is known
	Volume          float64   `json:"volume"`
	Muted           bool      `json:"muted"`
	Repeat          bool      `json:"repeat"`
	Shuffle         bool      `json:"shuffle"`
	AttemptIndex    int       `json:"attemptIndex"` // 0 = primary url
	ActiveURL       string    `json:"activeUrl,omitempty"`
}

func newSession() Session {
	return Session{State: StateEmpty, Volume: 1}
}

func (s Session) clone() Session {
	if s.Current != nil {
		t := *s.Current
		s.Current = &t
	}
	return s
}

// ProgressPercent degrades to 0 while the duration is unknown.
func (s Session) ProgressPercent() float64 {
	if s.DurationSeconds <= 0 {
		return 0
	}
	return math.Min(100, s.PositionSeconds/s.DurationSeconds*100)
}

// CurrentID returns the loaded track id or "".
func (s Session) CurrentID() string {
	if s.Current == nil {
		return ""
	}
	return s.Current.ID
}

// clampPosition keeps t inside [0, duration]. With an unknown duration only the lower
// bound applies unless strict is set, in which case everything collapses to 0.
func clampPosition(t, duration float64, strict bool) float64 {
	if math.IsNaN(t) || t < 0 {
		return 0
	}
	if duration > 0 {
		return math.Min(t, duration)
	}
	if strict {
		return 0
	}
	if math.IsInf(t, 1) {
		return 0
	}
	return t
}
