package playback

import (
	"time"
)

// EventKind is the wire name of a playback notification.
type EventKind string

const (
	KindPlay   EventKind = "play"
	KindPause  EventKind = "pause"
	KindEnded  EventKind = "ended"
	KindFailed EventKind = "failed"
)

// Event is one of PlayEvent, PauseEvent, EndedEvent or FailedEvent.
type Event interface {
	Kind() EventKind
	TrackID() string
	isEvent()
}

// PlayEvent is published when playback starts, resumes, or restarts on repeat.
type PlayEvent struct {
	Track   TrackRef
	URL     string
	Resumed bool
	Restart bool
}

// PauseEvent carries the position at which the transport stopped.
type PauseEvent struct {
	Track    TrackRef
	Position float64
}

type EndedEvent struct {
	Track TrackRef
}

// FailedEvent is terminal for a request: every candidate URL was rejected.
type FailedEvent struct {
	Track    TrackRef
	Attempts int
	Notice   string
}

func (PlayEvent) Kind() EventKind   { return KindPlay }
func (PauseEvent) Kind() EventKind  { return KindPause }
func (EndedEvent) Kind() EventKind  { return KindEnded }
func (FailedEvent) Kind() EventKind { return KindFailed }

func (e PlayEvent) TrackID() string   { return e.Track.ID }
func (e PauseEvent) TrackID() string  { return e.Track.ID }
func (e EndedEvent) TrackID() string  { return e.Track.ID }
func (e FailedEvent) TrackID() string { return e.Track.ID }

func (PlayEvent) isEvent()   {}
func (PauseEvent) isEvent()  {}
func (EndedEvent) isEvent()  {}
func (FailedEvent) isEvent() {}

// Envelope is the JSON shape pushed to websocket subscribers.
type Envelope struct {
	Kind      EventKind `json:"kind"`
	TrackID   string    `json:"trackId"`
	Title     string    `json:"title,omitempty"`
	URL       string    `json:"url,omitempty"`
	Position  float64   `json:"position,omitempty"`
	Restart   bool      `json:"restart,omitempty"`
	Notice    string    `json:"notice,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

// ToEnvelope flattens an event for the wire.
func ToEnvelope(e Event) Envelope {
	env := Envelope{
		Kind:      e.Kind(),
		TrackID:   e.TrackID(),
		Timestamp: time.Now().UnixMilli(),
	}
	switch ev := e.(type) {
	case PlayEvent:
		env.Title = ev.Track.Title
		env.URL = ev.URL
		env.Restart = ev.Restart
	case PauseEvent:
		env.Title = ev.Track.Title
		env.Position = ev.Position
	case EndedEvent:
		env.Title = ev.Track.Title
	case FailedEvent:
		env.Title = ev.Track.Title
		env.Notice = ev.Notice
	}
	return env
}
