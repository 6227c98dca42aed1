package playback

import (
	"testing"
)

func TestBus_PublishOrder(t *testing.T) {
	b := NewBus()
	var got []string
	b.Subscribe(func(e Event) { got = append(got, "a:"+string(e.Kind())) })
	b.Subscribe(func(e Event) { got = append(got, "b:"+string(e.Kind())) })

	b.Publish(PlayEvent{Track: TrackRef{ID: "x"}})
	b.Publish(PauseEvent{Track: TrackRef{ID: "x"}})

	want := []string{"a:play", "b:play", "a:pause", "b:pause"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	b := NewBus()
	calls := 0
	unsubscribe := b.Subscribe(func(Event) { calls++ })

	b.Publish(EndedEvent{})
	unsubscribe()
	unsubscribe() // idempotent
	b.Publish(EndedEvent{})

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if n := b.SubscriberCount(); n != 0 {
		t.Errorf("SubscriberCount() = %d, want 0", n)
	}
}

func TestBus_SubscribeChanDropsWhenFull(t *testing.T) {
	b := NewBus()
	ch, cancel := b.SubscribeChan(1)

	b.Publish(PlayEvent{Track: TrackRef{ID: "1"}})
	b.Publish(PlayEvent{Track: TrackRef{ID: "2"}}) // dropped

	e := <-ch
	if e.TrackID() != "1" {
		t.Errorf("first event = %s, want 1", e.TrackID())
	}

	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after cancel")
	}
	b.Publish(PlayEvent{}) // must not panic on closed channel
}

func TestToEnvelope(t *testing.T) {
	track := TrackRef{ID: "t", Title: "Song"}
	tests := []struct {
		name  string
		event Event
		check func(Envelope) bool
	}{
		{"play", PlayEvent{Track: track, URL: "u", Restart: true}, func(e Envelope) bool {
			return e.Kind == KindPlay && e.URL == "u" && e.Restart
		}},
		{"pause", PauseEvent{Track: track, Position: 12}, func(e Envelope) bool {
			return e.Kind == KindPause && e.Position == 12
		}},
		{"ended", EndedEvent{Track: track}, func(e Envelope) bool {
			return e.Kind == KindEnded && e.Title == "Song"
		}},
		{"failed", FailedEvent{Track: track, Notice: "n"}, func(e Envelope) bool {
			return e.Kind == KindFailed && e.Notice == "n"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := ToEnvelope(tt.event)
			if env.TrackID != "t" || env.Timestamp == 0 || !tt.check(env) {
				t.Errorf("unexpected envelope %+v", env)
			}
		})
	}
}
