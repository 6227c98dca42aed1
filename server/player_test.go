package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"blogmusic/core/playback"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
)

func (e *testEnv) newSession(t *testing.T) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/player/sessions", nil, "")
	expectStatus(t, rec, http.StatusCreated)
	var created sessionCreated
	decode(t, rec, &created)
	if created.SessionID == "" || created.Session.State != playback.StateEmpty {
		t.Fatalf("created = %+v", created)
	}
	return created.SessionID
}

func TestPlayer_Lifecycle(t *testing.T) {
	env := newTestEnv(t)
	sid := env.newSession(t)
	base := "/api/player/" + sid

	// 未加载歌曲时的操作
	expectStatus(t, env.do(t, http.MethodPost, base+"/pause", nil, ""), http.StatusConflict)

	track := playback.TrackRef{ID: "t1", Title: "One", SourceURL: "https://www.dropbox.com/s/a/one.mp3?dl=0"}
	rec := env.do(t, http.MethodPost, base+"/play", playRequest{Track: &track}, "")
	expectStatus(t, rec, http.StatusAccepted)
	var s playback.Session
	decode(t, rec, &s)
	if s.State != playback.StatePlaying || s.ActiveURL != "https://dl.dropboxusercontent.com/s/a/one.mp3" {
		t.Fatalf("after play = %+v", s)
	}
	if s.Current == nil || s.Current.Platform != "dropbox" {
		t.Fatalf("platform not detected: %+v", s.Current)
	}

	steps := []struct {
		name   string
		path   string
		body   interface{}
		status int
		check  func(t *testing.T, s playback.Session)
	}{
		{"progress", "/progress", mediaReport{TrackID: "t1", Seconds: 42}, http.StatusOK, func(t *testing.T, s playback.Session) {
			if s.PositionSeconds != 42 {
				t.Errorf("position = %v, want 42", s.PositionSeconds)
			}
		}},
		{"stale progress", "/progress", mediaReport{TrackID: "old", Seconds: 1}, http.StatusConflict, nil},
		{"pause", "/pause", nil, http.StatusOK, func(t *testing.T, s playback.Session) {
			if s.State != playback.StatePaused || s.IsPlaying {
				t.Errorf("state = %v", s.State)
			}
		}},
		{"pause twice", "/pause", nil, http.StatusConflict, nil},
		{"seek past end", "/seek", seekRequest{Seconds: 9999}, http.StatusOK, func(t *testing.T, s playback.Session) {
			if s.PositionSeconds != 200 {
				t.Errorf("position = %v, want clamp to 200", s.PositionSeconds)
			}
		}},
		{"resume", "/resume", nil, http.StatusOK, func(t *testing.T, s playback.Session) {
			if s.State != playback.StatePlaying {
				t.Errorf("state = %v", s.State)
			}
		}},
		{"volume", "/volume", volumeRequest{Volume: 3}, http.StatusOK, func(t *testing.T, s playback.Session) {
			if s.Volume != 1 {
				t.Errorf("volume = %v, want 1", s.Volume)
			}
		}},
		{"mute", "/mute", nil, http.StatusOK, func(t *testing.T, s playback.Session) {
			if !s.Muted {
				t.Error("expected muted")
			}
		}},
		{"repeat", "/repeat", nil, http.StatusOK, func(t *testing.T, s playback.Session) {
			if !s.Repeat {
				t.Error("expected repeat on")
			}
		}},
		{"shuffle", "/shuffle", nil, http.StatusOK, func(t *testing.T, s playback.Session) {
			if !s.Shuffle {
				t.Error("expected shuffle on")
			}
		}},
		{"ended with repeat restarts", "/ended", mediaReport{TrackID: "t1"}, http.StatusOK, func(t *testing.T, s playback.Session) {
			if s.State != playback.StatePlaying || s.PositionSeconds != 0 {
				t.Errorf("after repeat end = %+v", s)
			}
		}},
		{"repeat off", "/repeat", nil, http.StatusOK, nil},
		{"duration", "/duration", mediaReport{TrackID: "t1", Seconds: 321}, http.StatusOK, func(t *testing.T, s playback.Session) {
			if s.DurationSeconds != 321 {
				t.Errorf("duration = %v, want 321", s.DurationSeconds)
			}
		}},
		{"ended", "/ended", mediaReport{TrackID: "t1"}, http.StatusOK, func(t *testing.T, s playback.Session) {
			if s.State != playback.StateEnded || s.PositionSeconds != 321 {
				t.Errorf("after end = %+v", s)
			}
		}},
		{"bad body", "/seek", nil, http.StatusBadRequest, nil},
	}
	for _, st := range steps {
		rec := env.do(t, http.MethodPost, base+st.path, st.body, "")
		if rec.Code != st.status {
			t.Fatalf("%s: status = %d, want %d (%s)", st.name, rec.Code, st.status, rec.Body.String())
		}
		if st.check != nil {
			var s playback.Session
			decode(t, rec, &s)
			st.check(t, s)
		}
	}

	rec = env.do(t, http.MethodGet, base, nil, "")
	expectStatus(t, rec, http.StatusOK)
	decode(t, rec, &s)
	if s.CurrentID() != "t1" {
		t.Errorf("snapshot current = %q", s.CurrentID())
	}
}

func TestPlayer_PlayFromCatalog(t *testing.T) {
	env := newTestEnv(t)
	m := env.approved(t, "Catalog", "https://example.com/catalog.mp3")
	base := "/api/player/" + env.newSession(t)

	rec := env.do(t, http.MethodPost, base+"/play", playRequest{MusicID: m.ID}, "")
	expectStatus(t, rec, http.StatusAccepted)
	var s playback.Session
	decode(t, rec, &s)
	if s.CurrentID() != itoa(m.ID) || s.ActiveURL != "https://example.com/catalog.mp3" {
		t.Fatalf("session = %+v", s)
	}

	expectStatus(t, env.do(t, http.MethodPost, base+"/play", playRequest{MusicID: 999}, ""), http.StatusNotFound)
	expectStatus(t, env.do(t, http.MethodPost, base+"/play", playRequest{}, ""), http.StatusBadRequest)
	expectStatus(t, env.do(t, http.MethodPost, base+"/play",
		playRequest{Track: &playback.TrackRef{SourceURL: "https://example.com/x.mp3"}}, ""), http.StatusBadRequest)
}

func TestPlayer_UnknownAndDeletedSession(t *testing.T) {
	env := newTestEnv(t)
	expectStatus(t, env.do(t, http.MethodGet, "/api/player/nope", nil, ""), http.StatusNotFound)
	expectStatus(t, env.do(t, http.MethodPost, "/api/player/nope/pause", nil, ""), http.StatusNotFound)

	sid := env.newSession(t)
	expectStatus(t, env.do(t, http.MethodDelete, "/api/player/"+sid, nil, ""), http.StatusOK)
	expectStatus(t, env.do(t, http.MethodGet, "/api/player/"+sid, nil, ""), http.StatusNotFound)
	expectStatus(t, env.do(t, http.MethodDelete, "/api/player/"+sid, nil, ""), http.StatusNotFound)
}

func TestPlayerSessionsGauge_FollowsExpiry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	players := playback.NewRegistry(10, 50*time.Millisecond, func(id string) *playback.Coordinator {
		return playback.NewCoordinator(nil, acceptMedia{}, nil, playback.WithObserver(m))
	})
	m.WatchSessions(players.Len)

	players.Create()
	players.Create()
	if got := sessionGauge(t, reg); got != 2 {
		t.Fatalf("gauge = %v, want 2", got)
	}

	// 过期淘汰不经过 handler，指标也要跟着变
	deadline := time.Now().Add(2 * time.Second)
	for sessionGauge(t, reg) != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("gauge still %v after ttl", sessionGauge(t, reg))
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func sessionGauge(t *testing.T, reg *prometheus.Registry) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, mf := range families {
		if mf.GetName() == "blogmusic_player_sessions" {
			return mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatal("blogmusic_player_sessions not registered")
	return 0
}

func TestPlayerWS_StreamsEvents(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	sid := env.newSession(t)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/player/" + sid
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var hello wsReply
	readJSON(t, conn, &hello)
	if hello.Kind != "snapshot" || hello.Session == nil || hello.Session.State != playback.StateEmpty {
		t.Fatalf("first message = %+v", hello)
	}

	track := playback.TrackRef{ID: "ws1", Title: "Live", SourceURL: "https://example.com/live.mp3"}
	expectStatus(t, env.do(t, http.MethodPost, "/api/player/"+sid+"/play", playRequest{Track: &track}, ""), http.StatusAccepted)

	var ev playback.Envelope
	readKind(t, conn, "play", &ev)
	if ev.TrackID != "ws1" || ev.Title != "Live" {
		t.Fatalf("event = %+v", ev)
	}

	// 通过 WebSocket 上报播放结束
	if err := conn.WriteJSON(wsCommand{Action: "ended", TrackID: "ws1"}); err != nil {
		t.Fatal(err)
	}
	readKind(t, conn, "ended", &ev)

	if err := conn.WriteJSON(wsCommand{Action: "ended", TrackID: "stale"}); err != nil {
		t.Fatal(err)
	}
	var reply wsReply
	readKind(t, conn, "error", &reply)
	if reply.Message != "上报的歌曲已不是当前歌曲" {
		t.Errorf("error message = %q", reply.Message)
	}
}

func TestPlayerWS_UnknownSession(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/player/missing", nil)
	if err == nil {
		t.Fatal("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Errorf("response = %v, want 404", resp)
	}
}

// readJSON decodes the first JSON value of the next text frame.
func readJSON(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
}

// readKind skips messages until one with the given kind arrives. A frame may carry
// several newline separated messages.
func readKind(t *testing.T, conn *websocket.Conn, kind string, v interface{}) {
	t.Helper()
	for i := 0; i < 5; i++ {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read waiting for %q: %v", kind, err)
		}
		for _, line := range bytes.Split(data, []byte{'\n'}) {
			var head struct {
				Kind string `json:"kind"`
			}
			if err := json.Unmarshal(line, &head); err != nil || head.Kind != kind {
				continue
			}
			if err := json.Unmarshal(line, v); err != nil {
				t.Fatalf("decode %s: %v", line, err)
			}
			return
		}
	}
	t.Fatalf("no %q message received", kind)
}
