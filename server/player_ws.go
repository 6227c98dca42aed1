package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"blogmusic/core/playback"
	"blogmusic/logger"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
	wsReadLimit  = 4096 // 4KB
	wsSendBuffer = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsCommand is a media report or transport command sent by the browser.
type wsCommand struct {
	Action  string  `json:"action"` // ping, pause, resume, ended, progress, duration, snapshot
	TrackID string  `json:"trackId"`
	Seconds float64 `json:"seconds"`
}

type wsReply struct {
	Kind      string            `json:"kind"` // snapshot, pong, error
	Session   *playback.Session `json:"session,omitempty"`
	Message   string            `json:"message,omitempty"`
	Timestamp int64             `json:"timestamp"`
}

// playerConn 单个播放器 WebSocket 连接
type playerConn struct {
	sid     string
	conn    *websocket.Conn
	coord   *playback.Coordinator
	events  <-chan playback.Event
	replies chan []byte
	done    chan struct{}
}

// PlayerWSHandler streams playback events for one session and accepts media reports.
func (h *APIHandler) PlayerWSHandler(w http.ResponseWriter, r *http.Request) {
	sid := mux.Vars(r)["sid"]
	coord, ok := h.players.Get(sid)
	if !ok {
		respondError(w, http.StatusNotFound, "播放会话不存在或已过期")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("failed to upgrade player websocket",
			logger.String("session", sid),
			logger.ErrorField(err))
		return
	}

	events, unsubscribe := coord.Bus().SubscribeChan(wsSendBuffer)
	pc := &playerConn{
		sid:     sid,
		conn:    conn,
		coord:   coord,
		events:  events,
		replies: make(chan []byte, wsSendBuffer),
		done:    make(chan struct{}),
	}
	logger.Info("player websocket connected", logger.String("session", sid))

	pc.sendSnapshot()
	go pc.writePump()
	pc.readPump()

	unsubscribe()
	close(pc.done)
	logger.Info("player websocket disconnected", logger.String("session", sid))
}

func (pc *playerConn) readPump() {
	defer pc.conn.Close()

	pc.conn.SetReadLimit(wsReadLimit)
	pc.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	pc.conn.SetPongHandler(func(string) error {
		pc.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		_, message, err := pc.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("player websocket read error",
					logger.ErrorField(err),
					logger.String("session", pc.sid))
			}
			return
		}

		var cmd wsCommand
		if err := json.Unmarshal(message, &cmd); err != nil {
			logger.Warn("invalid player message format",
				logger.ErrorField(err),
				logger.String("session", pc.sid))
			pc.sendError("消息格式错误")
			continue
		}
		if err := pc.handle(cmd); err != nil {
			pc.sendError(playerErrorMessage(err))
			if errors.Is(err, playback.ErrSessionClosed) {
				return
			}
		}
	}
}

func (pc *playerConn) handle(cmd wsCommand) error {
	var err error
	switch cmd.Action {
	case "ping":
		pc.send(wsReply{Kind: "pong"})
		return nil
	case "snapshot":
		pc.sendSnapshot()
		return nil
	case "pause":
		err = pc.coord.Pause()
	case "resume":
		err = pc.coord.Resume()
	case "ended":
		err = pc.coord.MediaEnded(cmd.TrackID)
	case "progress":
		// 进度上报频繁，不回复快照
		return pc.coord.UpdatePosition(cmd.TrackID, cmd.Seconds)
	case "duration":
		err = pc.coord.SetDuration(cmd.TrackID, cmd.Seconds)
	default:
		return errUnknownAction
	}
	if err != nil {
		return err
	}
	pc.sendSnapshot()
	return nil
}

var errUnknownAction = errors.New("unknown action")

func (pc *playerConn) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		pc.conn.Close()
	}()

	for {
		select {
		case <-pc.done:
			pc.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			pc.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case ev, ok := <-pc.events:
			if !ok {
				return
			}
			data, err := json.Marshal(playback.ToEnvelope(ev))
			if err != nil {
				logger.Error("failed to encode playback event", logger.ErrorField(err))
				continue
			}
			if !pc.write(data) {
				return
			}

		case data := <-pc.replies:
			if !pc.write(data) {
				return
			}

		case <-ticker.C:
			pc.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := pc.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// write sends one frame, batching any replies already queued behind it.
func (pc *playerConn) write(data []byte) bool {
	pc.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	w, err := pc.conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return false
	}
	w.Write(data)

	n := len(pc.replies)
	for i := 0; i < n; i++ {
		w.Write([]byte{'\n'})
		w.Write(<-pc.replies)
	}
	return w.Close() == nil
}

func (pc *playerConn) sendSnapshot() {
	s := pc.coord.Snapshot()
	pc.send(wsReply{Kind: "snapshot", Session: &s})
}

func (pc *playerConn) sendError(msg string) {
	pc.send(wsReply{Kind: "error", Message: msg})
}

func (pc *playerConn) send(reply wsReply) {
	reply.Timestamp = time.Now().UnixMilli()
	data, err := json.Marshal(reply)
	if err != nil {
		return
	}
	select {
	case pc.replies <- data:
	default:
		// 缓冲区满，丢弃消息
	}
}

func playerErrorMessage(err error) string {
	switch {
	case errors.Is(err, playback.ErrSessionClosed):
		return "播放会话已关闭"
	case errors.Is(err, playback.ErrNoTrack):
		return "当前没有加载歌曲"
	case errors.Is(err, playback.ErrNotPlaying):
		return "当前未在播放"
	case errors.Is(err, playback.ErrNotPaused):
		return "当前未暂停"
	case errors.Is(err, playback.ErrStaleTrack):
		return "上报的歌曲已不是当前歌曲"
	case errors.Is(err, errUnknownAction):
		return "不支持的操作"
	}
	return "播放操作失败"
}
