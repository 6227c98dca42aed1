package playback

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math"
	"slices"
	"sync"
	"sync/atomic"

	"blogmusic/core/resolver"
	"blogmusic/logger"
)

var (
	ErrSessionClosed = errors.New("playback session closed")
	ErrNoTrack       = errors.New("no track loaded")
	ErrNotPlaying    = errors.New("track is not playing")
	ErrNotPaused     = errors.New("track is not paused")
	ErrStaleTrack    = errors.New("report does not belong to the current track")
)

const defaultMaxAttempts = 8

// Observer receives attempt outcomes, e.g. for metrics.
type Observer interface {
	AttemptFinished(platform resolver.Platform, accepted bool)
	PlaybackFailed(platform resolver.Platform)
}

type nopObserver struct{}

func (nopObserver) AttemptFinished(resolver.Platform, bool) {}
func (nopObserver) PlaybackFailed(resolver.Platform)        {}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithObserver installs an Observer.
func WithObserver(o Observer) Option {
	return func(c *Coordinator) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithMaxAttempts caps primary plus fallback attempts per request.
func WithMaxAttempts(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithName tags log lines with a session name.
func WithName(name string) Option {
	return func(c *Coordinator) { c.name = name }
}

// attempt is one URL tried for one request. gen ties it to the request that started it.
type attempt struct {
	ctx   context.Context
	gen   uint64
	index int
	url   string
}

// Coordinator is the single-slot playback controller. Every request preempts whatever was
// loaded; results of abandoned attempts are discarded by generation.
type Coordinator struct {
	mu sync.Mutex

	resolver    resolver.Resolver
	media       MediaHandle
	bus         *Bus
	observer    Observer
	maxAttempts int
	name        string

	session Session
	gen     uint64
	closed  bool

	// 待投递事件，同一时刻只有一个 goroutine 负责投递
	pending  []Event
	draining bool

	tried     []string
	pullNext  func() (string, bool)
	pullStop  func()
	cancelCtx context.CancelFunc

	snapshot atomic.Pointer[Session]
}

// NewCoordinator wires a Coordinator. bus may be shared with subscribers created earlier.
func NewCoordinator(res resolver.Resolver, media MediaHandle, bus *Bus, opts ...Option) *Coordinator {
	if res == nil {
		res = resolver.Default
	}
	if bus == nil {
		bus = NewBus()
	}
	c := &Coordinator{
		resolver:    res,
		media:       media,
		bus:         bus,
		observer:    nopObserver{},
		maxAttempts: defaultMaxAttempts,
		session:     newSession(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.publishSnapshotLocked()
	return c
}

// Bus returns the event bus subscribers listen on.
func (c *Coordinator) Bus() *Bus {
	return c.bus
}

// Snapshot returns a copy of the session. It never blocks on transitions.
func (c *Coordinator) Snapshot() Session {
	return c.snapshot.Load().clone()
}

// Request loads track, abandoning whatever was loaded or loading before.
func (c *Coordinator) Request(track TrackRef) error {
	track = track.withPlatform()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrSessionClosed
	}
	c.abandonLocked()

	c.gen++
	t := track
	c.session.Current = &t
	c.session.State = StateLoading
	c.session.IsPlaying = false
	c.session.PositionSeconds = 0
	c.session.DurationSeconds = 0
	c.session.AttemptIndex = 0
	c.session.ActiveURL = ""

	ctx, cancel := context.WithCancel(context.Background())
	c.cancelCtx = cancel
	c.tried = c.tried[:0]
	c.pullNext, c.pullStop = iter.Pull(c.resolver.Fallbacks(track.SourceURL, track.Platform))

	primary := c.resolver.ResolvePrimary(track.SourceURL, track.Platform)
	logger.Info("playback requested",
		logger.String("session", c.name),
		logger.String("trackId", track.ID),
		logger.String("platform", track.Platform.String()),
		logger.String("primaryUrl", primary))

	var next *attempt
	var events []Event
	if primary != "" {
		next = c.newAttemptLocked(ctx, primary)
	} else {
		next, events = c.advanceLocked(ctx)
	}
	c.publishSnapshotLocked()
	c.unlockAndDispatch(events)

	if next != nil {
		c.launch(next)
	}
	return nil
}

// Pause stops a playing track.
func (c *Coordinator) Pause() error {
	c.mu.Lock()
	if err := c.requireState(StatePlaying, ErrNotPlaying); err != nil {
		c.mu.Unlock()
		return err
	}
	c.session.State = StatePaused
	c.session.IsPlaying = false
	ev := PauseEvent{Track: *c.session.Current, Position: c.session.PositionSeconds}
	c.publishSnapshotLocked()
	c.unlockAndDispatch([]Event{ev})
	return nil
}

// Resume continues a paused track.
func (c *Coordinator) Resume() error {
	c.mu.Lock()
	if err := c.requireState(StatePaused, ErrNotPaused); err != nil {
		c.mu.Unlock()
		return err
	}
	c.session.State = StatePlaying
	c.session.IsPlaying = true
	ev := PlayEvent{Track: *c.session.Current, URL: c.session.ActiveURL, Resumed: true}
	c.publishSnapshotLocked()
	c.unlockAndDispatch([]Event{ev})
	return nil
}

// Seek moves the transport while playing or paused, clamped to [0, duration].
// It returns the resulting position.
func (c *Coordinator) Seek(seconds float64) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, ErrSessionClosed
	}
	if c.session.State != StatePlaying && c.session.State != StatePaused {
		return c.session.PositionSeconds, ErrNotPlaying
	}
	c.session.PositionSeconds = clampPosition(seconds, c.session.DurationSeconds, true)
	c.publishSnapshotLocked()
	return c.session.PositionSeconds, nil
}

// UpdatePosition records a time update reported by the media element.
func (c *Coordinator) UpdatePosition(trackID string, seconds float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkReportLocked(trackID); err != nil {
		return err
	}
	if c.session.State != StatePlaying && c.session.State != StatePaused {
		return nil
	}
	c.session.PositionSeconds = clampPosition(seconds, c.session.DurationSeconds, false)
	c.publishSnapshotLocked()
	return nil
}

// SetDuration records loaded metadata. Invalid durations are ignored so the session keeps
// an unknown (0) duration.
func (c *Coordinator) SetDuration(trackID string, seconds float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkReportLocked(trackID); err != nil {
		return err
	}
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds <= 0 {
		return nil
	}
	c.session.DurationSeconds = seconds
	c.session.PositionSeconds = clampPosition(c.session.PositionSeconds, seconds, false)
	c.publishSnapshotLocked()
	return nil
}

// MediaEnded handles natural end of track. With repeat on the track restarts at 0.
func (c *Coordinator) MediaEnded(trackID string) error {
	c.mu.Lock()
	if err := c.checkReportLocked(trackID); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.session.State != StatePlaying {
		c.mu.Unlock()
		return ErrNotPlaying
	}

	var ev Event
	if c.session.Repeat {
		c.session.PositionSeconds = 0
		ev = PlayEvent{Track: *c.session.Current, URL: c.session.ActiveURL, Restart: true}
	} else {
		c.session.State = StateEnded
		c.session.IsPlaying = false
		if c.session.DurationSeconds > 0 {
			c.session.PositionSeconds = c.session.DurationSeconds
		}
		ev = EndedEvent{Track: *c.session.Current}
	}
	c.publishSnapshotLocked()
	c.unlockAndDispatch([]Event{ev})
	return nil
}

// SetVolume clamps v to [0, 1]. NaN is ignored.
func (c *Coordinator) SetVolume(v float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !math.IsNaN(v) {
		c.session.Volume = math.Max(0, math.Min(1, v))
		c.publishSnapshotLocked()
	}
	return c.session.Volume
}

func (c *Coordinator) ToggleMute() bool {
	return c.toggle(func(s *Session) *bool { return &s.Muted })
}

func (c *Coordinator) ToggleRepeat() bool {
	return c.toggle(func(s *Session) *bool { return &s.Repeat })
}

func (c *Coordinator) ToggleShuffle() bool {
	return c.toggle(func(s *Session) *bool { return &s.Shuffle })
}

func (c *Coordinator) toggle(field func(*Session) *bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	f := field(&c.session)
	*f = !*f
	c.publishSnapshotLocked()
	return *f
}

// Close abandons any in-flight attempt and stops the transport. Further requests fail
// with ErrSessionClosed.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.gen++
	c.abandonLocked()

	// 关闭后快照不能再显示正在播放
	switch c.session.State {
	case StatePlaying:
		c.session.State = StatePaused
	case StateLoading:
		c.session.State = StateEmpty
		c.session.Current = nil
		c.session.AttemptIndex = 0
		c.session.ActiveURL = ""
	}
	c.session.IsPlaying = false
	c.publishSnapshotLocked()
}

// ========== 内部方法（需要持有锁） ==========

func (c *Coordinator) requireState(want State, err error) error {
	if c.closed {
		return ErrSessionClosed
	}
	if c.session.Current == nil {
		return ErrNoTrack
	}
	if c.session.State != want {
		return err
	}
	return nil
}

func (c *Coordinator) checkReportLocked(trackID string) error {
	if c.closed {
		return ErrSessionClosed
	}
	if c.session.Current == nil {
		return ErrNoTrack
	}
	if trackID != c.session.Current.ID {
		return ErrStaleTrack
	}
	return nil
}

func (c *Coordinator) abandonLocked() {
	if c.cancelCtx != nil {
		c.cancelCtx()
		c.cancelCtx = nil
	}
	if c.pullStop != nil {
		c.pullStop()
		c.pullStop = nil
		c.pullNext = nil
	}
}

func (c *Coordinator) newAttemptLocked(ctx context.Context, url string) *attempt {
	c.tried = append(c.tried, url)
	c.session.AttemptIndex = len(c.tried) - 1
	return &attempt{ctx: ctx, gen: c.gen, index: c.session.AttemptIndex, url: url}
}

// advanceLocked picks the next untried fallback, or moves the session to Failed.
func (c *Coordinator) advanceLocked(ctx context.Context) (*attempt, []Event) {
	for c.pullNext != nil && len(c.tried) < c.maxAttempts {
		url, ok := c.pullNext()
		if !ok {
			break
		}
		if url == "" || slices.Contains(c.tried, url) {
			continue
		}
		return c.newAttemptLocked(ctx, url), nil
	}

	track := *c.session.Current
	c.session.State = StateFailed
	c.session.IsPlaying = false
	c.session.ActiveURL = ""
	attempts := len(c.tried)
	c.abandonLocked()
	c.observer.PlaybackFailed(track.Platform)

	logger.Warn("playback failed, all candidate urls exhausted",
		logger.String("session", c.name),
		logger.String("trackId", track.ID),
		logger.Int("attempts", attempts))

	return nil, []Event{FailedEvent{
		Track:    track,
		Attempts: attempts,
		Notice:   fmt.Sprintf("无法播放《%s》，请稍后再试", track.Title),
	}}
}

func (c *Coordinator) publishSnapshotLocked() {
	s := c.session.clone()
	c.snapshot.Store(&s)
}

// unlockAndDispatch queues events, releases mu, and delivers the queue in transition
// order. Only one goroutine drains at a time; a call made while another is draining
// (including a subscriber calling back into the Coordinator) leaves its events to it.
func (c *Coordinator) unlockAndDispatch(events []Event) {
	c.pending = append(c.pending, events...)
	if c.draining || len(c.pending) == 0 {
		c.mu.Unlock()
		return
	}
	c.draining = true
	for len(c.pending) > 0 {
		batch := c.pending
		c.pending = nil
		c.mu.Unlock()
		for _, e := range batch {
			c.bus.Publish(e)
		}
		c.mu.Lock()
	}
	c.draining = false
	c.mu.Unlock()
}

func (c *Coordinator) launch(a *attempt) {
	if c.media == nil {
		c.onLoadResult(a, LoadResult{Reason: "no media handle"})
		return
	}
	c.media.Load(a.ctx, a.url, func(r LoadResult) {
		c.onLoadResult(a, r)
	})
}

func (c *Coordinator) onLoadResult(a *attempt, r LoadResult) {
	c.mu.Lock()
	if c.closed || a.gen != c.gen || c.session.State != StateLoading || a.index != c.session.AttemptIndex {
		c.mu.Unlock()
		logger.Debug("discarding stale playback attempt",
			logger.String("session", c.name),
			logger.String("url", a.url))
		return
	}

	track := *c.session.Current
	c.observer.AttemptFinished(track.Platform, r.Accepted)

	if r.Accepted {
		c.session.State = StatePlaying
		c.session.IsPlaying = true
		c.session.ActiveURL = a.url
		if r.Duration > 0 {
			c.session.DurationSeconds = r.Duration
		}
		c.abandonLocked() // 已选定地址，释放剩余的候选序列
		c.publishSnapshotLocked()
		c.unlockAndDispatch([]Event{PlayEvent{Track: track, URL: a.url}})
		return
	}

	logger.Warn("playback attempt rejected",
		logger.String("session", c.name),
		logger.String("trackId", track.ID),
		logger.Int("attempt", a.index),
		logger.String("url", a.url),
		logger.String("reason", r.Reason))

	next, events := c.advanceLocked(a.ctx)
	c.publishSnapshotLocked()
	c.unlockAndDispatch(events)
	if next != nil {
		c.launch(next)
	}
}
