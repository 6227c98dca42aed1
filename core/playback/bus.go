package playback

import (
	"sort"
	"sync"

	"blogmusic/logger"
)

// Bus 播放事件订阅管理器
// 每个播放会话拥有一个 Bus，独立的 UI 组件通过它获知状态变化
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	// 订阅ID -> 回调，按订阅顺序投递
	subscribers map[uint64]func(Event)
}

// NewBus 创建事件总线
func NewBus() *Bus {
	return &Bus{subscribers: make(map[uint64]func(Event))}
}

// Subscribe registers fn and returns a function that removes it. fn runs synchronously on
// the publishing goroutine. It may call back into the Coordinator; events produced that
// way are delivered after the current one.
func (b *Bus) Subscribe(fn func(Event)) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subscribers[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subscribers, id)
			b.mu.Unlock()
		})
	}
}

// SubscribeChan delivers events into a buffered channel. When the buffer is full the
// event is dropped for that subscriber only; order of the delivered events is kept.
// The channel is closed by the returned cancel function.
func (b *Bus) SubscribeChan(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)
	var mu sync.Mutex
	closed := false

	unsubscribe := b.Subscribe(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- e:
		default:
			// 缓冲区满，跳过该订阅者
			logger.Warn("playback subscriber buffer full, dropping event",
				logger.String("kind", string(e.Kind())),
				logger.String("trackId", e.TrackID()))
		}
	})

	return ch, func() {
		unsubscribe()
		mu.Lock()
		if !closed {
			closed = true
			close(ch)
		}
		mu.Unlock()
	}
}

// Publish 按订阅顺序同步投递事件
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	if len(b.subscribers) == 0 {
		b.mu.RUnlock()
		return
	}
	// 复制订阅者列表，避免投递时持锁
	ids := make([]uint64, 0, len(b.subscribers))
	for id := range b.subscribers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	fns := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, b.subscribers[id])
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn(e)
	}
}

// SubscriberCount 获取订阅者数量
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
