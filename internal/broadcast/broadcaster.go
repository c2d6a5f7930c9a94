package broadcast

import (
	"log/slog"
	"sync"

	"resumate/internal/parser"
)

// DefaultBuffer 是单个订阅者的事件缓冲大小。
const DefaultBuffer = 16

// Subscriber 是某个作业的一条实时事件流。
// 通道在退订或被判定为迟滞后由 Broadcaster 关闭。
type Subscriber struct {
	ch chan parser.ProgressEvent
}

// Events 返回只读事件通道，通道关闭即流结束。
func (s *Subscriber) Events() <-chan parser.ProgressEvent {
	return s.ch
}

// Broadcaster 维护 jobID 到订阅者集合的注册表，按作业 multicast 进度事件。
// 注册表只保存订阅句柄，不持有任何作业数据；订阅者清空后对应条目被回收。
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[string]map[*Subscriber]struct{}
	buffer int
	logger *slog.Logger
}

// NewBroadcaster 构造广播器，buffer 为每个订阅者的通道容量。
func NewBroadcaster(buffer int, logger *slog.Logger) *Broadcaster {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subs:   make(map[string]map[*Subscriber]struct{}),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe 注册一个新的订阅者。没有事件回放：
// 晚加入的订阅者只能看到此后发布的事件。
func (b *Broadcaster) Subscribe(jobID string) *Subscriber {
	sub := &Subscriber{ch: make(chan parser.ProgressEvent, b.buffer)}

	b.mu.Lock()
	defer b.mu.Unlock()

	set, ok := b.subs[jobID]
	if !ok {
		set = make(map[*Subscriber]struct{})
		b.subs[jobID] = set
	}
	set[sub] = struct{}{}
	return sub
}

// Unsubscribe 移除订阅者并关闭其通道。重复退订是无害的。
func (b *Broadcaster) Unsubscribe(jobID string, sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	set, ok := b.subs[jobID]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	close(sub.ch)
	if len(set) == 0 {
		delete(b.subs, jobID)
	}
}

// Publish 尽力把事件投递给该作业的每个订阅者。
// 发布从不等待：缓冲打满的迟滞订阅者被就地剔除并关闭，
// 不影响其余订阅者收到本条事件。没有订阅者时发布是空操作。
func (b *Broadcaster) Publish(jobID string, event parser.ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	set, ok := b.subs[jobID]
	if !ok {
		return
	}

	for sub := range set {
		select {
		case sub.ch <- event:
		default:
			delete(set, sub)
			close(sub.ch)
			b.logger.Warn("dropping slow subscriber",
				slog.String("job_id", jobID),
				slog.String("stage", string(event.Stage)),
			)
		}
	}
	if len(set) == 0 {
		delete(b.subs, jobID)
	}
}

// SubscriberCount 返回某作业当前的订阅者数量。
func (b *Broadcaster) SubscriberCount(jobID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[jobID])
}
