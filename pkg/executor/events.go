package executor

import (
	"sync"
	"time"

	"github.com/golem-project/golem-core/pkg/ids"
	"github.com/golem-project/golem-core/pkg/rpcproto"
)

// eventBus fans out lifecycle events per worker to any ConnectWorker
// streams currently tailing that worker. Narrowed from a full pub/sub
// broker to a per-worker subscriber list, since ConnectWorker only ever
// tails one worker id at a time.
type eventBus struct {
	mu   sync.Mutex
	subs map[ids.WorkerId][]chan rpcproto.WorkerEvent
}

func newEventBus() *eventBus {
	return &eventBus{subs: make(map[ids.WorkerId][]chan rpcproto.WorkerEvent)}
}

// subscribe returns a channel that receives events published for id, and an
// unsubscribe function the caller must invoke when done tailing.
func (b *eventBus) subscribe(id ids.WorkerId) (<-chan rpcproto.WorkerEvent, func()) {
	ch := make(chan rpcproto.WorkerEvent, 16)

	b.mu.Lock()
	b.subs[id] = append(b.subs[id], ch)
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[id]
		for i, c := range subs {
			if c == ch {
				b.subs[id] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		if len(b.subs[id]) == 0 {
			delete(b.subs, id)
		}
		close(ch)
	}
	return ch, unsubscribe
}

// publish delivers an event to every current subscriber of id, dropping it
// for any subscriber whose buffer is full rather than blocking the caller.
func (b *eventBus) publish(id ids.WorkerId, stream string, data []byte) {
	b.mu.Lock()
	subs := append([]chan rpcproto.WorkerEvent(nil), b.subs[id]...)
	b.mu.Unlock()

	event := rpcproto.WorkerEvent{Timestamp: time.Now().UTC(), Stream: stream, Data: data}
	for _, ch := range subs {
		select {
		case ch <- event:
		default:
		}
	}
}

func (b *eventBus) publishLifecycle(id ids.WorkerId, message string) {
	b.publish(id, "lifecycle", []byte(message))
}
