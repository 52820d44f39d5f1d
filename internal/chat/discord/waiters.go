package discord

import (
	"sync"

	"github.com/vaidashi/hire-a-tutor/internal/chat"
)

type waiterKey struct {
	channelID string
	userID    string
}

type waiter struct {
	ch         chan chat.Incoming
	superseded chan struct{}
}

// waiters routes a user's next message in a channel to whoever is waiting
// for it. A newer waiter for the same channel and user replaces the older
// one, whose superseded channel is closed.
type waiters struct {
	mu      sync.Mutex
	pending map[waiterKey]*waiter
}

func newWaiters() *waiters {
	return &waiters{pending: make(map[waiterKey]*waiter)}
}

func (w *waiters) register(channelID, userID string) (*waiter, func()) {
	key := waiterKey{channelID: channelID, userID: userID}
	wt := &waiter{ch: make(chan chat.Incoming, 1), superseded: make(chan struct{})}

	w.mu.Lock()
	if old, ok := w.pending[key]; ok {
		close(old.superseded)
	}
	w.pending[key] = wt
	w.mu.Unlock()

	return wt, func() {
		w.mu.Lock()
		defer w.mu.Unlock()

		if w.pending[key] == wt {
			delete(w.pending, key)
		}
	}
}

// deliver hands msg to a waiter and reports whether one took it
func (w *waiters) deliver(msg chat.Incoming) bool {
	key := waiterKey{channelID: msg.ChannelID, userID: msg.AuthorID}

	w.mu.Lock()
	wt, ok := w.pending[key]
	if ok {
		delete(w.pending, key)
	}
	w.mu.Unlock()

	if !ok {
		return false
	}

	wt.ch <- msg
	return true
}

func (w *waiters) len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}
