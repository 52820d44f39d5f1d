package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/vaidashi/hire-a-tutor/pkg/logger"
)

// poller calls tick every interval on its own goroutine until stop
type poller struct {
	name     string
	interval time.Duration
	tick     func(ctx context.Context) error
	logger   logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func (p *poller) start(keyvals ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})

	go p.run(ctx, p.done)

	p.logger.Info(p.name+" started", append([]interface{}{"pollingInterval", p.interval}, keyvals...)...)
}

// stop cancels the loop and waits for an in-flight tick to return
func (p *poller) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel == nil {
		return
	}

	p.cancel()
	<-p.done
	p.cancel = nil

	p.logger.Info(p.name + " stopped")
}

func (p *poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.tick(ctx); err != nil {
				p.logger.Error(p.name+" batch failed", "error", err)
			}
		}
	}
}
