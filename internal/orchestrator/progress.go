package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rawblock/idps-compare/internal/logging"
)

const pollInterval = 5 * time.Second

// CounterSource reads named/keyed counters, satisfied by
// *store.LabelStore.
type CounterSource interface {
	Counter(ctx context.Context, name, key string) (int64, error)
}

// ProgressReporter polls a CounterSource every five seconds and logs a
// combined stats line, independent of each parser's own per-batch
// progress log. It stays dormant until Start releases it.
type ProgressReporter struct {
	source CounterSource
	log    logging.Sink

	start sync.Once
	stop  chan struct{}
}

// NewProgressReporter builds a reporter over the given counter source.
func NewProgressReporter(source CounterSource, log logging.Sink) *ProgressReporter {
	return &ProgressReporter{source: source, log: log, stop: make(chan struct{})}
}

// Start releases the reporter to begin polling in the background;
// subsequent calls are no-ops.
func (p *ProgressReporter) Start(ctx context.Context, keys map[string][]string) {
	p.start.Do(func() {
		go p.run(ctx, keys)
	})
}

// Stop halts polling.
func (p *ProgressReporter) Stop() {
	close(p.stop)
}

func (p *ProgressReporter) run(ctx context.Context, keys map[string][]string) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		case <-ticker.C:
			p.report(ctx, keys)
		}
	}
}

func (p *ProgressReporter) report(ctx context.Context, keys map[string][]string) {
	if p.log == nil {
		return
	}
	for name, ks := range keys {
		for _, k := range ks {
			v, err := p.source.Counter(ctx, name, k)
			if err != nil {
				continue
			}
			p.log.Emit(logging.Record{
				Component: "ProgressReporter",
				PlainText: fmt.Sprintf("%s[%s] = %d", name, k, v),
			})
		}
	}
}
