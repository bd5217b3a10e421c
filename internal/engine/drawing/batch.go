package drawing

import (
	"sync"
	"time"

	"github.com/parlorgames/parlor-backend/internal"
)

const (
	DefaultBatchSize    = 64
	DefaultBatchTimeout = 150 * time.Millisecond
)

// Batcher coalesces accepted draw commands into fewer broadcasts. Commands
// accumulate in order; the buffer flushes immediately on start/end/clear or
// when it reaches maxSize, otherwise after the debounce interval measured
// from the first buffered command. A flush hands the sink the exact ordered
// command list, so nothing is ever reordered or dropped.
type Batcher struct {
	mu       sync.Mutex
	maxSize  int
	debounce time.Duration
	buf      []internal.DrawingCommand
	timer    *time.Timer
	sink     func(commands []internal.DrawingCommand)
	stopped  bool
}

func NewBatcher(maxSize int, debounce time.Duration) *Batcher {
	if maxSize <= 0 {
		maxSize = DefaultBatchSize
	}
	if debounce <= 0 {
		debounce = DefaultBatchTimeout
	}
	return &Batcher{maxSize: maxSize, debounce: debounce}
}

// SetSink wires the flush destination. Until a sink is set, flushed batches
// are discarded; the authoritative command log in GameState is unaffected.
func (b *Batcher) SetSink(sink func(commands []internal.DrawingCommand)) {
	b.mu.Lock()
	b.sink = sink
	b.mu.Unlock()
}

// Add buffers one command, flushing per the rules above.
func (b *Batcher) Add(cmd internal.DrawingCommand) {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	b.buf = append(b.buf, cmd)

	boundary := cmd.Kind == internal.DrawStart || cmd.Kind == internal.DrawEnd || cmd.Kind == internal.DrawClear
	if boundary || len(b.buf) >= b.maxSize {
		batch, sink := b.takeLocked()
		b.mu.Unlock()
		deliver(sink, batch)
		return
	}

	if b.timer == nil {
		b.timer = time.AfterFunc(b.debounce, b.Flush)
	}
	b.mu.Unlock()
}

// Flush sends whatever is buffered right now.
func (b *Batcher) Flush() {
	b.mu.Lock()
	batch, sink := b.takeLocked()
	b.mu.Unlock()
	deliver(sink, batch)
}

// Stop flushes any pending commands and releases the debounce timer. Further
// Adds are ignored.
func (b *Batcher) Stop() {
	b.mu.Lock()
	b.stopped = true
	batch, sink := b.takeLocked()
	b.mu.Unlock()
	deliver(sink, batch)
}

// takeLocked detaches the buffer and disarms the timer. Callers hold b.mu.
func (b *Batcher) takeLocked() ([]internal.DrawingCommand, func([]internal.DrawingCommand)) {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	batch := b.buf
	b.buf = nil
	return batch, b.sink
}

func deliver(sink func([]internal.DrawingCommand), batch []internal.DrawingCommand) {
	if sink == nil || len(batch) == 0 {
		return
	}
	sink(batch)
}
