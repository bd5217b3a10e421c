package drawing

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/parlorgames/parlor-backend/internal"
)

type batchCollector struct {
	mu      sync.Mutex
	batches [][]internal.DrawingCommand
}

func (c *batchCollector) sink(commands []internal.DrawingCommand) {
	c.mu.Lock()
	c.batches = append(c.batches, commands)
	c.mu.Unlock()
}

func (c *batchCollector) flat() []internal.DrawingCommand {
	c.mu.Lock()
	defer c.mu.Unlock()
	var all []internal.DrawingCommand
	for _, b := range c.batches {
		all = append(all, b...)
	}
	return all
}

func (c *batchCollector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.batches)
}

func move(ts int64) internal.DrawingCommand {
	return internal.DrawingCommand{Kind: internal.DrawMove, X: 1, Y: 1, Timestamp: ts}
}

func TestBatcherFlushesOnStrokeBoundary(t *testing.T) {
	collector := &batchCollector{}
	b := NewBatcher(64, time.Hour)
	b.SetSink(collector.sink)

	b.Add(move(1))
	b.Add(move(2))
	require.Zero(t, collector.count(), "moves below the size cap should wait for the debounce")

	b.Add(internal.DrawingCommand{Kind: internal.DrawEnd, Timestamp: 3})
	require.Equal(t, 1, collector.count())
	require.Len(t, collector.flat(), 3)
}

func TestBatcherFlushesAtMaxSize(t *testing.T) {
	collector := &batchCollector{}
	b := NewBatcher(3, time.Hour)
	b.SetSink(collector.sink)

	b.Add(move(1))
	b.Add(move(2))
	require.Zero(t, collector.count())
	b.Add(move(3))
	require.Equal(t, 1, collector.count())
}

func TestBatcherFlushesAfterDebounce(t *testing.T) {
	collector := &batchCollector{}
	b := NewBatcher(64, 20*time.Millisecond)
	b.SetSink(collector.sink)

	b.Add(move(1))
	b.Add(move(2))

	require.Eventually(t, func() bool { return collector.count() == 1 }, time.Second, 5*time.Millisecond)
	require.Len(t, collector.flat(), 2)
}

func TestBatcherPreservesOrderAndMultiset(t *testing.T) {
	collector := &batchCollector{}
	b := NewBatcher(4, time.Hour)
	b.SetSink(collector.sink)

	var sent []internal.DrawingCommand
	for i := int64(0); i < 10; i++ {
		cmd := move(i)
		sent = append(sent, cmd)
		b.Add(cmd)
	}
	b.Flush()

	require.Equal(t, sent, collector.flat())
}

func TestBatcherStopFlushesAndIgnoresLateAdds(t *testing.T) {
	collector := &batchCollector{}
	b := NewBatcher(64, time.Hour)
	b.SetSink(collector.sink)

	b.Add(move(1))
	b.Stop()
	require.Len(t, collector.flat(), 1)

	b.Add(move(2))
	b.Flush()
	require.Len(t, collector.flat(), 1)
}
