package consumer

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/ramirezdev26/swifty-ai-digester/internal/mq"
)

// Group fans a Dispatcher out across one mq.Consumer per partition
// (spec §4.5/§5): each partition gets its own goroutine and its own
// prefetch-bounded channel, so a slow partition never starves another.
type Group struct {
	conn       *mq.Connection
	dispatcher *Dispatcher
	logger     *slog.Logger
	partitions int
	prefetch   int

	consumers []*mq.Consumer
	wg        sync.WaitGroup
}

// NewGroup builds a Group of partitions consumers, each with prefetch
// as its QoS.
func NewGroup(conn *mq.Connection, dispatcher *Dispatcher, logger *slog.Logger, partitions, prefetch int) *Group {
	if logger == nil {
		logger = slog.Default()
	}
	if partitions <= 0 {
		partitions = 1
	}
	return &Group{
		conn:       conn,
		dispatcher: dispatcher,
		logger:     logger,
		partitions: partitions,
		prefetch:   prefetch,
	}
}

// Start launches one consumer goroutine per partition and returns
// immediately; it does not block. Call Wait to block until all
// partitions have stopped.
func (g *Group) Start(ctx context.Context) {
	g.consumers = make([]*mq.Consumer, g.partitions)

	for p := 0; p < g.partitions; p++ {
		partition := p
		c := mq.NewConsumer(g.conn, g.logger, mq.ConsumerConfig{
			Queue:     mq.PartitionQueue(partition),
			Partition: partition,
			Handler:   g.dispatcher.Handle,
			Prefetch:  g.prefetch,
		})
		g.consumers[p] = c

		g.wg.Add(1)
		go func() {
			defer g.wg.Done()
			if err := c.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				g.logger.Error("partition consumer stopped with error", "partition", partition, "error", err)
			}
		}()
	}
}

// Stop signals every partition consumer to stop.
func (g *Group) Stop() {
	for _, c := range g.consumers {
		c.Stop()
	}
}

// Wait blocks until every partition consumer goroutine has returned.
func (g *Group) Wait() {
	g.wg.Wait()
}
