package worker

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"pollpick/internal/logger"
	"pollpick/internal/queue"
)

const (
	DefaultWorkerCount = 2

	// DefaultBatchSize is the number of messages to read per batch
	DefaultBatchSize = 10

	// DefaultBlockTimeout is how long to block waiting for new messages
	DefaultBlockTimeout = 5 * time.Second
)

// Manager runs worker goroutines that consume the push stream.
type Manager struct {
	consumer    queue.Consumer
	handler     *Handler
	stream      string
	group       string
	workerCount int
	batchSize   int64
	blockTime   time.Duration
	log         *slog.Logger

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

type ManagerConfig struct {
	Stream       string
	Group        string
	WorkerCount  int
	BatchSize    int64
	BlockTimeout time.Duration
}

func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Stream:       queue.StreamPush,
		Group:        queue.ConsumerGroupPush,
		WorkerCount:  DefaultWorkerCount,
		BatchSize:    DefaultBatchSize,
		BlockTimeout: DefaultBlockTimeout,
	}
}

func NewManager(consumer queue.Consumer, handler *Handler, cfg ManagerConfig) *Manager {
	def := DefaultManagerConfig()
	if cfg.Stream == "" {
		cfg.Stream = def.Stream
	}
	if cfg.Group == "" {
		cfg.Group = def.Group
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = def.WorkerCount
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = def.BlockTimeout
	}

	return &Manager{
		consumer:    consumer,
		handler:     handler,
		stream:      cfg.Stream,
		group:       cfg.Group,
		workerCount: cfg.WorkerCount,
		batchSize:   cfg.BatchSize,
		blockTime:   cfg.BlockTimeout,
		log:         logger.With("worker_manager"),
	}
}

// Start ensures the consumer group exists and launches the workers.
// Call Stop to shut them down.
func (m *Manager) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	if err := m.consumer.EnsureGroup(m.ctx, m.stream, m.group); err != nil {
		m.cancel()
		return err
	}

	for i := 1; i <= m.workerCount; i++ {
		m.wg.Add(1)
		go m.runWorker(i, "worker-"+strconv.Itoa(i))
	}

	m.log.Info("workers started", "count", m.workerCount, "stream", m.stream, "group", m.group)
	return nil
}

// Stop cancels the workers and waits for in-flight batches to finish.
func (m *Manager) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	m.wg.Wait()
	m.log.Info("workers stopped")
}

func (m *Manager) runWorker(workerID int, consumerName string) {
	defer m.wg.Done()

	// Entries delivered before a crash are retried first.
	m.processPending(workerID, consumerName)

	for {
		select {
		case <-m.ctx.Done():
			return
		default:
			m.processMessages(workerID, consumerName)
		}
	}
}

func (m *Manager) processPending(workerID int, consumerName string) {
	for {
		messages, err := m.consumer.ReadPending(m.ctx, m.stream, m.group, consumerName, m.batchSize)
		if err != nil {
			m.log.Warn("read pending failed", "worker", workerID, "error", err)
			return
		}
		if len(messages) == 0 {
			return
		}
		m.handleMessages(workerID, messages)
	}
}

func (m *Manager) processMessages(workerID int, consumerName string) {
	messages, err := m.consumer.Read(m.ctx, m.stream, m.group, consumerName, m.batchSize, m.blockTime)
	if err != nil {
		if m.ctx.Err() != nil {
			return
		}
		m.log.Warn("read failed", "worker", workerID, "error", err)
		time.Sleep(time.Second)
		return
	}
	if len(messages) > 0 {
		m.handleMessages(workerID, messages)
	}
}

// handleMessages acks every entry, including failed ones, so a poison entry cannot loop.
func (m *Manager) handleMessages(workerID int, messages []queue.Message) {
	for _, msg := range messages {
		if err := m.handler.HandleEvent(m.ctx, msg.Event); err != nil {
			m.log.Warn("event failed", "worker", workerID, "message_id", msg.ID, "type", msg.Event.Type, "error", err)
		}
		if err := m.consumer.Ack(m.ctx, m.stream, m.group, msg.ID); err != nil {
			m.log.Warn("ack failed", "worker", workerID, "message_id", msg.ID, "error", err)
		}
	}
}
