package broker

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"

	plumber "github.com/MostlyMax/plumber-queue"
	"github.com/MostlyMax/plumber-queue/internal/config"
	"github.com/MostlyMax/plumber-queue/pkg/journal"
	"github.com/MostlyMax/plumber-queue/pkg/message"
	"github.com/MostlyMax/plumber-queue/pkg/queue"
)

// Broker owns the shared queue, both listeners, the durability tasks
// and the shutdown protocol. Producer connections feed the queue and
// the journal; consumer connections drain it. Each connected consumer
// gets its own disjoint slice of the stream.
type Broker struct {
	cfg    *config.Config
	logger plumber.Logger

	buf         *queue.Ring
	journal     *journal.Journal
	snapshotter *journal.Snapshotter

	running        atomic.Bool
	producerOffset atomic.Uint64
	consumerOffset atomic.Uint64

	producerLn net.Listener
	consumerLn net.Listener

	accepts  sync.WaitGroup
	sessions sync.WaitGroup

	sigCh        chan os.Signal
	shutdownOnce sync.Once
	closeOnce    sync.Once
}

// New builds a broker and performs journal recovery so the queue
// starts populated with whatever the previous run journaled. A
// corrupted journal aborts recovery and starts the queue empty; it
// never takes down the broker.
func New(cfg *config.Config, logger plumber.Logger) (*Broker, error) {
	cfg.Normalize("")

	buf := queue.New(cfg.Queue.Capacity)
	j, err := journal.New(cfg.Journal.Dir, cfg.Queue.Capacity, cfg.Journal.HandoffSize, logger)
	if err != nil {
		return nil, err
	}

	b := &Broker{
		cfg:     cfg,
		logger:  logger,
		buf:     buf,
		journal: j,
	}

	next, err := journal.Recover(cfg.Journal.Dir, buf, logger)
	if err != nil {
		logger.Error("journal recovery aborted", "error", err)
	}
	b.producerOffset.Store(next)

	b.snapshotter = journal.NewSnapshotter(cfg.Snapshot.Path, cfg.Snapshot.Interval, &b.consumerOffset, logger)
	if v := b.snapshotter.Load(); v > 0 {
		logger.Info("restored consumer offset", "offset", v)
	}

	b.running.Store(true)
	return b, nil
}

// Start launches the journal writer and snapshotter, binds both
// listeners, installs the signal handler and spawns the accept loops.
// Bind failures are returned so the caller can exit nonzero.
func (b *Broker) Start() error {
	b.logger.Debug("starting queue server")

	if err := b.journal.Start(); err != nil {
		return err
	}
	b.snapshotter.Start()

	pln, err := net.Listen("tcp", b.cfg.Server.ProducerAddr)
	if err != nil {
		return fmt.Errorf("failed to bind producer listener on %s: %w", b.cfg.Server.ProducerAddr, err)
	}
	cln, err := net.Listen("tcp", b.cfg.Server.ConsumerAddr)
	if err != nil {
		pln.Close()
		return fmt.Errorf("failed to bind consumer listener on %s: %w", b.cfg.Server.ConsumerAddr, err)
	}
	b.producerLn = pln
	b.consumerLn = cln

	b.sigCh = make(chan os.Signal, 1)
	signal.Notify(b.sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		if _, ok := <-b.sigCh; ok {
			b.logger.Info("shutdown signal received")
			b.Shutdown()
		}
	}()

	b.accepts.Add(2)
	go b.acceptLoop(pln, roleProducer)
	go b.acceptLoop(cln, roleConsumer)

	b.logger.Info("ready to accept connections",
		"producer_addr", pln.Addr().String(),
		"consumer_addr", cln.Addr().String())
	return nil
}

// Wait blocks until both accept loops and all sessions have exited,
// then seals the journal and flushes a final offset snapshot.
func (b *Broker) Wait() {
	b.accepts.Wait()
	b.sessions.Wait()
	if err := b.journal.Close(); err != nil {
		b.logger.Error("journal close failed", "error", err)
	}
	if err := b.snapshotter.Close(); err != nil {
		b.logger.Error("final offset snapshot failed", "error", err)
	}
}

// Run is Start followed by Wait.
func (b *Broker) Run() error {
	if err := b.Start(); err != nil {
		return err
	}
	b.Wait()
	return nil
}

// Shutdown clears the running flag and kicks both accept loops with a
// short-timeout self-connection so a blocked Accept returns promptly
// and observes the cleared flag. Sessions exit at their next loop
// iteration. Safe to call more than once and from any goroutine.
func (b *Broker) Shutdown() {
	b.shutdownOnce.Do(func() {
		b.running.Store(false)
		if b.sigCh != nil {
			signal.Stop(b.sigCh)
			close(b.sigCh)
		}
		for _, ln := range []net.Listener{b.consumerLn, b.producerLn} {
			if ln == nil {
				continue
			}
			if conn, err := net.DialTimeout("tcp", ln.Addr().String(), 2*time.Second); err == nil {
				conn.Close()
			}
		}
	})
}

func (b *Broker) acceptLoop(ln net.Listener, r role) {
	defer b.accepts.Done()
	defer ln.Close()

	for b.running.Load() {
		conn, err := ln.Accept()
		if err != nil {
			if !b.running.Load() {
				break
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				b.logger.Debug("waiting for connections", "role", r.String())
				continue
			}
			b.logger.Error("connection failed", "role", r.String(), "error", err)
			time.Sleep(time.Second)
			continue
		}
		if !b.running.Load() {
			conn.Close()
			break
		}

		s := b.newSession(conn, r)
		b.sessions.Add(1)
		go func() {
			defer b.sessions.Done()
			s.run()
		}()
	}
}

func (b *Broker) newSession(conn net.Conn, r role) *session {
	return &session{
		id:             uuid.NewString(),
		role:           r,
		conn:           conn,
		buf:            b.buf,
		recorder:       b.journal,
		running:        &b.running,
		producerOffset: &b.producerOffset,
		consumerOffset: &b.consumerOffset,
		readTimeout:    b.cfg.Server.ReadTimeout,
		heartbeat:      b.cfg.Server.HeartbeatInterval,
		emptyBackoff:   time.Second,
		logger:         b.logger,
	}
}

// ProducerAddr returns the bound producer listener address.
func (b *Broker) ProducerAddr() net.Addr { return b.producerLn.Addr() }

// ConsumerAddr returns the bound consumer listener address.
func (b *Broker) ConsumerAddr() net.Addr { return b.consumerLn.Addr() }

// Close spills any undrained messages to the backup file so they can
// be reinjected out of band. Call after Wait.
func (b *Broker) Close() error {
	var err error
	b.closeOnce.Do(func() {
		if b.buf.Len() == 0 {
			return
		}
		b.logger.Info("writing queue to disk", "path", b.cfg.Journal.BackupPath, "messages", b.buf.Len())
		err = b.dumpBackup()
		if err == nil {
			b.logger.Info("done")
		}
	})
	return err
}

func (b *Broker) dumpBackup() error {
	f, err := os.Create(b.cfg.Journal.BackupPath)
	if err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}
	w := bufio.NewWriter(f)
	var scratch []byte
	for {
		msg, ok := b.buf.Pop()
		if !ok {
			break
		}
		scratch = message.AppendWire(scratch[:0], msg)
		if _, err := w.Write(scratch); err != nil {
			f.Close()
			return fmt.Errorf("failed to write backup: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("failed to flush backup: %w", err)
	}
	return f.Close()
}
