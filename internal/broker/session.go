package broker

import (
	"bufio"
	"errors"
	"io"
	"net"
	"strings"
	"sync/atomic"
	"time"

	plumber "github.com/MostlyMax/plumber-queue"
	"github.com/MostlyMax/plumber-queue/pkg/message"
)

type role int

const (
	roleProducer role = iota
	roleConsumer
)

func (r role) String() string {
	if r == roleProducer {
		return "producer"
	}
	return "consumer"
}

// session is one accepted connection. Producer and consumer sessions
// are built from the same inputs; the role picks which loop runs.
type session struct {
	id   string
	role role
	conn net.Conn

	buf      plumber.Buffer
	recorder plumber.Recorder

	running        *atomic.Bool
	producerOffset *atomic.Uint64
	consumerOffset *atomic.Uint64

	readTimeout  time.Duration
	heartbeat    time.Duration
	emptyBackoff time.Duration

	logger plumber.Logger
}

func (s *session) run() {
	defer s.conn.Close()
	s.logger.Info("accepted new client", "role", s.role.String(), "client_id", s.id, "addr", s.conn.RemoteAddr())
	switch s.role {
	case roleProducer:
		s.runProducer()
	case roleConsumer:
		s.runConsumer()
	}
	s.logger.Info("closing client", "role", s.role.String(), "client_id", s.id, "addr", s.conn.RemoteAddr())
}

// runProducer reads newline-delimited lines and admits each one:
// assign the next offset, push into the buffer (possibly evicting the
// oldest entry) and mirror to the journal best-effort. Read timeouts
// keep the loop alive so the running flag is observed; EOF and any
// other error end the session. The producer is expected to reconnect.
func (s *session) runProducer() {
	ActiveProducers.Inc()
	defer ActiveProducers.Dec()

	reader := bufio.NewReader(s.conn)
	var pending []byte
	for s.running.Load() {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.readTimeout)); err != nil {
			s.logger.Error("failed to set read deadline", "client_id", s.id, "error", err)
			return
		}
		chunk, err := reader.ReadString('\n')
		pending = append(pending, chunk...)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				// A partial line stays buffered in pending until its
				// newline arrives.
				s.logger.Debug("waiting for data", "client_id", s.id)
				continue
			}
			if errors.Is(err, io.EOF) {
				if len(pending) > 0 {
					s.admit(string(pending))
				}
				return
			}
			s.logger.Error("connection failed", "client_id", s.id, "error", err)
			return
		}
		line := strings.TrimSuffix(string(pending), "\n")
		line = strings.TrimSuffix(line, "\r")
		pending = pending[:0]
		s.admit(line)
	}
}

func (s *session) admit(line string) {
	msg := plumber.Message{Offset: s.producerOffset.Add(1) - 1, Text: line}
	if _, evicted := s.buf.Push(msg); evicted {
		MessagesEvicted.Inc()
	}
	MessagesAdmitted.Inc()
	if !s.recorder.Record(msg) {
		JournalRecordsDropped.Inc()
	}
	s.logger.Debug("admitted", "client_id", s.id, "offset", msg.Offset)
}

// runConsumer streams buffered messages to the peer while a companion
// heartbeat goroutine watches the read half for liveness. The loop
// exits when the broker stops running, the heartbeat dies, or a write
// fails. Messages lost in a failed write are not re-enqueued;
// reconnecting consumers consult the offset snapshot instead.
func (s *session) runConsumer() {
	ActiveConsumers.Inc()
	defer ActiveConsumers.Dec()

	var alive atomic.Bool
	alive.Store(true)
	go s.keepalive(&alive)

	writer := bufio.NewWriter(s.conn)
	defer writer.Flush()

	var scratch []byte
	for s.running.Load() {
		if !alive.Load() {
			s.logger.Warn("dead heartbeat", "client_id", s.id, "addr", s.conn.RemoteAddr())
			HeartbeatExpirations.Inc()
			return
		}
		msg, ok := s.buf.Pop()
		if !ok {
			if err := writer.Flush(); err != nil {
				s.logger.Error("flush failed", "client_id", s.id, "error", err)
				return
			}
			s.logger.Debug("waiting for data", "client_id", s.id)
			time.Sleep(s.emptyBackoff)
			continue
		}
		scratch = message.AppendWire(scratch[:0], msg)
		if _, err := writer.Write(scratch); err != nil {
			s.logger.Error("write failed", "client_id", s.id, "error", err)
			return
		}
		s.consumerOffset.Add(1)
		MessagesDelivered.Inc()
	}
}

// keepalive owns the read half of a consumer socket. Every inbound
// line is a liveness token; its content is discarded. A read timeout,
// EOF or any other error clears the shared alive flag exactly once and
// ends the watcher.
func (s *session) keepalive(alive *atomic.Bool) {
	reader := bufio.NewReader(s.conn)
	for alive.Load() {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.heartbeat)); err != nil {
			alive.Store(false)
			return
		}
		if _, err := reader.ReadString('\n'); err != nil {
			alive.Store(false)
			return
		}
		s.logger.Debug("heartbeat", "client_id", s.id)
	}
}
