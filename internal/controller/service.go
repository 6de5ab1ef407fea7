package controller

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// ServiceStatus reports the coordinator's lifecycle state. Transitions are
// linear and non-reentrant for a given service instance.
type ServiceStatus string

const (
	StatusUninitialized ServiceStatus = "uninitialized"
	StatusStarting      ServiceStatus = "starting"
	StatusReady         ServiceStatus = "ready"
	StatusStopping      ServiceStatus = "stopping"
	StatusStopped       ServiceStatus = "stopped"
)

// logRingCapacity bounds the retained log channel history.
const logRingCapacity = 256

// Logger is the minimal logging surface the service needs.
type Logger interface {
	Printf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// Service is the long-lived background coordinator. One instance exists per
// session; worker processes rendezvous with it through the socket it binds.
type Service struct {
	logger Logger
	clock  func() time.Time

	mu       sync.Mutex
	status   ServiceStatus
	listener net.Listener
	conns    map[net.Conn]struct{}
	logs     []LogEntry
	outcomes []Outcome

	done chan struct{}
}

// ServiceOption customizes service construction.
type ServiceOption func(*Service)

// WithLogger overrides the default no-op logger.
func WithLogger(l Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock allows tests to control log timestamps.
func WithClock(clock func() time.Time) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewService prepares a coordinator without binding its socket.
func NewService(opts ...ServiceOption) *Service {
	s := &Service{
		logger: nopLogger{},
		clock:  func() time.Time { return time.Now().UTC() },
		status: StatusUninitialized,
		conns:  map[net.Conn]struct{}{},
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// start binds the loopback listener on a background goroutine and delivers
// the bound address (or the bind error) on the returned channel exactly once.
func (s *Service) start() <-chan error {
	ready := make(chan error, 1)
	s.mu.Lock()
	if s.status != StatusUninitialized {
		s.mu.Unlock()
		ready <- fmt.Errorf("controller: service already started")
		return ready
	}
	s.status = StatusStarting
	s.mu.Unlock()
	go func() {
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			s.mu.Lock()
			s.status = StatusStopped
			s.mu.Unlock()
			close(s.done)
			ready <- fmt.Errorf("controller: listen: %w", err)
			return
		}
		s.mu.Lock()
		s.listener = listener
		s.status = StatusReady
		s.mu.Unlock()
		s.logger.Printf("controller: listening on %s", listener.Addr())
		ready <- nil
		s.acceptLoop(listener)
	}()
	return ready
}

func (s *Service) acceptLoop(listener net.Listener) {
	var wg sync.WaitGroup
	for {
		conn, err := listener.Accept()
		if err != nil {
			break
		}
		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleConn(conn)
		}()
	}
	wg.Wait()
	s.mu.Lock()
	s.status = StatusStopped
	s.mu.Unlock()
	close(s.done)
}

func (s *Service) handleConn(conn net.Conn) {
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close()
	}()
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	enc := json.NewEncoder(conn)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var env Envelope
		if err := json.Unmarshal(line, &env); err != nil {
			s.logger.Printf("controller: bad envelope: %v", err)
			continue
		}
		switch env.Kind {
		case KindLog:
			s.appendLog(env.Log)
		case KindRequest:
			reply, shutdown := s.handleRequest(env)
			if err := enc.Encode(reply); err != nil {
				s.logger.Printf("controller: write reply: %v", err)
				return
			}
			if shutdown {
				s.beginShutdown()
				return
			}
		default:
			s.logger.Printf("controller: unexpected kind %q", env.Kind)
		}
	}
}

func (s *Service) handleRequest(env Envelope) (Envelope, bool) {
	reply := Envelope{Kind: KindReply, ID: env.ID, OK: true}
	switch env.Op {
	case OpPing:
	case OpDone:
		return reply, true
	case OpOutcome:
		if env.Outcome == nil {
			reply.OK = false
			reply.Error = "outcome request without outcome"
			break
		}
		s.recordOutcome(*env.Outcome)
	case OpTail:
		snapshot := s.snapshot()
		reply.Tail = &snapshot
	default:
		reply.OK = false
		reply.Error = fmt.Sprintf("unknown op %q", env.Op)
	}
	return reply, false
}

func (s *Service) appendLog(entry *LogEntry) {
	if entry == nil {
		return
	}
	e := *entry
	if e.At.IsZero() {
		e.At = s.clock()
	}
	s.mu.Lock()
	s.logs = append(s.logs, e)
	if len(s.logs) > logRingCapacity {
		s.logs = s.logs[len(s.logs)-logRingCapacity:]
	}
	s.mu.Unlock()
}

func (s *Service) recordOutcome(o Outcome) {
	s.mu.Lock()
	s.outcomes = append(s.outcomes, o)
	s.mu.Unlock()
	s.logger.Printf("controller: outcome %s from worker %s", o.Status, o.WorkerID)
}

func (s *Service) snapshot() TailSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := TailSnapshot{}
	if len(s.logs) > 0 {
		snap.Logs = append([]LogEntry(nil), s.logs...)
	}
	if len(s.outcomes) > 0 {
		snap.Outcomes = append([]Outcome(nil), s.outcomes...)
	}
	return snap
}

func (s *Service) beginShutdown() {
	s.mu.Lock()
	if s.status != StatusReady {
		s.mu.Unlock()
		return
	}
	s.status = StatusStopping
	listener := s.listener
	conns := make([]net.Conn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	s.mu.Unlock()
	if listener != nil {
		_ = listener.Close()
	}
	for _, conn := range conns {
		_ = conn.Close()
	}
}

// Addr returns the bound socket address once the service is ready.
func (s *Service) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Status reports the current lifecycle state.
func (s *Service) Status() ServiceStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Outcomes returns a copy of every worker outcome received so far.
func (s *Service) Outcomes() []Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Outcome(nil), s.outcomes...)
}

// join blocks until the accept loop has fully exited.
func (s *Service) join(timeout time.Duration) error {
	select {
	case <-s.done:
		return nil
	case <-time.After(timeout):
		return errors.New("controller: service did not stop in time")
	}
}
