package controller

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrStartTimeout reports that the service never signaled readiness within
// the configured wait. The caller gets a distinct error instead of hanging.
var ErrStartTimeout = errors.New("controller: failed to start before timeout")

// ErrHandleLive guards the one-live-handle-per-process invariant.
var ErrHandleLive = errors.New("controller: a handle is already live in this process")

// DefaultReadyTimeout bounds how long Start waits for the readiness signal.
const DefaultReadyTimeout = 10 * time.Second

// DefaultStopTimeout bounds how long Stop waits for the service to join.
const DefaultStopTimeout = 5 * time.Second

var (
	handleMu sync.Mutex
	liveHandle *Handle
)

// Handle is the process-wide binding to a running controller service: the
// request connection plus the service reference needed for teardown. At most
// one live handle exists per process.
type Handle struct {
	service *Service
	conn    net.Conn
	reader  *bufio.Reader

	reqMu  sync.Mutex
	closed bool
}

// StartOptions tunes controller startup.
type StartOptions struct {
	ReadyTimeout time.Duration
	Logger       Logger
	Clock        func() time.Time
}

// Start launches the controller service on a background goroutine, waits
// (bounded) for its readiness signal, dials the request channel, and binds
// the process-wide handle. It fails if a handle is already live.
func Start(opts StartOptions) (*Handle, error) {
	handleMu.Lock()
	defer handleMu.Unlock()
	if liveHandle != nil {
		return nil, ErrHandleLive
	}
	timeout := opts.ReadyTimeout
	if timeout <= 0 {
		timeout = DefaultReadyTimeout
	}
	var serviceOpts []ServiceOption
	if opts.Logger != nil {
		serviceOpts = append(serviceOpts, WithLogger(opts.Logger))
	}
	if opts.Clock != nil {
		serviceOpts = append(serviceOpts, WithClock(opts.Clock))
	}
	service := NewService(serviceOpts...)
	select {
	case err := <-service.start():
		if err != nil {
			return nil, err
		}
	case <-time.After(timeout):
		return nil, ErrStartTimeout
	}
	conn, err := net.Dial("tcp", service.Addr())
	if err != nil {
		service.beginShutdown()
		return nil, fmt.Errorf("controller: dial request channel: %w", err)
	}
	h := &Handle{service: service, conn: conn, reader: bufio.NewReader(conn)}
	liveHandle = h
	return h, nil
}

// Stop tears down a handle: it sends the done sentinel on the request
// channel, blocks for the acknowledgement, releases the binding, and joins
// the service goroutine. Stop on a nil handle is a no-op. Calling Stop twice
// on the same handle is the caller's error and returns ErrHandleStopped.
func Stop(h *Handle) error {
	if h == nil {
		return nil
	}
	if _, err := h.Request(Envelope{Kind: KindRequest, Op: OpDone}); err != nil {
		// The service may already be gone; still release local state.
		h.release()
		return err
	}
	h.release()
	return h.service.join(DefaultStopTimeout)
}

// ErrHandleStopped reports use of a handle after Stop.
var ErrHandleStopped = errors.New("controller: handle is stopped")

func (h *Handle) release() {
	h.reqMu.Lock()
	if !h.closed {
		h.closed = true
		_ = h.conn.Close()
	}
	h.reqMu.Unlock()
	handleMu.Lock()
	if liveHandle == h {
		liveHandle = nil
	}
	handleMu.Unlock()
}

// Request sends one envelope on the request channel and blocks for its
// reply. The handle serializes requests: exactly one may be outstanding.
func (h *Handle) Request(env Envelope) (Envelope, error) {
	h.reqMu.Lock()
	defer h.reqMu.Unlock()
	if h.closed {
		return Envelope{}, ErrHandleStopped
	}
	if env.ID == "" {
		env.ID = uuid.NewString()
	}
	data, err := json.Marshal(env)
	if err != nil {
		return Envelope{}, fmt.Errorf("controller: marshal request: %w", err)
	}
	if _, err := h.conn.Write(append(data, '\n')); err != nil {
		return Envelope{}, fmt.Errorf("controller: send request: %w", err)
	}
	line, err := h.reader.ReadBytes('\n')
	if err != nil {
		return Envelope{}, fmt.Errorf("controller: await reply: %w", err)
	}
	var reply Envelope
	if err := json.Unmarshal(line, &reply); err != nil {
		return Envelope{}, fmt.Errorf("controller: decode reply: %w", err)
	}
	if !reply.OK {
		return reply, fmt.Errorf("controller: request %s rejected: %s", env.Op, reply.Error)
	}
	return reply, nil
}

// Tail fetches the current log/outcome snapshot over the request channel.
func (h *Handle) Tail() (TailSnapshot, error) {
	reply, err := h.Request(Envelope{Kind: KindRequest, Op: OpTail})
	if err != nil {
		return TailSnapshot{}, err
	}
	if reply.Tail == nil {
		return TailSnapshot{}, nil
	}
	return *reply.Tail, nil
}

// Addr exposes the service socket address for spawned workers.
func (h *Handle) Addr() string {
	return h.service.Addr()
}

// Service returns the underlying service, primarily for observation.
func (h *Handle) Service() *Service {
	return h.service
}
