package controller

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Client is the worker-process side of the rendezvous: it dials the
// coordinator socket of the spawning session and speaks the same envelope
// protocol. Log pushes are fire-and-forget; outcome delivery is a request
// that blocks for the acknowledgement.
type Client struct {
	conn   net.Conn
	reader *bufio.Reader

	mu sync.Mutex
}

// Dial connects to a controller service address.
func Dial(addr string) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("controller: dial %s: %w", addr, err)
	}
	return &Client{conn: conn, reader: bufio.NewReader(conn)}, nil
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// PushLog emits one entry on the asynchronous log channel. No reply is read.
func (c *Client) PushLog(level, text string) error {
	return c.send(Envelope{Kind: KindLog, Log: &LogEntry{Level: level, Text: text}})
}

// SendOutcome delivers the worker's terminal outcome and blocks until the
// service acknowledges it.
func (c *Client) SendOutcome(o Outcome) error {
	_, err := c.request(Envelope{Kind: KindRequest, Op: OpOutcome, Outcome: &o})
	return err
}

// Tail fetches the current log/outcome snapshot.
func (c *Client) Tail() (TailSnapshot, error) {
	reply, err := c.request(Envelope{Kind: KindRequest, Op: OpTail})
	if err != nil {
		return TailSnapshot{}, err
	}
	if reply.Tail == nil {
		return TailSnapshot{}, nil
	}
	return *reply.Tail, nil
}

func (c *Client) send(env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("controller: marshal envelope: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.conn.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("controller: send envelope: %w", err)
	}
	return nil
}

func (c *Client) request(env Envelope) (Envelope, error) {
	if env.ID == "" {
		env.ID = uuid.NewString()
	}
	data, err := json.Marshal(env)
	if err != nil {
		return Envelope{}, fmt.Errorf("controller: marshal request: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.conn.Write(append(data, '\n')); err != nil {
		return Envelope{}, fmt.Errorf("controller: send request: %w", err)
	}
	line, err := c.reader.ReadBytes('\n')
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
