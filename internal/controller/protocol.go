package controller

import "time"

// MessageKind discriminates envelopes on the controller socket.
type MessageKind string

const (
	KindRequest MessageKind = "request"
	KindReply   MessageKind = "reply"
	KindLog     MessageKind = "log"
)

// Request operations understood by the service.
const (
	OpPing    = "ping"
	OpDone    = "done"
	OpOutcome = "outcome"
	OpTail    = "tail"
)

// OutcomeStatus tags a worker outcome as success or failure.
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeFailure OutcomeStatus = "failure"
)

// Outcome is the terminal report of one spawned worker. Exactly one outcome
// is produced per worker and consumed once by the service.
type Outcome struct {
	WorkerID string        `json:"worker_id"`
	Workflow string        `json:"workflow,omitempty"`
	Status   OutcomeStatus `json:"status"`
	Payload  string        `json:"payload,omitempty"`
	Message  string        `json:"message,omitempty"`
}

// Success builds a successful outcome carrying the serialized run payload.
func Success(workerID, workflow, payload string) Outcome {
	return Outcome{WorkerID: workerID, Workflow: workflow, Status: OutcomeSuccess, Payload: payload}
}

// Failure builds a failed outcome carrying the error text.
func Failure(workerID, workflow, message string) Outcome {
	return Outcome{WorkerID: workerID, Workflow: workflow, Status: OutcomeFailure, Message: message}
}

// LogEntry is one message on the asynchronous log channel.
type LogEntry struct {
	Level string    `json:"level"`
	Text  string    `json:"text"`
	At    time.Time `json:"at"`
}

// TailSnapshot is the reply payload for the tail operation: recent log
// entries plus every outcome received so far.
type TailSnapshot struct {
	Logs     []LogEntry `json:"logs,omitempty"`
	Outcomes []Outcome  `json:"outcomes,omitempty"`
}

// Envelope is the single wire message shape. Kind selects which fields are
// meaningful; unknown fields are ignored by both sides.
type Envelope struct {
	Kind    MessageKind   `json:"kind"`
	Op      string        `json:"op,omitempty"`
	ID      string        `json:"id,omitempty"`
	Outcome *Outcome      `json:"outcome,omitempty"`
	Log     *LogEntry     `json:"log,omitempty"`
	Tail    *TailSnapshot `json:"tail,omitempty"`
	OK      bool          `json:"ok,omitempty"`
	Error   string        `json:"error,omitempty"`
}
