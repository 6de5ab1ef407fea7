package worker

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"

	"flowtap/internal/config"
)

// Request is the serialized envelope handed to a spawned worker process on
// its standard input. The worker shares no memory with the spawner; this is
// everything it knows.
type Request struct {
	WorkerID       string           `json:"worker_id"`
	ControllerAddr string           `json:"controller_addr"`
	Code           string           `json:"code"`
	Workflow       string           `json:"workflow"`
	Targets        []string         `json:"targets,omitempty"`
	Args           []string         `json:"args,omitempty"`
	Config         config.Execution `json:"config"`
	ProjectDir     string           `json:"project_dir"`
}

// NewRequest stamps a fresh worker identity onto the envelope fields.
func NewRequest(code, workflow string, cfg config.Execution) Request {
	return Request{
		WorkerID: uuid.NewString(),
		Code:     code,
		Workflow: workflow,
		Config:   cfg,
	}
}

// Encode writes the envelope as a single JSON document.
func (r Request) Encode(w io.Writer) error {
	if err := json.NewEncoder(w).Encode(r); err != nil {
		return fmt.Errorf("worker: encode request: %w", err)
	}
	return nil
}

// DecodeRequest reads one envelope from the worker's standard input.
func DecodeRequest(r io.Reader) (Request, error) {
	var req Request
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return Request{}, fmt.Errorf("worker: decode request: %w", err)
	}
	if req.WorkerID == "" {
		return Request{}, fmt.Errorf("worker: request has no worker id")
	}
	if req.ControllerAddr == "" {
		return Request{}, fmt.Errorf("worker: request has no controller address")
	}
	return req, nil
}
