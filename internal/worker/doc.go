// Package worker spawns isolated worker processes and implements the runtime
// that executes inside them. The coordinator serializes a typed request
// envelope, starts the process, and returns immediately; completion is
// observed through the controller's channels. The worker owns a private
// engine instance and finishes with a symmetric outcome handshake: it always
// sends either Success or Failure on the request channel and always awaits
// the acknowledgement before exiting.
package worker
