// Package engine defines the execution capability the dispatcher delegates
// to: interfaces for running a single step or a whole workflow, the error
// taxonomy those runs can surface, and default implementations (a sequential
// workflow engine and a yaegi-backed step runner for Go-snippet steps). The
// dispatch core depends only on the interfaces; the defaults make the binary
// usable without an external engine.
package engine
