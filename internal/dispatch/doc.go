// Package dispatch is the entry point of the execution core. It inspects an
// ExecutionRequest, decides exactly one execution strategy (inline scratch,
// isolated worker process, or remote delegation) and hands the resolved
// configuration to that path. The decision is made once, at the boundary, and
// expressed as a tagged invocation variant carrying exactly the fields its
// path needs.
package dispatch
