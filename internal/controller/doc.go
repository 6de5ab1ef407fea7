// Package controller hosts the session coordinator: a background service
// speaking a newline-delimited JSON protocol over a loopback TCP socket, the
// process-wide handle bound to it, and the client worker processes use to
// rendezvous with it. The request channel is strictly request/reply with one
// outstanding request at a time; the log channel is asynchronous and carries
// no ordering guarantee relative to replies.
package controller
