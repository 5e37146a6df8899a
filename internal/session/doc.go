// Package session owns the blocking WebSocket session.
//
// Ownership boundary:
// - the synchronous core that turns executor callbacks into queued state
// - connect retry policy and deadline-bounded receive
// - executor-side teardown of the transport
// - reconnect backoff for long-running callers
//
// Threading:
//   - Socket methods are safe from any goroutine.
//   - The transport, the transport generation and the destroyed flag are
//     confined to the network executor.
//   - connected and the inbound queue are guarded by the core mutex.
package session
