// Package audit carries credential lifecycle events (issue, rotate, revoke, code
// create and verify) from the engine to a caller-supplied [Sink].
//
// # Components
//
//   - [Event] is the record: type, subject, token type or code purpose, client IP.
//   - [Dispatcher] buffers events and delivers them from one goroutine.
//   - [ChannelSink], [JSONWriterSink], [SlogSink] and [NoOpSink] are stock sinks.
//
// Events never carry token strings or code values.
package audit
