// Package audit records security-relevant account events. The engine decides
// which events to emit; this package only buffers them and delivers them to
// a Sink without blocking the request path.
package audit
