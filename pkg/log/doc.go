// Package log defines the event logging interface for the Tether stack.
//
// Library packages never log to a concrete backend; they emit structured
// Events through the Logger interface. Applications choose a backend by
// providing an implementation: SlogAdapter for console logging via
// log/slog, MultiLogger to fan out to several sinks, or NoopLogger to
// disable logging entirely.
package log
