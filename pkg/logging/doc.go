// Package logging provides the structured logging used across hallpass.
//
// It is a thin layer over log/slog that tags every entry with a subsystem
// name, so log output can be filtered per component (Session, TokenStore,
// Callback, ...). Token values and other credentials must never be passed
// to any of the logging functions; callers log URLs, expiry times, and
// event names only.
package logging
