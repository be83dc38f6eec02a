// Package errors defines error types for the script host session manager.
//
// This package provides structured error types for the failures that can
// escape the manager: spawning a host, the startup handshake, transport
// breakage and protocol framing. All error types support error unwrapping
// and can be checked using errors.Is, errors.As, and errors.AsType.
package errors
