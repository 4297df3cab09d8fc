// Package verr classifies the failure modes of a voice session so callers
// can branch on what went wrong without string matching.
package verr

import (
	"errors"
	"fmt"
)

// Kind identifies a failure category.
type Kind int

const (
	// KindUnknown is the zero value for unclassified errors.
	KindUnknown Kind = iota

	// Capture acquisition
	KindPermissionDenied  // microphone permission refused
	KindDeviceUnavailable // no capture device found

	// Connection establishment
	KindTokenAcquisitionFailed // token broker rejected or unreachable
	KindChannelOpenFailed      // duplex channel dial/handshake failed
	KindTimeout                // token fetch or channel open exceeded deadline

	// Established session (recoverable)
	KindDecodeFailed // a single inbound chunk failed to decode
	KindServerError  // remote-reported error, non-fatal by itself
)

// String returns the canonical name of the kind.
func (k Kind) String() string {
	switch k {
	case KindPermissionDenied:
		return "permission_denied"
	case KindDeviceUnavailable:
		return "device_unavailable"
	case KindTokenAcquisitionFailed:
		return "token_acquisition_failed"
	case KindChannelOpenFailed:
		return "channel_open_failed"
	case KindTimeout:
		return "timeout"
	case KindDecodeFailed:
		return "decode_failed"
	case KindServerError:
		return "server_error"
	default:
		return "unknown"
	}
}

// Error is a classified error. It wraps an optional cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error with a message.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf creates a classified error with a formatted message.
func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an existing error. A nil cause returns nil.
func Wrap(kind Kind, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the kind of err, or KindUnknown when err is not classified.
func KindOf(err error) Kind {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
