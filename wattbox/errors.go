package wattbox

import (
	"errors"
	"fmt"
)

var (
	// ErrNoDialer is returned when a Client is constructed without a
	// Dialer. This indicates a configuration error; a Dialer is required
	// to reach the device.
	ErrNoDialer = errors.New("no dialer configured")

	// ErrNotConnected is returned when an operation is attempted before
	// the transport has been established or after it was torn down.
	ErrNotConnected = errors.New("not connected")

	// ErrClosed is returned when a command is issued on a Client that has
	// been closed.
	ErrClosed = errors.New("client closed")

	// ErrLoopRunning is returned when Loop is started twice.
	ErrLoopRunning = errors.New("loop already running")

	// ErrAuthentication is returned when the login handshake fails,
	// either through an explicit rejection or through the absence of a
	// success indicator within the login timeout. The session is
	// unusable afterwards.
	ErrAuthentication = errors.New("authentication failed")

	// ErrTimeout is returned when no matching response arrives within
	// the command deadline. The engine retries such a command once
	// before surfacing this error.
	ErrTimeout = errors.New("command timed out")

	// ErrMalformedResponse is returned when a device line could not be
	// classified or parsed per its schema. Retried once, like ErrTimeout.
	ErrMalformedResponse = errors.New("malformed response")
)

// CommandError is an explicit rejection from the device: a "#Error,<code>"
// frame received in reply to a command. It is never retried, since the
// device has definitively refused the request.
type CommandError struct {
	// Code is the device-defined reason code.
	Code int
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("device error %d", e.Code)
}

// retryable reports whether the single-retry policy applies to err.
// Timeouts and malformed responses may be transient; everything else
// (connection loss, device rejections, cancellation) surfaces as-is.
func retryable(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrMalformedResponse)
}
