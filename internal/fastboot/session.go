// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package fastboot implements the device side of the fastboot protocol
// command phase, dispatching host commands to registered handlers.
package fastboot

import (
	"errors"
	"fmt"
)

// MAX_PACKET is the maximum size of command and response packets.
const MAX_PACKET = 64

// ErrTransport is wrapped by every error originating from the Transport.
var ErrTransport = errors.New("fastboot: transport error")

// Transport represents the USB endpoints carrying fastboot packets.
type Transport interface {
	// Receive reads a single host packet into buf.
	Receive(buf []byte) (n int, err error)
	// Send transmits buf to the host.
	Send(buf []byte) error
}

// CommandError represents a recoverable command failure, reported to the
// host with a FAIL response.
type CommandError struct {
	Msg string
}

func (e *CommandError) Error() string {
	return "fastboot: " + e.Msg
}

// Errorf returns a CommandError formatted according to a format specifier.
func Errorf(format string, args ...interface{}) error {
	return &CommandError{Msg: fmt.Sprintf(format, args...)}
}

// Session represents the response side of a fastboot command.
type Session struct {
	t Transport
}

func (s *Session) respond(tag string, msg string) (err error) {
	res := []byte(tag + msg)

	if len(res) > MAX_PACKET {
		res = res[:MAX_PACKET]
	}

	return s.Send(res)
}

// Info sends an informational message, the command is still in progress.
func (s *Session) Info(msg string) error {
	return s.respond("INFO", msg)
}

// Okay completes the command successfully.
func (s *Session) Okay(msg string) error {
	return s.respond("OKAY", msg)
}

// Fail completes the command with a failure.
func (s *Session) Fail(msg string) error {
	return s.respond("FAIL", msg)
}

// Data announces a data phase of size bytes, to be sent with Send.
func (s *Session) Data(size int) error {
	return s.respond("DATA", fmt.Sprintf("%08x", size))
}

// Send transmits raw bytes to the host.
func (s *Session) Send(buf []byte) (err error) {
	if err = s.t.Send(buf); err != nil {
		return fmt.Errorf("%w, %v", ErrTransport, err)
	}

	return
}

// Upload performs a complete data phase.
func (s *Session) Upload(buf []byte) (err error) {
	if err = s.Data(len(buf)); err != nil {
		return
	}

	return s.Send(buf)
}
