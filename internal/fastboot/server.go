// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package fastboot

import (
	"errors"
	"fmt"
	"log"
	"strings"
)

// Result represents the outcome of a command for the session loop.
type Result int

const (
	// Continue keeps serving commands.
	Continue Result = iota
	// DropDevice ends the current session.
	DropDevice
)

// Handler represents a command handler, arg holds the text following the
// command name and its separator.
//
// Returning a CommandError fails the command and keeps the session alive,
// any other error is fatal.
type Handler func(s *Session, arg string) error

type entry struct {
	name string
	h    Handler
}

// Server represents a fastboot command dispatcher.
type Server struct {
	// Transport is the underlying USB transport.
	Transport Transport

	handlers []entry
}

// Register adds a command handler, commands match either exactly or when
// followed by a space or colon separator.
func (srv *Server) Register(name string, h Handler) {
	srv.handlers = append(srv.handlers, entry{name: name, h: h})
}

func (srv *Server) lookup(cmd string) (h Handler, arg string) {
	n := -1

	for _, e := range srv.handlers {
		if !strings.HasPrefix(cmd, e.name) || len(e.name) <= n {
			continue
		}

		rest := cmd[len(e.name):]

		switch {
		case len(rest) == 0:
			h, arg = e.h, ""
		case rest[0] == ' ' || rest[0] == ':':
			h, arg = e.h, strings.TrimSpace(rest[1:])
		default:
			continue
		}

		n = len(e.name)
	}

	return
}

// Handle dispatches a single command packet. A non-nil error is returned
// only for fatal handler errors, transport errors drop the device.
func (srv *Server) Handle(cmd []byte) (res Result, err error) {
	s := &Session{t: srv.Transport}
	name := strings.TrimRight(string(cmd), "\x00\r\n")

	log.Printf("fastboot: %s", name)

	h, arg := srv.lookup(name)

	if h == nil {
		err = s.Fail("unknown command")
	} else {
		err = h(s, arg)
	}

	var cmdErr *CommandError

	switch {
	case err == nil:
		return Continue, nil
	case errors.As(err, &cmdErr):
		if err = s.Fail(cmdErr.Msg); err != nil {
			return DropDevice, nil
		}

		return Continue, nil
	case errors.Is(err, ErrTransport):
		log.Printf("fastboot: %v", err)
		return DropDevice, nil
	}

	// best effort notification, the caller halts regardless
	s.Fail(err.Error())

	return DropDevice, fmt.Errorf("%s: %w", name, err)
}

// Serve receives and dispatches commands until the device is dropped,
// returning a non-nil error only on fatal handler errors.
func (srv *Server) Serve() error {
	buf := make([]byte, MAX_PACKET)

	for {
		n, err := srv.Transport.Receive(buf)

		if err != nil {
			log.Printf("fastboot: receive error, %v", err)
			return nil
		}

		res, err := srv.Handle(buf[:n])

		if err != nil || res == DropDevice {
			return err
		}
	}
}
