// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package fastboot

import (
	"strconv"

	"github.com/f-secure-foundry/fastbooted/internal/oracle"
	"github.com/f-secure-foundry/fastbooted/internal/se"
)

// Power represents the platform reset and power controls.
type Power interface {
	Reboot() error
	PowerOff() error
}

// Commands implements the device command set.
type Commands struct {
	// AES is the Security Engine primitive layer used by oracle
	// commands.
	AES oracle.AES

	// Power performs reboot and power off requests.
	Power Power

	// Version is reported by getvar:version.
	Version string
}

// Register adds all commands to a server.
func (c *Commands) Register(srv *Server) {
	srv.Register("getvar", c.getvar)
	srv.Register("reboot", c.reboot)
	srv.Register("oem poweroff", c.poweroff)
	srv.Register("oem se-dump-vectors", c.dumpVectors)
	srv.Register("oem se-validate", c.validate)
	srv.Register("oem test-se-hax", c.probe)
	srv.Register("oem read-sysram", c.readSysram)
}

func (c *Commands) getvar(s *Session, arg string) error {
	switch arg {
	case "version":
		return s.Okay(c.Version)
	default:
		return Errorf("unknown variable %q", arg)
	}
}

func (c *Commands) reboot(s *Session, _ string) (err error) {
	if err = s.Okay(""); err != nil {
		return
	}

	return c.Power.Reboot()
}

func (c *Commands) poweroff(s *Session, _ string) (err error) {
	if err = s.Okay(""); err != nil {
		return
	}

	return c.Power.PowerOff()
}

func (c *Commands) dumpVectors(s *Session, arg string) (err error) {
	first, last := 0, se.KEYSLOTS-1

	if len(arg) > 0 {
		slot, err := strconv.Atoi(arg)

		if err != nil || slot < 0 || slot >= se.KEYSLOTS {
			return Errorf("invalid keyslot %q", arg)
		}

		first, last = slot, slot
	}

	for slot := first; slot <= last; slot++ {
		v, err := oracle.DumpVectors(c.AES, slot)

		if err != nil {
			return err
		}

		if err = s.Upload(v.Bytes()); err != nil {
			return err
		}
	}

	return s.Okay("")
}

func (c *Commands) validate(s *Session, _ string) (err error) {
	results, err := oracle.Validate(c.AES, oracle.SLOT_VALIDATE, oracle.DefaultCandidates, oracle.VALIDATE_PASSES)

	if err != nil {
		return
	}

	for _, matches := range results {
		for _, m := range matches {
			if err = s.Info(m.String()); err != nil {
				return
			}
		}
	}

	return s.Okay("")
}

func (c *Commands) probe(s *Session, _ string) (err error) {
	r, err := oracle.Probe(c.AES, oracle.SLOT_HAX)

	if err != nil {
		return
	}

	if r.Vulnerable() {
		err = s.Info("This SE is vulnerable!")
	} else {
		err = s.Info("This SE is not vulnerable!")
	}

	if err != nil {
		return
	}

	if err = s.Upload(r.Bytes()); err != nil {
		return
	}

	return s.Okay("")
}

func (c *Commands) readSysram(s *Session, _ string) (err error) {
	ct, err := oracle.ReadSysram(c.AES, oracle.SLOT_SYSRAM)

	if err != nil {
		return
	}

	if err = s.Upload(ct[:]); err != nil {
		return
	}

	return s.Okay("")
}
