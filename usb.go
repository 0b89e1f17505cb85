// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && arm64
// +build tamago,arm64

package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"

	"github.com/f-secure-foundry/tamago/dma"

	"github.com/f-secure-foundry/fastbooted/internal/arm64"
)

// boot ROM USB function entry points, initialized at compile time (see
// Makefile)
var usbfSend string
var usbfReceive string

// USBF_BUFFER is the size of the transfer buffer handed to the boot ROM.
const USBF_BUFFER = 0x10000

// usbf implements fastboot.Transport over the USB device stack left
// running by the boot ROM.
type usbf struct {
	send    uint64
	receive uint64
	cache   *arm64.Cache

	addr uint32
	buf  []byte

	// transferred byte count, written by the boot ROM
	countAddr uint32
	count     []byte
}

func newUSBF(cache *arm64.Cache) (u *usbf, err error) {
	u = &usbf{cache: cache}

	if u.send, err = strconv.ParseUint(usbfSend, 0, 64); err != nil {
		return nil, fmt.Errorf("invalid usbfSend address, %v", err)
	}

	if u.receive, err = strconv.ParseUint(usbfReceive, 0, 64); err != nil {
		return nil, fmt.Errorf("invalid usbfReceive address, %v", err)
	}

	u.addr, u.buf = dma.Reserve(USBF_BUFFER, 64)
	u.countAddr, u.count = dma.Reserve(4, 64)

	return
}

func (u *usbf) transfer(fn uint64, size int) (n int, err error) {
	u.cache.FlushInvalidate(uint64(u.addr), size)
	u.cache.FlushInvalidate(uint64(u.countAddr), len(u.count))

	if status := arm64.Call(fn, uint64(u.addr), uint64(size), uint64(u.countAddr)); status != 0 {
		return 0, fmt.Errorf("usbf: transfer error %#x", status)
	}

	u.cache.FlushInvalidate(uint64(u.addr), size)
	u.cache.FlushInvalidate(uint64(u.countAddr), len(u.count))

	n = int(binary.LittleEndian.Uint32(u.count))

	if n > size {
		return 0, errors.New("usbf: invalid transfer size")
	}

	return
}

// Send implements fastboot.Transport.
func (u *usbf) Send(buf []byte) error {
	for len(buf) > 0 {
		size := copy(u.buf, buf)

		n, err := u.transfer(u.send, size)

		if err != nil {
			return err
		}

		if n != size {
			return fmt.Errorf("usbf: short write (%d < %d)", n, size)
		}

		buf = buf[size:]
	}

	return nil
}

// Receive implements fastboot.Transport.
func (u *usbf) Receive(buf []byte) (n int, err error) {
	size := len(buf)

	if size > len(u.buf) {
		size = len(u.buf)
	}

	if n, err = u.transfer(u.receive, size); err != nil {
		return
	}

	copy(buf, u.buf[:n])

	return
}
