// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package oracle implements key recovery for write-only Security Engine
// keyslots, using single word keyslot overwrites and block encryption as a
// chosen plaintext equality oracle.
//
// The hardware never allows key reads: a guessed key word is confirmed when
// overwriting it leaves the encryption of a fixed plaintext unchanged.
package oracle

import (
	"crypto/aes"
)

// Keyslot assignments
const (
	SLOT_SYSRAM   = 1
	SLOT_HAX      = 8
	SLOT_VALIDATE = 13
)

// VALIDATE_PASSES is the number of Validate passes run by the firmware.
const VALIDATE_PASSES = 2

// AES represents the primitive layer operations the oracle is built on.
type AES interface {
	SetKeyslotWord(slot int, word int, val uint32) error
	ZeroIV(slot int) error
	EncryptBlock(dst []byte, src []byte, slot int) error
}

// Block represents a single AES block.
type Block [aes.BlockSize]byte

// encrypt returns the encryption of the all-zero plaintext, or of the
// optional plaintext argument, under a keyslot.
func encrypt(a AES, slot int, pt *Block) (ct Block, err error) {
	var src Block

	if pt != nil {
		src = *pt
	}

	err = a.EncryptBlock(ct[:], src[:], slot)

	return
}

// ReadSysram zeroes the IV state and key of a keyslot and returns the
// encryption of the all-zero block.
func ReadSysram(a AES, slot int) (ct Block, err error) {
	if err = a.ZeroIV(slot); err != nil {
		return
	}

	for word := 0; word < 4; word++ {
		if err = a.SetKeyslotWord(slot, word, 0); err != nil {
			return
		}
	}

	return encrypt(a, slot, nil)
}
