// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package se

import (
	"crypto/aes"
	"crypto/cipher"
)

type slotCipher struct {
	e    *Engine
	slot int
}

// NewCipher creates and returns a new cipher.Block. The slot argument
// represents a keyslot, set with either SetKeyslot() or UnwrapKey(), for
// hardware accelerated AES-128.
//
// As cipher.Block cannot return errors, Encrypt and Decrypt panic on driver
// faults, which are fatal regardless.
func NewCipher(e *Engine, slot int) (c cipher.Block, err error) {
	if err = e.checkSlot("NewCipher", slot); err != nil {
		return
	}

	c = &slotCipher{
		e:    e,
		slot: slot,
	}

	return
}

// BlockSize returns the AES block size in bytes.
func (c *slotCipher) BlockSize() int {
	return aes.BlockSize
}

// Encrypt performs single block AES-128 encryption.
func (c *slotCipher) Encrypt(dst []byte, src []byte) {
	if err := c.e.EncryptBlock(dst[:aes.BlockSize], src[:aes.BlockSize], c.slot); err != nil {
		panic(err)
	}
}

// Decrypt performs single block AES-128 decryption.
func (c *slotCipher) Decrypt(dst []byte, src []byte) {
	if err := c.e.DecryptBlock(dst[:aes.BlockSize], src[:aes.BlockSize], c.slot); err != nil {
		panic(err)
	}
}
