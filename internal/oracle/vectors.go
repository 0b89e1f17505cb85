// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package oracle

import (
	"errors"
	"fmt"
)

// VECTORS_SIZE is the encoded size of a single keyslot Vectors record.
const VECTORS_SIZE = 6 * 16

// Vectors represents the truncation depth table of a keyslot: the
// encryption of a fixed plaintext under its key with only the first n words
// retained (Retained[n]), the remaining ones zeroed.
type Vectors struct {
	Plaintext Block
	Retained  [5]Block
}

// Bytes returns the wire format of the record: the plaintext followed by
// the ciphertexts for 0 to 4 retained words.
func (v *Vectors) Bytes() []byte {
	buf := make([]byte, 0, VECTORS_SIZE)
	buf = append(buf, v.Plaintext[:]...)

	for _, ct := range v.Retained {
		buf = append(buf, ct[:]...)
	}

	return buf
}

// ParseVectors decodes a sequence of Vectors records.
func ParseVectors(buf []byte) (vectors []*Vectors, err error) {
	if len(buf) == 0 || len(buf)%VECTORS_SIZE != 0 {
		return nil, fmt.Errorf("invalid vectors length %d", len(buf))
	}

	for off := 0; off < len(buf); off += VECTORS_SIZE {
		v := &Vectors{}
		rec := buf[off : off+VECTORS_SIZE]

		copy(v.Plaintext[:], rec)

		for i := range v.Retained {
			copy(v.Retained[i][:], rec[(i+1)*16:])
		}

		vectors = append(vectors, v)
	}

	return
}

// Check verifies the record is consistent with the zeroed key at depth 0,
// ct0 being the encryption of the plaintext under the all-zero key.
func (v *Vectors) Check(ct0 Block) error {
	if v.Retained[0] != ct0 {
		return errors.New("all-zero key ciphertext mismatch")
	}

	return nil
}

// DumpVectors builds the truncation depth table of a keyslot, progressively
// zeroing key words 3 to 0. The keyslot key is destroyed.
func DumpVectors(a AES, slot int) (v *Vectors, err error) {
	if err = a.ZeroIV(slot); err != nil {
		return
	}

	v = &Vectors{}

	for n := 4; n >= 0; n-- {
		if n < 4 {
			if err = a.SetKeyslotWord(slot, n, 0); err != nil {
				return nil, err
			}
		}

		if v.Retained[n], err = encrypt(a, slot, &v.Plaintext); err != nil {
			return nil, err
		}
	}

	return
}
