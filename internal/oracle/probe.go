// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package oracle

// PROBE_SIZE is the encoded size of a ProbeResult.
const PROBE_SIZE = 4 * 16

const probeWord = 0xffffffff

// ProbeResult holds the four encryptions of the keytable write probe.
type ProbeResult struct {
	// B1 is the zero block encrypted with key word 1 set.
	B1 Block
	// B2 is B1 encrypted again under the same key.
	B2 Block
	// B3 is the zero block encrypted with key word 1 cleared.
	B3 Block
	// B4 is the zero block encrypted with key word 1 set again.
	B4 Block
}

// Vulnerable reports whether restoring key word 1 reproduced B1 exactly
// while clearing it changed the output.
func (r *ProbeResult) Vulnerable() bool {
	return r.B1 == r.B4 && r.B1 != r.B3
}

// Bytes returns B1, B2, B3 and B4 concatenated.
func (r *ProbeResult) Bytes() []byte {
	buf := make([]byte, 0, PROBE_SIZE)

	for _, b := range []Block{r.B1, r.B2, r.B3, r.B4} {
		buf = append(buf, b[:]...)
	}

	return buf
}

// Probe checks whether single word keytable writes fully commit, by
// toggling key word 1 of a keyslot between all-ones and zero. The keyslot
// key is destroyed.
func Probe(a AES, slot int) (r *ProbeResult, err error) {
	key := []uint32{0, probeWord, 0, 0}

	for word, val := range key {
		if err = a.SetKeyslotWord(slot, word, val); err != nil {
			return
		}
	}

	r = &ProbeResult{}

	if r.B1, err = encrypt(a, slot, nil); err != nil {
		return nil, err
	}

	if r.B2, err = encrypt(a, slot, &r.B1); err != nil {
		return nil, err
	}

	if err = a.SetKeyslotWord(slot, 1, 0); err != nil {
		return nil, err
	}

	if r.B3, err = encrypt(a, slot, nil); err != nil {
		return nil, err
	}

	if err = a.SetKeyslotWord(slot, 1, probeWord); err != nil {
		return nil, err
	}

	if r.B4, err = encrypt(a, slot, nil); err != nil {
		return nil, err
	}

	return
}
