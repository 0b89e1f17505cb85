// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package oracle

import (
	"fmt"
)

// Candidates holds, for each key word position, the values to test.
type Candidates [][]uint32

// DefaultCandidates are the dwords tested by the firmware against words 0,
// 1 and 2 of its validation keyslot.
var DefaultCandidates = Candidates{
	{0xe614e3d1},
	{0x5916d477},
	{0x8f454a44},
}

// Match represents the outcome of a single candidate test.
type Match struct {
	Word    int
	Value   uint32
	Matched bool
}

func (m Match) String() string {
	if m.Matched {
		return fmt.Sprintf("key word %d matched (0x%08x)", m.Word, m.Value)
	}

	return fmt.Sprintf("key word %d did not match (0x%08x)", m.Word, m.Value)
}

// Recover tests candidate values for each key word of a keyslot, in
// position order, against the encryption of the all-zero block under the
// current key.
//
// Candidates are written in place: a matching candidate restores the
// original word, the first match ends the search for that position. When
// no candidate matches, the last one tested remains in the keyslot and no
// later position can match.
func Recover(a AES, slot int, candidates Candidates) (matches []Match, err error) {
	if err = a.ZeroIV(slot); err != nil {
		return
	}

	expected, err := encrypt(a, slot, nil)

	if err != nil {
		return
	}

	for word, values := range candidates {
		for _, val := range values {
			if err = a.ZeroIV(slot); err != nil {
				return
			}

			if err = a.SetKeyslotWord(slot, word, val); err != nil {
				return
			}

			ct, err := encrypt(a, slot, nil)

			if err != nil {
				return nil, err
			}

			m := Match{
				Word:    word,
				Value:   val,
				Matched: ct == expected,
			}

			matches = append(matches, m)

			if m.Matched {
				break
			}
		}
	}

	return
}

// Validate runs Recover for the given number of passes, clearing the
// keyslot IV state after each one, and returns the outcome of every pass.
func Validate(a AES, slot int, candidates Candidates, passes int) (results [][]Match, err error) {
	for i := 0; i < passes; i++ {
		matches, err := Recover(a, slot, candidates)

		if err != nil {
			return nil, err
		}

		results = append(results, matches)

		if err = a.ZeroIV(slot); err != nil {
			return nil, err
		}
	}

	return
}

// Recovered returns the key words confirmed by a Recover outcome.
func Recovered(matches []Match) (words map[int]uint32) {
	words = make(map[int]uint32)

	for _, m := range matches {
		if m.Matched {
			words[m.Word] = m.Value
		}
	}

	return
}
