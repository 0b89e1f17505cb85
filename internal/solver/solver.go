// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package solver recovers keyslot keys from their truncation depth vectors,
// by brute force of one key word at a time.
//
// The ciphertext with n words retained only depends on the first n key
// words, therefore, once words 0 to n-1 are known, word n is found by
// searching a single 32-bit space.
package solver

import (
	"context"
	"crypto/aes"
	"encoding/binary"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/f-secure-foundry/fastbooted/internal/oracle"
)

// interval between context checks in each worker
const checkInterval = 1 << 12

// ErrNotFound is returned when no candidate in the searched range matches.
var ErrNotFound = errors.New("solver: key word not found")

var errFound = errors.New("found")

// Config represents the search parameters.
type Config struct {
	// Workers is the number of parallel search goroutines (default:
	// runtime.NumCPU()).
	Workers int

	// Start and End delimit the candidate range [Start, End), an End
	// of 0 searches up to the full 32-bit space.
	Start uint64
	End   uint64
}

func (conf *Config) bounds() (start uint64, end uint64, workers int, err error) {
	start, end, workers = conf.Start, conf.End, conf.Workers

	if end == 0 || end > 1<<32 {
		end = 1 << 32
	}

	if start >= end {
		err = fmt.Errorf("solver: empty range %#x-%#x", start, end)
		return
	}

	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	if n := end - start; uint64(workers) > n {
		workers = int(n)
	}

	return
}

// Key returns the AES-128 key for a set of key words, in keyslot order.
func Key(words []uint32) []byte {
	key := make([]byte, 16)

	for i, w := range words {
		binary.LittleEndian.PutUint32(key[i*4:], w)
	}

	return key
}

// Check returns whether encrypting pt, under a key made of the known words
// followed by word and zero padding, yields target.
func Check(known []uint32, word uint32, pt oracle.Block, target oracle.Block) bool {
	if len(known) > 3 {
		return false
	}

	words := make([]uint32, 4)
	copy(words, known)
	words[len(known)] = word

	return check(Key(words), pt, target)
}

func check(key []byte, pt oracle.Block, target oracle.Block) bool {
	var ct oracle.Block

	block, err := aes.NewCipher(key)

	if err != nil {
		return false
	}

	block.Encrypt(ct[:], pt[:])

	return ct == target
}

// SearchWord searches for the key word following the known ones.
func SearchWord(ctx context.Context, known []uint32, pt oracle.Block, target oracle.Block, conf Config) (word uint32, err error) {
	if len(known) > 3 {
		return 0, errors.New("solver: all key words already known")
	}

	start, end, workers, err := conf.bounds()

	if err != nil {
		return
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)

	chunk := (end - start + uint64(workers) - 1) / uint64(workers)

	for i := 0; i < workers; i++ {
		from := start + uint64(i)*chunk
		to := from + chunk

		if to > end {
			to = end
		}

		g.Go(func() error {
			words := make([]uint32, 4)
			copy(words, known)

			key := Key(words)
			off := len(known) * 4

			for w := from; w < to; w++ {
				if (w-from)%checkInterval == 0 && ctx.Err() != nil {
					return ctx.Err()
				}

				binary.LittleEndian.PutUint32(key[off:], uint32(w))

				if check(key, pt, target) {
					mu.Lock()
					word = uint32(w)
					mu.Unlock()

					return errFound
				}
			}

			return nil
		})
	}

	switch err = g.Wait(); {
	case err == nil:
		return 0, ErrNotFound
	case errors.Is(err, errFound):
		mu.Lock()
		defer mu.Unlock()
		return word, nil
	default:
		return 0, err
	}
}

// Recover searches all four key words of the keyslot described by v.
func Recover(ctx context.Context, v *oracle.Vectors, conf Config) (words [4]uint32, err error) {
	var ct0 oracle.Block

	block, err := aes.NewCipher(Key(nil))

	if err != nil {
		return
	}

	block.Encrypt(ct0[:], v.Plaintext[:])

	if err = v.Check(ct0); err != nil {
		return words, fmt.Errorf("solver: inconsistent vectors, %w", err)
	}

	for n := 0; n < 4; n++ {
		if words[n], err = SearchWord(ctx, words[:n], v.Plaintext, v.Retained[n+1], conf); err != nil {
			return words, fmt.Errorf("word %d, %w", n, err)
		}
	}

	return
}
