// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package main

import (
	"context"
	"crypto/aes"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"

	"github.com/f-secure-foundry/fastbooted/internal/oracle"
	"github.com/f-secure-foundry/fastbooted/internal/solver"
)

func testVectors(t *testing.T, words []uint32) *oracle.Vectors {
	v := &oracle.Vectors{}

	for n := 0; n <= 4; n++ {
		key := make([]uint32, 4)
		copy(key, words[:n])

		block, err := aes.NewCipher(solver.Key(key))
		require.NoError(t, err)

		block.Encrypt(v.Retained[n][:], v.Plaintext[:])
	}

	return v
}

func TestRecoverSlot(t *testing.T) {
	conf = &Config{Config: solver.Config{Workers: 2, End: 0x100}}

	r := recoverSlot(context.Background(), 3, testVectors(t, []uint32{1, 2, 3, 0xff}))

	assert.Equal(t, 3, r.Slot)
	assert.Empty(t, r.Error)
	assert.Equal(t, []string{"0x00000001", "0x00000002", "0x00000003", "0x000000ff"}, r.Words)
	assert.Equal(t, "010000000200000003000000ff000000", r.Key)

	r = recoverSlot(context.Background(), 0, testVectors(t, []uint32{0, 0, 0, 0}))
	assert.True(t, r.Zero)

	r = recoverSlot(context.Background(), 1, testVectors(t, []uint32{0x1000, 0, 0, 0}))
	assert.NotEmpty(t, r.Error)
}

func TestWriteReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.yaml")
	conf = &Config{output: path}

	report := &Report{
		Input: "dump.bin",
		Keyslots: []SlotReport{
			{Slot: 0, Zero: true, Duration: "0s"},
			{Slot: 1, Key: "000102030405060708090a0b0c0d0e0f", Duration: "1s"},
		},
	}

	require.NoError(t, writeReport(report))

	buf, err := ioutil.ReadFile(path)
	require.NoError(t, err)

	parsed := &Report{}
	require.NoError(t, yaml.Unmarshal(buf, parsed))
	assert.Equal(t, report, parsed)
}
