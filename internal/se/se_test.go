// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package se_test

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/f-secure-foundry/fastbooted/internal/se"
	"github.com/f-secure-foundry/fastbooted/internal/sim"
)

const (
	testBase = 0x40000000
	testPhys = 0x90000000
)

var testKey = []byte{
	0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07,
	0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f,
}

type backend struct {
	hw  *sim.Engine
	mem *sim.Memory
}

func newEngine(t *testing.T, conf se.Config) (*se.Engine, *backend) {
	b := &backend{mem: sim.NewMemory(testBase, testPhys, 0x10000)}
	b.hw = sim.NewEngine(se.SE_BASE, b.mem)

	conf.Bus = b.hw

	if conf.Cache == nil {
		conf.Cache = b.mem
	}

	if conf.Translator == nil {
		conf.Translator = b.mem
	}

	if conf.Memory == nil {
		conf.Memory = b.mem
	}

	if conf.PollLimit == 0 {
		conf.PollLimit = 16
	}

	e, err := se.New(conf)
	require.NoError(t, err)

	return e, b
}

func decode(t *testing.T, s string) []byte {
	buf, err := hex.DecodeString(s)
	require.NoError(t, err)
	return buf
}

func reference(t *testing.T, key []byte) cipher.Block {
	block, err := aes.NewCipher(key)
	require.NoError(t, err)
	return block
}

func assertFault(t *testing.T, kind se.FaultKind, err error) {
	t.Helper()

	k, ok := se.FaultOf(err)
	require.True(t, ok, "expected fault, got %v", err)
	assert.Equal(t, kind, k)
	assert.True(t, se.IsFatal(err))
}

func TestNewRequiresBackends(t *testing.T) {
	_, err := se.New(se.Config{})
	assert.Error(t, err)
}

func TestClearedKeyslotEncryptsZeroBlock(t *testing.T) {
	e, b := newEngine(t, se.Config{})

	require.NoError(t, e.SetKeyslot(12, testKey))
	require.NoError(t, e.ClearKeyslot(12))

	out := make([]byte, 16)
	require.NoError(t, e.EncryptBlock(out, make([]byte, 16), 12))

	assert.Equal(t, decode(t, "66e94bd4ef8a2c3b884cfa59ca342b2e"), out)
	assert.True(t, e.IsIdle())
	assert.Zero(t, b.mem.Reserved(), "leaked DMA buffers")
}

func TestBlockRoundTrip(t *testing.T) {
	e, _ := newEngine(t, se.Config{})
	require.NoError(t, e.SetKeyslot(3, testKey))

	pt := []byte("sixteen byte msg")
	ct := make([]byte, 16)
	dec := make([]byte, 16)

	require.NoError(t, e.EncryptBlock(ct, pt, 3))
	require.NoError(t, e.DecryptBlock(dec, ct, 3))

	want := make([]byte, 16)
	reference(t, testKey).Encrypt(want, pt)

	assert.Equal(t, want, ct)
	assert.Equal(t, pt, dec)
}

func TestCacheMaintenance(t *testing.T) {
	e, b := newEngine(t, se.Config{})

	out := make([]byte, 16)
	require.NoError(t, e.EncryptBlock(out, make([]byte, 16), 0))

	assert.Equal(t, 1, b.mem.Barriers)
	assert.Equal(t, 2, b.mem.Invalidations)
	assert.NotZero(t, b.mem.Flushes)
}

func TestSetKeyslotWord(t *testing.T) {
	e, b := newEngine(t, se.Config{})

	require.NoError(t, e.SetKeyslot(5, testKey))
	require.NoError(t, e.SetKeyslotWord(5, 1, 0x11223344))

	want := append([]byte{}, testKey...)
	copy(want[4:], []byte{0x44, 0x33, 0x22, 0x11})

	assert.Equal(t, want, b.hw.Key(5))

	assertFault(t, se.SizeFault, e.SetKeyslotWord(5, 4, 0))
}

func TestIVWordsAlias(t *testing.T) {
	e, b := newEngine(t, se.Config{})

	require.NoError(t, e.SetIV(7, false, 0, 0xaaaa))
	require.NoError(t, e.SetIV(7, false, 4, 0xbbbb))
	require.NoError(t, e.SetIV(7, true, 5, 0xcccc))

	assert.Equal(t, uint32(0xaaaa), b.hw.Row(7, 8))
	assert.Equal(t, uint32(0xbbbb), b.hw.Row(7, 12))
	assert.Equal(t, uint32(0xcccc), b.hw.Row(7, 13))

	require.NoError(t, e.ZeroIV(7))

	for row := 8; row < 16; row++ {
		assert.Zero(t, b.hw.Row(7, row))
	}
}

func TestCTRStream(t *testing.T) {
	e, b := newEngine(t, se.Config{})
	require.NoError(t, e.SetKeyslot(8, testKey))

	ctr := decode(t, "f0f1f2f3f4f5f6f7f8f9fafbfcfdfeff")

	for _, n := range []int{1, 15, 16, 17, 64, 100} {
		src := bytes.Repeat([]byte{0xa5}, n)
		dst := make([]byte, n)
		want := make([]byte, n)

		require.NoError(t, e.CTRStream(dst, src, 8, ctr))
		cipher.NewCTR(reference(t, testKey), ctr).XORKeyStream(want, src)

		assert.Equal(t, want, dst, "length %d", n)
	}

	assert.Zero(t, b.mem.Reserved())
}

func TestCTRStreamSplit(t *testing.T) {
	e, _ := newEngine(t, se.Config{})
	require.NoError(t, e.SetKeyslot(8, testKey))

	src := make([]byte, 80)

	for i := range src {
		src[i] = byte(i)
	}

	ctr := make([]byte, 16)
	whole := make([]byte, len(src))
	require.NoError(t, e.CTRStream(whole, src, 8, ctr))

	next := make([]byte, 16)
	next[15] = 2

	split := make([]byte, len(src))
	require.NoError(t, e.CTRStream(split[:32], src[:32], 8, ctr))
	require.NoError(t, e.CTRStream(split[32:], src[32:], 8, next))

	assert.Equal(t, whole, split)
}

func TestCTRStreamEmpty(t *testing.T) {
	e, b := newEngine(t, se.Config{})

	require.NoError(t, e.CTRStream(nil, nil, 8, nil))
	assert.Zero(t, b.hw.Ops)
}

func TestUnwrapKey(t *testing.T) {
	e, b := newEngine(t, se.Config{})

	kek := decode(t, "2b7e151628aed2a6abf7158809cf4f3c")
	blob := decode(t, "3ad77bb40d7a3660a89ecaf32466ef97f5d3d58503b9699de785895a96fdbaaf")

	require.NoError(t, e.SetKeyslot(12, kek))
	require.NoError(t, e.UnwrapKey(8, 12, blob))

	want := make([]byte, 32)
	ref := reference(t, kek)
	ref.Decrypt(want[:16], blob[:16])
	ref.Decrypt(want[16:], blob[16:])

	assert.Equal(t, want[:16], b.hw.Key(8))

	// unwrapping is deterministic
	require.NoError(t, e.UnwrapKey(9, 12, blob))
	assert.Equal(t, b.hw.Key(8), b.hw.Key(9))

	for row := 4; row < 8; row++ {
		assert.Equal(t, b.hw.Row(8, row), b.hw.Row(9, row))
	}

	pt := make([]byte, 16)
	ct := make([]byte, 16)
	exp := make([]byte, 16)

	require.NoError(t, e.EncryptBlock(ct, pt, 8))
	reference(t, want[:16]).Encrypt(exp, pt)
	assert.Equal(t, exp, ct)
}

func TestUnwrapKeySize(t *testing.T) {
	e, _ := newEngine(t, se.Config{})
	assertFault(t, se.SizeFault, e.UnwrapKey(8, 12, make([]byte, 48)))
}

func TestCTRDecryptWithWrappedKey(t *testing.T) {
	e, b := newEngine(t, se.Config{})

	blob := decode(t, "000102030405060708090a0b0c0d0e0f")
	ctr := decode(t, "00000000000000000000000000000001")
	src := []byte("payload encrypted under a session key")

	require.NoError(t, e.CTRDecryptWithWrappedKey(make([]byte, len(src)), src, blob, ctr))
	assert.Equal(t, make([]byte, 16), b.hw.Key(se.KEYSLOT_SESSION))

	key := make([]byte, 16)
	reference(t, make([]byte, 16)).Decrypt(key, blob)

	dst := make([]byte, len(src))
	want := make([]byte, len(src))

	require.NoError(t, e.CTRDecryptWithWrappedKey(dst, src, blob, ctr))
	cipher.NewCTR(reference(t, key), ctr).XORKeyStream(want, src)

	assert.Equal(t, want, dst)
}

func TestMasterKeySlot(t *testing.T) {
	e, b := newEngine(t, se.Config{})

	slot, err := e.MasterKeySlot(3)
	require.NoError(t, err)
	assert.Equal(t, se.KEYSLOT_DEVICE, slot)
	assert.Zero(t, b.hw.Ops)

	slot, err = e.MasterKeySlot(1)
	require.NoError(t, err)
	assert.Equal(t, se.KEYSLOT_MASTER, slot)

	blob, ok := se.MasterKey(1)
	require.True(t, ok)

	want := make([]byte, 16)
	reference(t, make([]byte, 16)).Decrypt(want, blob)
	assert.Equal(t, want, b.hw.Key(se.KEYSLOT_MASTER))
}

func TestMasterKey(t *testing.T) {
	k0, ok := se.MasterKey(0)
	require.True(t, ok)

	k1, _ := se.MasterKey(1)
	k2, _ := se.MasterKey(2)

	assert.Equal(t, k0, k1)
	assert.NotEqual(t, k1, k2)

	_, ok = se.MasterKey(3)
	assert.False(t, ok)

	_, ok = se.MasterKey(-1)
	assert.False(t, ok)
}

func TestPermissions(t *testing.T) {
	e, b := newEngine(t, se.Config{})

	require.NoError(t, e.SetKeyslotPermissions(3, 1<<se.ACCESS_KEYUPDATE|se.PERM_LOCK))
	require.NoError(t, e.SetKeyslot(3, testKey))

	assert.Equal(t, make([]byte, 16), b.hw.Key(3))
	assert.Equal(t, uint32(se.ACCESS_ALL&^(1<<se.ACCESS_KEYUPDATE)), b.hw.Access(3))
	assert.Zero(t, b.hw.Read(se.SE_BASE+se.SE_CRYPTO_SECURITY_PERKEY)&(1<<3))

	// the key is still usable
	out := make([]byte, 16)
	require.NoError(t, e.EncryptBlock(out, make([]byte, 16), 3))

	require.NoError(t, e.SetKeyslotPermissions(3, 1<<se.ACCESS_KEYUSE))
	assertFault(t, se.EngineFault, e.EncryptBlock(out, make([]byte, 16), 3))
}

func TestLock(t *testing.T) {
	e, b := newEngine(t, se.Config{})

	e.Lock()

	for slot := 0; slot < se.KEYSLOTS; slot++ {
		assert.Zero(t, b.hw.Access(slot))
	}

	out := make([]byte, 16)
	assertFault(t, se.EngineFault, e.EncryptBlock(out, make([]byte, 16), 0))
}

func TestSetSecurityState(t *testing.T) {
	e, b := newEngine(t, se.Config{})

	e.SetSecurityState(false)
	assert.NotZero(t, b.hw.Register(se.SE_SECURITY_CONTROL)&(1<<se.SECURITY_SOFT_SETTING))

	e.SetSecurityState(true)
	assert.Zero(t, b.hw.Register(se.SE_SECURITY_CONTROL)&(1<<se.SECURITY_SOFT_SETTING))
}

func TestInvalidArguments(t *testing.T) {
	e, _ := newEngine(t, se.Config{})
	assertFault(t, se.SizeFault, e.EncryptBlock(make([]byte, 16), make([]byte, 16), se.KEYSLOTS))

	e, _ = newEngine(t, se.Config{})
	assertFault(t, se.SizeFault, e.EncryptBlock(make([]byte, 16), make([]byte, 15), 0))

	e, _ = newEngine(t, se.Config{})
	assertFault(t, se.SizeFault, e.SetIV(0, false, se.IV_WORDS, 0))

	e, _ = newEngine(t, se.Config{})
	assertFault(t, se.SizeFault, e.SetKeyslot(0, make([]byte, 32)))
}

func TestUnsupportedKeySize(t *testing.T) {
	e, _ := newEngine(t, se.Config{})

	out := make([]byte, 16)
	assertFault(t, se.EngineFault, e.TransformBlock(out, make([]byte, 16), true, se.AES256, 0))
}

func TestFaultIsSticky(t *testing.T) {
	e, b := newEngine(t, se.Config{})

	out := make([]byte, 16)
	first := e.TransformBlock(out, make([]byte, 16), true, se.AES256, 0)
	require.Error(t, first)

	ops := b.hw.Ops

	assert.Equal(t, first, e.EncryptBlock(out, make([]byte, 16), 0))
	assert.Equal(t, first, e.SetKeyslot(0, testKey))
	assert.Equal(t, first, e.Err())
	assert.Equal(t, ops, b.hw.Ops)
}

func TestCompletionTimeout(t *testing.T) {
	e, b := newEngine(t, se.Config{PollLimit: 4})
	b.hw.Hang = true

	out := make([]byte, 16)
	assertFault(t, se.EngineFault, e.EncryptBlock(out, make([]byte, 16), 0))
}

func TestCustomFaultCheck(t *testing.T) {
	var seen se.Status

	e, _ := newEngine(t, se.Config{
		Faulted: func(s se.Status) bool {
			seen = s
			return true
		},
	})

	out := make([]byte, 16)
	assertFault(t, se.EngineFault, e.EncryptBlock(out, make([]byte, 16), 0))
	assert.NotZero(t, seen.Int&(1<<se.INT_OP_DONE))
}

// skewed returns buffers violating the requested alignment.
type skewed struct {
	*sim.Memory
}

func (m skewed) Reserve(size int, align int) (uint64, []byte) {
	addr, buf := m.Memory.Reserve(size+4, align)
	return addr + 4, buf[4:]
}

func (m skewed) Release(addr uint64) {
	m.Memory.Release(addr - 4)
}

func TestAlignmentFault(t *testing.T) {
	mem := sim.NewMemory(testBase, testPhys, 0x1000)
	e, _ := newEngine(t, se.Config{Memory: skewed{mem}, Cache: mem, Translator: mem})

	out := make([]byte, 16)
	assertFault(t, se.AlignmentFault, e.EncryptBlock(out, make([]byte, 16), 0))
	assert.Zero(t, mem.Reserved())
}

type unmapped struct{}

func (unmapped) Translate(uint64) (uint64, bool) {
	return 0, false
}

func TestTranslationFault(t *testing.T) {
	e, b := newEngine(t, se.Config{Translator: unmapped{}})

	out := make([]byte, 16)
	assertFault(t, se.TranslationFault, e.EncryptBlock(out, make([]byte, 16), 0))
	assert.Zero(t, b.hw.Ops)
}

func TestNewCipher(t *testing.T) {
	e, _ := newEngine(t, se.Config{})
	require.NoError(t, e.SetKeyslot(se.KEYSLOT_SESSION, testKey))

	block, err := se.NewCipher(e, se.KEYSLOT_SESSION)
	require.NoError(t, err)
	assert.Equal(t, aes.BlockSize, block.BlockSize())

	iv := make([]byte, 16)
	src := []byte("stream mode over a hardware keyslot")
	dst := make([]byte, len(src))
	want := make([]byte, len(src))

	cipher.NewCTR(block, iv).XORKeyStream(dst, src)
	cipher.NewCTR(reference(t, testKey), iv).XORKeyStream(want, src)

	assert.Equal(t, want, dst)

	_, err = se.NewCipher(e, -1)
	assert.Error(t, err)
}
