// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package se

import (
	"crypto/aes"
	"encoding/binary"
	"math"

	"github.com/f-secure-foundry/tamago/bits"
)

// block performs a single block operation, with the previously configured
// registers, through an aligned scratch buffer. Only the first n bytes of
// the result are copied to dst.
func (e *Engine) block(op string, dst []byte, src []byte, n int) (err error) {
	buf, err := e.reserve(op, aes.BlockSize, BUFFER_ALIGN)

	if err != nil {
		return
	}
	defer e.release(buf)

	for i := range buf.data {
		buf.data[i] = 0
	}

	copy(buf.data, src)

	e.write(SE_CRYPTO_LAST_BLOCK, 0)

	if err = e.submit(buf, buf); err != nil {
		return
	}

	copy(dst[:n], buf.data)

	return
}

// TransformBlock performs a single block AES-ECB encryption or decryption,
// of exactly 16 bytes, with the key held in a keyslot. The keySize argument
// selects the AES variant (AES128, AES192, AES256).
func (e *Engine) TransformBlock(dst []byte, src []byte, encrypt bool, keySize uint32, slot int) (err error) {
	if e.fault != nil {
		return e.fault
	}

	if err = e.checkSlot("TransformBlock", slot); err != nil {
		return
	}

	if len(src) != aes.BlockSize || len(dst) != aes.BlockSize {
		return e.halt(SizeFault, "TransformBlock", "invalid block size (in:%d out:%d)", len(src), len(dst))
	}

	e.setup(aesConfig(encrypt, keySize, DST_MEMORY), cryptoConfig(encrypt, slot), 0)

	return e.block("TransformBlock", dst, src, aes.BlockSize)
}

// EncryptBlock performs AES-128 single block encryption with the key held in
// a keyslot.
func (e *Engine) EncryptBlock(dst []byte, src []byte, slot int) error {
	return e.TransformBlock(dst, src, true, AES128, slot)
}

// DecryptBlock performs AES-128 single block decryption with the key held in
// a keyslot, the result is placed in memory.
func (e *Engine) DecryptBlock(dst []byte, src []byte, slot int) error {
	return e.TransformBlock(dst, src, false, AES128, slot)
}

// setCounter loads the 128-bit linear counter, in little-endian words.
func (e *Engine) setCounter(ctr []byte) {
	for i := 0; i < 4; i++ {
		e.write(SE_CRYPTO_LINEAR_CTR_0+uint32(i*4), binary.LittleEndian.Uint32(ctr[i*4:]))
	}
}

// CTRStream performs AES-128-CTR encryption (or, equivalently, decryption)
// of src into dst with the key held in a keyslot, starting from the 16 bytes
// counter ctr.
//
// Whole blocks are processed in a single linear counter operation, any
// trailing partial block is processed through the single block path which
// continues from the counter left by the hardware. A logical stream must
// therefore never be split across calls, unless the caller advances ctr
// accordingly.
func (e *Engine) CTRStream(dst []byte, src []byte, slot int, ctr []byte) (err error) {
	if e.fault != nil {
		return e.fault
	}

	if len(src) == 0 {
		return
	}

	if err = e.checkSlot("CTRStream", slot); err != nil {
		return
	}

	if len(ctr) != aes.BlockSize {
		return e.halt(SizeFault, "CTRStream", "invalid counter size %d", len(ctr))
	}

	if len(dst) < len(src) || uint64(len(src)) > math.MaxUint32 {
		return e.halt(SizeFault, "CTRStream", "invalid length (in:%d out:%d)", len(src), len(dst))
	}

	var crypto uint32

	bits.SetN(&crypto, CRYPTO_XOR_POS, 0b11, XOR_BOTTOM)
	bits.SetN(&crypto, CRYPTO_INPUT_SEL, 0b11, INPUT_LINEAR_CTR)
	bits.SetN(&crypto, CRYPTO_CORE_SEL, 1, CORE_ENCRYPT)
	bits.SetN(&crypto, CRYPTO_CTR_CNTN, 0xff, 1)
	bits.SetN(&crypto, CRYPTO_KEY_INDEX, 0xf, uint32(slot))

	e.write(SE_SPARE, 1)
	e.setup(aesConfig(true, AES128, DST_MEMORY), crypto, 0)
	e.setCounter(ctr)

	blocks := len(src) / aes.BlockSize
	aligned := blocks * aes.BlockSize

	if blocks > 0 {
		if err = e.bulk(dst[:aligned], src[:aligned], uint32(blocks-1)); err != nil {
			return
		}
	}

	if tail := len(src) - aligned; tail > 0 {
		return e.block("CTRStream", dst[aligned:], src[aligned:], tail)
	}

	return
}

func (e *Engine) bulk(dst []byte, src []byte, lastBlock uint32) (err error) {
	in, err := e.reserve("CTRStream", len(src), BUFFER_ALIGN)

	if err != nil {
		return
	}
	defer e.release(in)

	out, err := e.reserve("CTRStream", len(dst), BUFFER_ALIGN)

	if err != nil {
		return
	}
	defer e.release(out)

	copy(in.data, src)
	e.write(SE_CRYPTO_LAST_BLOCK, lastBlock)

	if err = e.submit(out, in); err != nil {
		return
	}

	copy(dst, out.data)

	return
}

// UnwrapKey decrypts, with AES-ECB, a wrapped key blob with the key held in
// srcSlot and places the result directly in dstSlot. The unwrapped key
// never leaves the engine.
func (e *Engine) UnwrapKey(dstSlot int, srcSlot int, blob []byte) (err error) {
	if e.fault != nil {
		return e.fault
	}

	if err = e.checkSlot("UnwrapKey", dstSlot); err != nil {
		return
	}

	if err = e.checkSlot("UnwrapKey", srcSlot); err != nil {
		return
	}

	if len(blob) == 0 || len(blob) > MAX_WRAPPED_KEY || len(blob)%aes.BlockSize != 0 {
		return e.halt(SizeFault, "UnwrapKey", "invalid wrapped key size %d", len(blob))
	}

	var dst uint32
	bits.SetN(&dst, KEYTABLE_DST_KEY_INDEX, 0xf, uint32(dstSlot))

	blocks := len(blob) / aes.BlockSize
	e.setup(aesConfig(false, AES128, DST_KEYTABLE), cryptoConfig(false, srcSlot), uint32(blocks-1))
	e.write(SE_CRYPTO_KEYTABLE_DST, dst)

	in, err := e.reserve("UnwrapKey", len(blob), BUFFER_ALIGN)

	if err != nil {
		return
	}
	defer e.release(in)

	copy(in.data, blob)

	return e.submit(nil, in)
}

// CTRDecryptWithWrappedKey unwraps a key, under the device key, in the
// session keyslot and uses it for AES-128-CTR decryption of src into dst.
// The session keyslot is cleared afterwards.
func (e *Engine) CTRDecryptWithWrappedKey(dst []byte, src []byte, wrapped []byte, ctr []byte) (err error) {
	if err = e.UnwrapKey(KEYSLOT_SESSION, KEYSLOT_DEVICE, wrapped); err != nil {
		return
	}

	if err = e.CTRStream(dst, src, KEYSLOT_SESSION, ctr); err != nil {
		return
	}

	return e.ClearKeyslot(KEYSLOT_SESSION)
}

// production master key blobs, wrapped with the device key
var masterKeys = [][]byte{
	{0xf5, 0x89, 0xc4, 0x0c, 0xf1, 0x9d, 0x34, 0x6d, 0x2f, 0xb1, 0x76, 0xc1, 0x8e, 0x2d, 0xf0, 0xf8},
	{0xde, 0xcf, 0xeb, 0xeb, 0x10, 0xae, 0x74, 0xd8, 0xad, 0x7c, 0xf4, 0x9e, 0x62, 0xe0, 0xe8, 0x72},
}

// MasterKeySlot unwraps the master key for a hardware key revision in
// KEYSLOT_MASTER and returns its index. Revisions above 2 have no wrapped
// master key and KEYSLOT_DEVICE is returned instead.
func (e *Engine) MasterKeySlot(revision int) (slot int, err error) {
	blob, ok := MasterKey(revision)

	if !ok {
		return KEYSLOT_DEVICE, nil
	}

	if err = e.UnwrapKey(KEYSLOT_MASTER, KEYSLOT_DEVICE, blob); err != nil {
		return
	}

	return KEYSLOT_MASTER, nil
}

// MasterKey returns the wrapped master key blob selected by a hardware key
// revision, revisions 0 and 1 share the same blob.
func MasterKey(revision int) (blob []byte, ok bool) {
	if revision > 2 || revision < 0 {
		return
	}

	index := 0

	if revision > 0 {
		index = revision - 1
	}

	return append([]byte{}, masterKeys[index]...), true
}
