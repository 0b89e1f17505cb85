// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package se

import (
	"encoding/binary"
	"time"

	"github.com/f-secure-foundry/tamago/bits"
)

// LL_ENTRY_SIZE is the size of an encoded DMA linked list entry.
const LL_ENTRY_SIZE = 12

// llEntry represents a single entry DMA linked list, the zero value
// represents an unused buffer.
type llEntry struct {
	Control uint32
	Address uint32
	Size    uint32
}

// Bytes returns the little-endian wire format of the entry.
func (ll *llEntry) Bytes() []byte {
	buf := make([]byte, LL_ENTRY_SIZE)

	binary.LittleEndian.PutUint32(buf[0:], ll.Control)
	binary.LittleEndian.PutUint32(buf[4:], ll.Address)
	binary.LittleEndian.PutUint32(buf[8:], ll.Size)

	return buf
}

func (e *Engine) newEntry(b *buffer) (ll llEntry, err error) {
	if b == nil || len(b.data) == 0 {
		return
	}

	if ll.Address, err = e.translate("ll", b.addr, BUFFER_MASK); err != nil {
		return
	}

	ll.Size = uint32(len(b.data))

	return
}

// place reserves, fills and flushes the DMA memory holding a descriptor,
// returning it along with its translated address.
func (e *Engine) place(ll llEntry) (b *buffer, pa uint32, err error) {
	if b, err = e.reserve("ll", LL_ENTRY_SIZE, LL_ALIGN); err != nil {
		return
	}

	copy(b.data, ll.Bytes())
	e.cache.FlushInvalidate(b.addr, LL_ENTRY_SIZE)

	if pa, err = e.translate("ll", b.addr, LL_MASK); err != nil {
		e.release(b)
		return nil, 0, err
	}

	return
}

func (e *Engine) flush(b *buffer) {
	if b != nil && len(b.data) > 0 {
		e.cache.FlushInvalidate(b.addr, len(b.data))
	}
}

// submit performs a single engine operation, using the previously
// configured registers, over the output and input buffers (either can be
// nil). It busy waits for completion, which is the only suspension point of
// the driver.
func (e *Engine) submit(out *buffer, in *buffer) (err error) {
	if e.fault != nil {
		return e.fault
	}

	inLL, err := e.newEntry(in)

	if err != nil {
		return
	}

	outLL, err := e.newEntry(out)

	if err != nil {
		return
	}

	e.flush(in)
	e.flush(out)

	inDesc, inAddr, err := e.place(inLL)

	if err != nil {
		return
	}
	defer e.release(inDesc)

	outDesc, outAddr, err := e.place(outLL)

	if err != nil {
		return
	}
	defer e.release(outDesc)

	e.cache.Barrier()

	// Descriptors and buffers must reach memory before the engine is
	// triggered, a partial flush leads to corrupted stack contents once
	// the operation completes.
	e.cache.InvalidateAll()

	e.write(SE_IN_LL_ADDR, inAddr)
	e.write(SE_OUT_LL_ADDR, outAddr)

	// clear pending status (write-1-to-clear)
	e.write(SE_ERR_STATUS, e.read(SE_ERR_STATUS))
	e.write(SE_INT_STATUS, e.read(SE_INT_STATUS))

	e.write(SE_OPERATION, OP_START)

	for n := 0; e.get(SE_INT_STATUS, INT_OP_DONE, 1) == 0; n++ {
		if e.pollLimit > 0 && n >= e.pollLimit {
			return e.halt(EngineFault, "submit", "no completion after %d polls", n)
		}

		if e.pollInterval > 0 {
			time.Sleep(e.pollInterval)
		}
	}

	s := Status{
		Int:    e.read(SE_INT_STATUS),
		Engine: e.read(SE_STATUS),
		Err:    e.read(SE_ERR_STATUS),
	}

	if e.faulted(s) {
		return e.halt(EngineFault, "submit", "int:%#x status:%#x err:%#x", s.Int, s.Engine, s.Err)
	}

	// engine output is in memory, stale lines must not be observed
	e.cache.InvalidateAll()
	e.flush(out)

	return
}

// setup programs the operation configuration registers.
func (e *Engine) setup(config uint32, crypto uint32, lastBlock uint32) {
	e.write(SE_CONFIG, config)
	e.write(SE_CRYPTO_CONFIG, crypto)
	e.write(SE_CRYPTO_LAST_BLOCK, lastBlock)
}

func aesConfig(encrypt bool, keySize uint32, dst uint32) (config uint32) {
	bits.SetN(&config, CONFIG_DST, 0b111, dst)

	if encrypt {
		bits.SetN(&config, CONFIG_ENC_ALG, 0xf, ALG_AES_ENC)
		bits.SetN(&config, CONFIG_ENC_MODE, 0xff, keySize)
	} else {
		bits.SetN(&config, CONFIG_DEC_ALG, 0xf, ALG_AES_DEC)
		bits.SetN(&config, CONFIG_DEC_MODE, 0xff, keySize)
	}

	return
}

func cryptoConfig(encrypt bool, slot int) (crypto uint32) {
	if encrypt {
		bits.SetN(&crypto, CRYPTO_CORE_SEL, 1, CORE_ENCRYPT)
	}

	bits.SetN(&crypto, CRYPTO_KEY_INDEX, 0xf, uint32(slot))

	return
}
