// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sim

import (
	"crypto/aes"
	"encoding/binary"
	"sync"

	"github.com/f-secure-foundry/tamago/bits"
)

// register offsets, as documented in the technical reference manual
const (
	opReg          = 0x008
	intStatus      = 0x010
	configReg      = 0x014
	inLL           = 0x018
	outLL          = 0x024
	cryptoConfig   = 0x204
	linearCtr      = 0x208
	lastBlock      = 0x218
	keytableDst    = 0x21c
	perkeyReg      = 0x260
	access0        = 0x264
	keytableAddr   = 0x2bc
	keytableData   = 0x2c0
	errStatus      = 0x2ec
	statusReg      = 0x2f0
	registerWindow = 0x1000
)

const (
	intOpDone = 1 << 4
	intErr    = 1 << 16

	accessKeyUpdate = 1 << 1
	accessOIVUpdate = 1 << 3
	accessUIVUpdate = 1 << 5
	accessKeyUse    = 1 << 6
	accessAll       = 0x7f

	dstMemory   = 0
	dstKeytable = 2

	inputMemory    = 0
	inputLinearCtr = 3

	algAES = 1
	aes128 = 0
)

// error codes latched in the error status register
const (
	ErrDescriptor = 1 << iota
	ErrAlgorithm
	ErrPermission
	ErrLength
)

// Engine models the Security Engine registers, keytable and AES datapath
// over simulated physical memory. It implements reg.Bus.
type Engine struct {
	sync.Mutex

	// Base is the register window base address.
	Base uint64

	// Hang causes started operations to never complete.
	Hang bool

	// Ops counts started operations.
	Ops int

	mem  *Memory
	regs map[uint32]uint32

	keytable [16][16]uint32
	access   [16]uint32
	perkey   uint32
}

// NewEngine returns a reset engine, with all keyslots zeroed and all
// permissions granted, performing DMA over mem.
func NewEngine(base uint64, mem *Memory) *Engine {
	e := &Engine{
		Base:   base,
		mem:    mem,
		regs:   make(map[uint32]uint32),
		perkey: 0xffff,
	}

	for i := range e.access {
		e.access[i] = accessAll
	}

	return e
}

func (e *Engine) offset(addr uint64) (off uint32, ok bool) {
	if addr < e.Base || addr >= e.Base+registerWindow || addr%4 != 0 {
		return
	}

	return uint32(addr - e.Base), true
}

// Read implements reg.Bus.
func (e *Engine) Read(addr uint64) uint32 {
	e.Lock()
	defer e.Unlock()

	off, ok := e.offset(addr)

	if !ok {
		return 0
	}

	switch {
	case off == perkeyReg:
		return e.perkey
	case off >= access0 && off < access0+16*4:
		return e.access[(off-access0)/4]
	case off == keytableData:
		// keys and IVs are write-only
		return 0
	}

	return e.regs[off]
}

// Write implements reg.Bus.
func (e *Engine) Write(addr uint64, val uint32) {
	e.Lock()
	defer e.Unlock()

	off, ok := e.offset(addr)

	if !ok {
		return
	}

	switch {
	case off == intStatus || off == errStatus:
		e.regs[off] &^= val
	case off == perkeyReg:
		e.perkey &= val
	case off >= access0 && off < access0+16*4:
		e.access[(off-access0)/4] &= val & accessAll
	case off == keytableData:
		e.writeKeytable(e.regs[keytableAddr], val)
	case off == opReg:
		if val&1 != 0 {
			e.start()
		}
	default:
		e.regs[off] = val
	}
}

func (e *Engine) writeKeytable(addr uint32, val uint32) {
	slot := bits.Get(&addr, 4, 0xf)
	row := bits.Get(&addr, 0, 0xf)

	var perm uint32

	switch {
	case row < 8:
		perm = accessKeyUpdate
	case row < 12:
		perm = accessOIVUpdate
	default:
		perm = accessUIVUpdate
	}

	if e.access[slot]&perm == 0 {
		return
	}

	e.keytable[slot][row] = val
}

// Key returns the first 16 bytes of a keyslot key.
func (e *Engine) Key(slot int) []byte {
	e.Lock()
	defer e.Unlock()

	return e.key(slot)
}

// Row returns a single keyslot data table row.
func (e *Engine) Row(slot int, row int) uint32 {
	e.Lock()
	defer e.Unlock()

	return e.keytable[slot][row]
}

// Access returns the current keyslot permissions.
func (e *Engine) Access(slot int) uint32 {
	e.Lock()
	defer e.Unlock()

	return e.access[slot]
}

// Register returns the raw value of a plain register.
func (e *Engine) Register(off uint32) uint32 {
	e.Lock()
	defer e.Unlock()

	return e.regs[off]
}

func (e *Engine) key(slot int) []byte {
	key := make([]byte, 16)

	for i := 0; i < 4; i++ {
		binary.LittleEndian.PutUint32(key[i*4:], e.keytable[slot][i])
	}

	return key
}

func (e *Engine) fail(code uint32) {
	e.regs[errStatus] |= code
	e.regs[intStatus] |= intErr | intOpDone
}

func (e *Engine) descriptor(pa uint32) (addr uint32, size uint32, ok bool) {
	buf, ok := e.mem.ReadPhys(uint64(pa), 12)

	if !ok {
		return
	}

	return binary.LittleEndian.Uint32(buf[4:]), binary.LittleEndian.Uint32(buf[8:]), true
}

func (e *Engine) start() {
	e.Ops++

	if e.Hang {
		return
	}

	config := e.regs[configReg]
	crypto := e.regs[cryptoConfig]

	encrypt := bits.Get(&crypto, 8, 1) == 1
	alg, mode := bits.Get(&config, 8, 0xf), bits.Get(&config, 16, 0xff)

	if encrypt {
		alg, mode = bits.Get(&config, 12, 0xf), bits.Get(&config, 24, 0xff)
	}

	if alg != algAES || mode != aes128 {
		e.fail(ErrAlgorithm)
		return
	}

	slot := int(bits.Get(&crypto, 24, 0xf))

	if e.access[slot]&accessKeyUse == 0 {
		e.fail(ErrPermission)
		return
	}

	blocks := int(e.regs[lastBlock]) + 1
	n := blocks * aes.BlockSize

	inAddr, inSize, ok := e.descriptor(e.regs[inLL])

	if !ok || int(inSize) < n {
		e.fail(ErrDescriptor)
		return
	}

	in, ok := e.mem.ReadPhys(uint64(inAddr), n)

	if !ok {
		e.fail(ErrDescriptor)
		return
	}

	block, _ := aes.NewCipher(e.key(slot))
	out := make([]byte, n)

	switch bits.Get(&crypto, 3, 0b11) {
	case inputLinearCtr:
		var ctr, ks [16]byte

		for i := 0; i < 4; i++ {
			binary.LittleEndian.PutUint32(ctr[i*4:], e.regs[linearCtr+uint32(i*4)])
		}

		for off := 0; off < n; off += aes.BlockSize {
			block.Encrypt(ks[:], ctr[:])

			for i := 0; i < aes.BlockSize; i++ {
				out[off+i] = in[off+i] ^ ks[i]
			}

			increment(ctr[:])
		}

		for i := 0; i < 4; i++ {
			e.regs[linearCtr+uint32(i*4)] = binary.LittleEndian.Uint32(ctr[i*4:])
		}
	case inputMemory:
		for off := 0; off < n; off += aes.BlockSize {
			if encrypt {
				block.Encrypt(out[off:], in[off:])
			} else {
				block.Decrypt(out[off:], in[off:])
			}
		}
	default:
		e.fail(ErrAlgorithm)
		return
	}

	switch bits.Get(&config, 2, 0b111) {
	case dstMemory:
		outAddr, outSize, ok := e.descriptor(e.regs[outLL])

		if !ok || int(outSize) < n || !e.mem.WritePhys(uint64(outAddr), out) {
			e.fail(ErrDescriptor)
			return
		}
	case dstKeytable:
		dstReg := e.regs[keytableDst]
		dst := bits.Get(&dstReg, 8, 0xf)

		if n > 32 {
			e.fail(ErrLength)
			return
		}

		if e.access[dst]&accessKeyUpdate == 0 {
			e.fail(ErrPermission)
			return
		}

		for i := 0; i < n/4; i++ {
			e.keytable[dst][i] = binary.LittleEndian.Uint32(out[i*4:])
		}
	default:
		e.fail(ErrAlgorithm)
		return
	}

	e.regs[intStatus] |= intOpDone
}

// increment adds one to a big-endian 128-bit counter.
func increment(ctr []byte) {
	for i := len(ctr) - 1; i >= 0; i-- {
		ctr[i]++

		if ctr[i] != 0 {
			return
		}
	}
}
