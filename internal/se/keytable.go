// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package se

import (
	"encoding/binary"

	"github.com/f-secure-foundry/tamago/bits"
)

// keytableAddr returns the CRYPTO_KEYTABLE_ADDR value selecting a keyslot
// data table row, rows 0-7 hold key words, rows 8-15 the IV banks.
func keytableAddr(slot int, row int) (addr uint32) {
	bits.SetN(&addr, KEYTABLE_SLOT, 0xf, uint32(slot))
	bits.SetN(&addr, KEYTABLE_ROW, 0xf, uint32(row))
	return
}

// ivAddr returns the CRYPTO_KEYTABLE_ADDR value selecting an IV word. Word
// indices are OR-ed with the bank selector, as the hardware does, therefore
// words 4-7 of the original bank alias words 0-3 of the updated one.
func ivAddr(slot int, updated bool, word int) (addr uint32) {
	addr = keytableAddr(slot, word)

	bits.Set(&addr, KEYTABLE_ROW_IV)

	if updated {
		bits.Set(&addr, KEYTABLE_ROW_UPDATED)
	}

	return
}

func (e *Engine) writeKeytable(addr uint32, val uint32) {
	e.write(SE_CRYPTO_KEYTABLE_ADDR, addr)
	e.write(SE_CRYPTO_KEYTABLE_DATA, val)
}

// SetKeyslotWord overwrites a single 32-bit word of a keyslot key, leaving
// the remaining words untouched.
func (e *Engine) SetKeyslotWord(slot int, word int, val uint32) (err error) {
	if e.fault != nil {
		return e.fault
	}

	if err = e.checkSlot("SetKeyslotWord", slot); err != nil {
		return
	}

	if word < 0 || word >= KEY_WORDS {
		return e.halt(SizeFault, "SetKeyslotWord", "invalid key word %d", word)
	}

	e.writeKeytable(keytableAddr(slot, word), val)

	return
}

// SetKeyslot loads a 16 bytes AES key in a keyslot, key words are loaded in
// little-endian order.
func (e *Engine) SetKeyslot(slot int, key []byte) (err error) {
	if e.fault != nil {
		return e.fault
	}

	if err = e.checkSlot("SetKeyslot", slot); err != nil {
		return
	}

	if len(key) != KEY_WORDS*4 {
		return e.halt(SizeFault, "SetKeyslot", "invalid key size %d", len(key))
	}

	for i := 0; i < KEY_WORDS; i++ {
		e.writeKeytable(keytableAddr(slot, i), binary.LittleEndian.Uint32(key[i*4:]))
	}

	return
}

// ClearKeyslot zeroes all data table rows (key and IVs) of a keyslot.
func (e *Engine) ClearKeyslot(slot int) (err error) {
	if e.fault != nil {
		return e.fault
	}

	if err = e.checkSlot("ClearKeyslot", slot); err != nil {
		return
	}

	for row := 0; row < KEYTABLE_ROWS; row++ {
		e.writeKeytable(keytableAddr(slot, row), 0)
	}

	return
}

// SetIV overwrites a single 32-bit word of the original (updated == false)
// or updated IV bank of a keyslot.
func (e *Engine) SetIV(slot int, updated bool, word int, val uint32) (err error) {
	if e.fault != nil {
		return e.fault
	}

	if err = e.checkSlot("SetIV", slot); err != nil {
		return
	}

	if word < 0 || word >= IV_WORDS {
		return e.halt(SizeFault, "SetIV", "invalid IV word %d", word)
	}

	e.writeKeytable(ivAddr(slot, updated, word), val)

	return
}

// ZeroIV clears both IV banks of a keyslot.
func (e *Engine) ZeroIV(slot int) (err error) {
	for _, updated := range []bool{false, true} {
		for word := 0; word < IV_WORDS; word++ {
			if err = e.SetIV(slot, updated, word, 0); err != nil {
				return
			}
		}
	}

	return
}

// SetKeyslotPermissions revokes the keyslot permissions set in perms
// (ACCESS_* bits). When PERM_LOCK is set the keyslot per-key security
// setting is also cleared, this cannot be undone without a reset.
func (e *Engine) SetKeyslotPermissions(slot int, perms uint32) (err error) {
	if e.fault != nil {
		return e.fault
	}

	if err = e.checkSlot("SetKeyslotPermissions", slot); err != nil {
		return
	}

	if perms&^PERM_LOCK != 0 {
		e.write(SE_CRYPTO_KEYTABLE_ACCESS_0+uint32(slot*4), ^perms)
	}

	if perms&PERM_LOCK != 0 {
		perkey := e.read(SE_CRYPTO_SECURITY_PERKEY)
		bits.Clear(&perkey, slot)
		e.write(SE_CRYPTO_SECURITY_PERKEY, perkey)
	}

	return
}

// Lock revokes all keyslot permissions, clears the per-key security
// settings and locks the engine security configuration.
func (e *Engine) Lock() {
	for slot := 0; slot < KEYSLOTS; slot++ {
		e.write(SE_CRYPTO_KEYTABLE_ACCESS_0+uint32(slot*4), 0)
	}

	e.write(SE_CRYPTO_SECURITY_PERKEY, 0)

	ctrl := e.read(SE_SECURITY_CONTROL)
	bits.Clear(&ctrl, SECURITY_PERKEY_SETTING)
	e.write(SE_SECURITY_CONTROL, ctrl)

	e.write(SE_SECURITY_CONTROL, 1<<SECURITY_TZ_LOCK)
}

// SetSecurityState selects the secure (true) or non-secure (false) engine
// soft setting.
func (e *Engine) SetSecurityState(secure bool) {
	ctrl := e.read(SE_SECURITY_CONTROL)

	if secure {
		bits.Clear(&ctrl, SECURITY_SOFT_SETTING)
	} else {
		bits.Set(&ctrl, SECURITY_SOFT_SETTING)
	}

	e.write(SE_SECURITY_CONTROL, ctrl)

	// posted write flush
	e.read(SE_STATUS)
}
