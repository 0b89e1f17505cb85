// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package se

// Security Engine base address
const SE_BASE = 0x03ac0000

// Security Engine registers
const (
	SE_SECURITY_CONTROL     = 0x000
	SECURITY_TZ_LOCK        = 1
	SECURITY_PERKEY_SETTING = 2
	SECURITY_SOFT_SETTING   = 16

	SE_INT_ENABLE = 0x00c

	SE_INT_STATUS = 0x010
	INT_OP_DONE   = 4
	INT_ERR       = 16

	SE_CONFIG       = 0x014
	CONFIG_DST      = 2
	CONFIG_DEC_ALG  = 8
	CONFIG_ENC_ALG  = 12
	CONFIG_DEC_MODE = 16
	CONFIG_ENC_MODE = 24

	SE_IN_LL_ADDR  = 0x018
	SE_OUT_LL_ADDR = 0x024

	SE_OPERATION = 0x008
	OP_START     = 1

	SE_CRYPTO_CONFIG  = 0x204
	CRYPTO_XOR_POS    = 1
	CRYPTO_INPUT_SEL  = 3
	CRYPTO_VCTRAM_SEL = 5
	CRYPTO_IV_SELECT  = 7
	CRYPTO_CORE_SEL   = 8
	CRYPTO_CTR_CNTN   = 11
	CRYPTO_KEY_INDEX  = 24

	SE_CRYPTO_LINEAR_CTR_0 = 0x208
	SE_CRYPTO_LAST_BLOCK   = 0x218

	SE_CRYPTO_KEYTABLE_DST = 0x21c
	KEYTABLE_DST_WORD_QUAD = 0
	KEYTABLE_DST_KEY_INDEX = 8

	SE_CRYPTO_SECURITY_PERKEY   = 0x260
	SE_CRYPTO_KEYTABLE_ACCESS_0 = 0x264

	SE_CRYPTO_KEYTABLE_ADDR = 0x2bc
	KEYTABLE_ROW            = 0
	KEYTABLE_SLOT           = 4
	KEYTABLE_ROW_IV         = 3
	KEYTABLE_ROW_UPDATED    = 2

	SE_CRYPTO_KEYTABLE_DATA = 0x2c0

	SE_ERR_STATUS  = 0x2ec
	SE_STATUS      = 0x2f0
	STATUS_STATE   = 0
	SE_AES0_STATUS = 0x2f8
	SE_SPARE       = 0x2fc
)

// CONFIG_DST values
const (
	DST_MEMORY   = 0
	DST_HASH_REG = 1
	DST_KEYTABLE = 2
)

// CONFIG_ENC_ALG/CONFIG_DEC_ALG values
const (
	ALG_NOP     = 0
	ALG_AES_ENC = 1
	ALG_AES_DEC = 1
	ALG_RNG     = 2
	ALG_SHA     = 3
)

// CONFIG_ENC_MODE/CONFIG_DEC_MODE AES key sizes
const (
	AES128 = 0
	AES192 = 1
	AES256 = 2
)

// CRYPTO_XOR_POS values
const (
	XOR_BYPASS = 0
	XOR_TOP    = 2
	XOR_BOTTOM = 3
)

// CRYPTO_INPUT_SEL values
const (
	INPUT_MEMORY     = 0
	INPUT_RANDOM     = 1
	INPUT_AESOUT     = 2
	INPUT_LINEAR_CTR = 3
)

// CRYPTO_CORE_SEL values
const (
	CORE_DECRYPT = 0
	CORE_ENCRYPT = 1
)

// CRYPTO_KEYTABLE_ACCESS bits, a cleared bit revokes the permission.
const (
	ACCESS_KEYREAD   = 0
	ACCESS_KEYUPDATE = 1
	ACCESS_OIVREAD   = 2
	ACCESS_OIVUPDATE = 3
	ACCESS_UIVREAD   = 4
	ACCESS_UIVUPDATE = 5
	ACCESS_KEYUSE    = 6
	ACCESS_ALL       = 0x7f

	// PERM_LOCK requests clearing the per-key security enable, it is
	// not a KEYTABLE_ACCESS bit.
	PERM_LOCK = 0x80
)

const (
	// KEYSLOTS is the number of AES keyslots.
	KEYSLOTS = 16
	// KEY_WORDS is the number of 32-bit words in an AES-128 key.
	KEY_WORDS = 4
	// IV_WORDS is the number of addressable words per IV bank.
	IV_WORDS = 8
	// KEYTABLE_ROWS is the number of data table rows per keyslot.
	KEYTABLE_ROWS = 16

	// MAX_WRAPPED_KEY is the largest blob accepted by UnwrapKey.
	MAX_WRAPPED_KEY = 32

	// BUFFER_ALIGN is the alignment required for data buffers.
	BUFFER_ALIGN = 64
	// LL_ALIGN is the alignment required for DMA descriptors.
	LL_ALIGN = 8

	// BUFFER_MASK selects the untranslated low bits of a buffer address.
	BUFFER_MASK = 0xfff
	// LL_MASK selects the untranslated low bits of a descriptor address.
	LL_MASK = 0xff8
)

// Keyslot assignments
const (
	// KEYSLOT_SESSION holds keys unwrapped for a single operation.
	KEYSLOT_SESSION = 8
	// KEYSLOT_MASTER holds the master key resolved by MasterKeySlot.
	KEYSLOT_MASTER = 9
	// KEYSLOT_DEVICE holds the device unique key, provisioned by the
	// boot ROM and never readable.
	KEYSLOT_DEVICE = 12
)
