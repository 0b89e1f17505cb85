// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package main

const usage = `Usage: se-recover [OPTIONS]
  -h    show this help

  -i string
        vectors dump (output of 'fastboot oem se-dump-vectors')
  -o string
        YAML report path (default "se-recover.yaml")
  -s int
        keyslot index within the dump (default -1, all keyslots)
  -w int
        parallel workers (default: number of CPUs)
  -start uint
        first candidate key word
  -end uint
        candidate key word limit, exclusive (default 0x100000000)
`

const welcome = `
Security Engine keyslot recovery

Each keyslot key is recovered one 32-bit word at a time from its truncation
depth vectors, this can take a long time for full range searches.`
