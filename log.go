// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && arm64
// +build tamago,arm64

package main

import (
	"fmt"
	"log"
)

// initialized at compile time (see Makefile)
var Build string
var Revision string

func init() {
	log.SetFlags(0)
}

func version() string {
	return fmt.Sprintf("fastbooted %s (%s)", Revision, Build)
}
