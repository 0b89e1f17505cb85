// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package se

import (
	"errors"
	"fmt"
)

// FaultKind classifies unrecoverable Security Engine driver faults.
type FaultKind int

const (
	// AlignmentFault signals a descriptor or buffer failing its address
	// mask check.
	AlignmentFault FaultKind = iota
	// SizeFault signals a length, keyslot or word index outside the
	// range accepted by an operation.
	SizeFault
	// EngineFault signals hardware reported errors after completion.
	EngineFault
	// TranslationFault signals a virtual address without a valid
	// physical mapping.
	TranslationFault
)

func (k FaultKind) String() string {
	switch k {
	case AlignmentFault:
		return "alignment fault"
	case SizeFault:
		return "size fault"
	case EngineFault:
		return "engine fault"
	case TranslationFault:
		return "translation fault"
	default:
		return fmt.Sprintf("fault %d", int(k))
	}
}

// Fault is returned by every failing driver operation. Faults are fatal: the
// engine latches the first one and refuses any further operation, only an
// external reset makes it usable again.
type Fault struct {
	Kind FaultKind
	Op   string
	Msg  string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("se: %s: %s, %s", f.Op, f.Kind, f.Msg)
}

// IsFatal returns whether err carries a driver Fault.
func IsFatal(err error) bool {
	var f *Fault
	return errors.As(err, &f)
}

// FaultOf returns the kind of the driver Fault carried by err, if any.
func FaultOf(err error) (kind FaultKind, ok bool) {
	var f *Fault

	if !errors.As(err, &f) {
		return
	}

	return f.Kind, true
}
