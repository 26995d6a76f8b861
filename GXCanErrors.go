package gxcan

// --------------------------------------------------------------------------
//
//	Gurux Ltd
//
// Filename:        $HeadURL$
//
// Version:         $Revision$,
//
//	$Date$
//	$Author$
//
// # Copyright (c) Gurux Ltd
//
// ---------------------------------------------------------------------------
//
//	DESCRIPTION
//
// This file is a part of Gurux Device Framework.
//
// Gurux Device Framework is Open Source software; you can redistribute it
// and/or modify it under the terms of the GNU General Public License
// as published by the Free Software Foundation; version 2 of the License.
// Gurux Device Framework is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU General Public License for more details.
//
// More information of Gurux products: https://www.gurux.org
//
// This code is licensed under the GNU General Public License v2.
// Full text may be retrieved at http://www.gnu.org/licenses/gpl-2.0.txt
// ---------------------------------------------------------------------------

import (
	"errors"
	"fmt"
)

// Error kinds. Use errors.Is to test the kind of a returned error.
var (
	ErrArgument           = errors.New("gxcan: invalid argument")
	ErrSystem             = errors.New("gxcan: system error")
	ErrNetwork            = errors.New("gxcan: network error")
	ErrAlreadyInitialized = errors.New("gxcan: module already initialized")
	ErrNotInitialized     = errors.New("gxcan: module not initialized")
	ErrStopped            = errors.New("gxcan: module stopped")
	ErrConfig             = errors.New("gxcan: configuration error")
	ErrProtocol           = errors.New("gxcan: protocol error")
	ErrTransport          = errors.New("gxcan: transport error")
	ErrNoFreeSlot         = errors.New("gxcan: no free module slot")
)

// Derived errors.
var (
	ErrInvalidModule    = fmt.Errorf("%w: unknown module", ErrArgument)
	ErrUnknownCommand   = fmt.Errorf("%w: unknown command from device", ErrProtocol)
	ErrTruncated        = fmt.Errorf("%w: data buffer too small", ErrProtocol)
	ErrDeviceBell       = fmt.Errorf("%w: device answered BELL (%w)", ErrNetwork, ErrProtocol)
	ErrUnexpectedAnswer = fmt.Errorf("%w: unknown answer from device (%w)", ErrNetwork, ErrProtocol)
	ErrNoAnswer         = fmt.Errorf("%w: device failed to answer", ErrNetwork)
	ErrUnsupported      = fmt.Errorf("%w: not supported by this transport", ErrConfig)
	ErrAlreadyRunning   = fmt.Errorf("%w: receive thread already running", ErrConfig)
)

// Error describes a failed operation on a module.
type Error struct {
	// Op is the failed operation, for example "init" or "send".
	Op string
	// Module is the module id, or -1 when the error is not bound to a module.
	Module int
	// Kind is one of the package error kinds.
	Kind error
	// Err is the underlying cause. It may be nil.
	Err error
}

func (e *Error) Error() string {
	var s string
	if e.Module < 0 {
		s = fmt.Sprintf("gxcan: %s", e.Op)
	} else {
		s = fmt.Sprintf("gxcan: %s module %d", e.Op, e.Module)
	}
	switch {
	case e.Err != nil && e.Kind != nil && !errors.Is(e.Err, e.Kind):
		return fmt.Sprintf("%s: %v: %v", s, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", s, e.Err)
	case e.Kind != nil:
		return fmt.Sprintf("%s: %v", s, e.Kind)
	}
	return s
}

// Unwrap returns both the error kind and the cause.
func (e *Error) Unwrap() []error {
	ret := make([]error, 0, 2)
	if e.Kind != nil {
		ret = append(ret, e.Kind)
	}
	if e.Err != nil {
		ret = append(ret, e.Err)
	}
	return ret
}

func newError(op string, id ModuleID, kind, err error) error {
	return &Error{Op: op, Module: int(id), Kind: kind, Err: err}
}

// opError is used for errors that are not bound to a module.
func opError(op string, kind, err error) error {
	return &Error{Op: op, Module: -1, Kind: kind, Err: err}
}
