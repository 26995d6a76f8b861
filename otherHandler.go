//go:build !linux && !darwin

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
	"fmt"
	"time"
)

type port struct{}

func getPortNames() ([]string, error) {
	return nil, nil
}

func openPort(p *port, cfg SerialEndpoint) error {
	return fmt.Errorf("%w: serial transport is not supported on this platform", ErrSystem)
}

func (p *port) isOpen() bool {
	return false
}

func (p *port) close() error {
	return nil
}

func (p *port) poll(timeout time.Duration) (bool, error) {
	return false, fmt.Errorf("%w: serial port not open", ErrSystem)
}

func (p *port) read() ([]byte, error) {
	return nil, fmt.Errorf("%w: serial port not open", ErrSystem)
}

func (p *port) write(data []byte, timeout time.Duration) (int, error) {
	return 0, fmt.Errorf("%w: serial port not open", ErrSystem)
}
