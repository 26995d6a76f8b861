// Package capture stores forwarded CAN frames as a sequence of CBOR records.
package capture

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
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/Gurux/gxcan-go"
)

// Directions of forwarded frames.
const (
	SerialToUDP = "serial>udp"
	UDPToSerial = "udp>serial"
)

// Record is one captured frame.
type Record struct {
	Time   time.Time `cbor:"t" yaml:"t"`
	Dir    string    `cbor:"dir" yaml:"dir"`
	Module uint8     `cbor:"module" yaml:"module"`
	ID     uint32    `cbor:"id" yaml:"id"`
	Size   uint8     `cbor:"size" yaml:"size"`
	Data   []byte    `cbor:"data,omitempty" yaml:"data,omitempty"`
	Flags  uint32    `cbor:"flags" yaml:"flags"`
}

// NewRecord returns the record of a frame received by module.
func NewRecord(t time.Time, dir string, module gxcan.ModuleID, f gxcan.Frame) Record {
	return Record{
		Time:   t,
		Dir:    dir,
		Module: uint8(module),
		ID:     f.ID,
		Size:   f.Size,
		Data:   append([]byte(nil), f.Payload()...),
		Flags:  f.Flags,
	}
}

// Frame returns the captured frame.
func (r Record) Frame() (gxcan.Frame, error) {
	return gxcan.NewFrame(r.ID, r.Size, r.Data, r.Flags)
}

var encMode = func() cbor.EncMode {
	em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// Writer appends records to a stream. It is safe for concurrent use.
type Writer struct {
	mu  sync.Mutex
	w   *bufio.Writer
	enc *cbor.Encoder
	c   io.Closer
}

// NewWriter returns a writer for w.
func NewWriter(w io.Writer) *Writer {
	bw := bufio.NewWriter(w)
	ret := &Writer{w: bw, enc: encMode.NewEncoder(bw)}
	if c, ok := w.(io.Closer); ok {
		ret.c = c
	}
	return ret
}

// Create opens the file for appending records. Missing directories are created.
func Create(path string) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create capture directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open capture file: %w", err)
	}
	return NewWriter(f), nil
}

// Write appends one record and flushes it.
func (w *Writer) Write(r Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(r); err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	return w.w.Flush()
}

// Close flushes buffered data and closes the underlying file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	err := w.w.Flush()
	if w.c != nil {
		err = errors.Join(err, w.c.Close())
		w.c = nil
	}
	return err
}

// Reader reads records written by Writer.
type Reader struct {
	dec *cbor.Decoder
	c   io.Closer
}

// NewReader returns a reader for r.
func NewReader(r io.Reader) *Reader {
	ret := &Reader{dec: cbor.NewDecoder(bufio.NewReader(r))}
	if c, ok := r.(io.Closer); ok {
		ret.c = c
	}
	return ret
}

// Open opens a capture file.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open capture file: %w", err)
	}
	return NewReader(f), nil
}

// Next returns the next record. io.EOF is returned at the end of the stream.
func (r *Reader) Next() (Record, error) {
	var ret Record
	if err := r.dec.Decode(&ret); err != nil {
		if errors.Is(err, io.EOF) {
			return ret, io.EOF
		}
		return ret, fmt.Errorf("decode record: %w", err)
	}
	return ret, nil
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	if r.c == nil {
		return nil
	}
	err := r.c.Close()
	r.c = nil
	return err
}
