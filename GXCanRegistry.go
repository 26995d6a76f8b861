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
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Gurux/gxcommon-go"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/time/rate"
)

// ModuleID identifies a module inside a Registry.
type ModuleID uint8

// Registry defaults.
const (
	DefaultCapacity      = 8
	DefaultPollTimeout   = 10 * time.Millisecond
	DefaultIdleInterval  = 10 * time.Millisecond
	DefaultAnswerTimeout = 100 * time.Millisecond

	maxCapacity = 256
)

// ModuleInfo is a snapshot of the module state.
type ModuleInfo struct {
	ID                   ModuleID `json:"id"`
	Mode                 string   `json:"mode"`
	Transport            string   `json:"transport,omitempty"`
	Endpoint             string   `json:"endpoint,omitempty"`
	Initialized          bool     `json:"initialized"`
	Stopped              bool     `json:"stopped"`
	ReceiveThreadRunning bool     `json:"receiveThreadRunning"`
	SessionID            uint32   `json:"sessionId"`
	LastError            string   `json:"lastError,omitempty"`
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger. Default is no logging.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// WithTraceLevel sets which traces are written to the logger.
func WithTraceLevel(level gxcommon.TraceLevel) Option {
	return func(r *Registry) { r.traceLevel = level }
}

// WithMetrics sets the collectors updated by the modules.
func WithMetrics(m *Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// WithPollTimeout sets how long the receive thread waits for data at a time.
func WithPollTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.pollTimeout = d
		}
	}
}

// WithIdleInterval sets how long the receive thread sleeps when nothing was received.
func WithIdleInterval(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.idleInterval = d
		}
	}
}

// WithAnswerTimeout sets how long a serial device answer is waited.
func WithAnswerTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.answerTimeout = d
		}
	}
}

// WithSendRate limits sent frames per second for every module.
func WithSendRate(framesPerSecond float64, burst int) Option {
	return func(r *Registry) {
		if framesPerSecond > 0 {
			r.sendLimit = rate.Limit(framesPerSecond)
			r.sendBurst = max(burst, 1)
		}
	}
}

// Registry owns a fixed number of module slots.
type Registry struct {
	mu    sync.RWMutex
	slots []*module

	logger        *zap.Logger
	traceLevel    gxcommon.TraceLevel
	tracer        *tracer
	metrics       *Metrics
	pollTimeout   time.Duration
	idleInterval  time.Duration
	answerTimeout time.Duration
	sendLimit     rate.Limit
	sendBurst     int
	p             atomic.Pointer[message.Printer]
	newSessionID  func() uint32
}

// NewRegistry returns a registry with room for capacity modules.
// Zero or negative capacity uses DefaultCapacity.
func NewRegistry(capacity int, opts ...Option) *Registry {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if capacity > maxCapacity {
		capacity = maxCapacity
	}
	r := &Registry{
		slots:         make([]*module, capacity),
		pollTimeout:   DefaultPollTimeout,
		idleInterval:  DefaultIdleInterval,
		answerTimeout: DefaultAnswerTimeout,
		newSessionID:  newSessionID,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.tracer = newTracer(r.logger, r.traceLevel)
	r.Localize(language.AmericanEnglish)
	return r
}

// newSessionID returns a random, non-zero session ID.
func newSessionID() uint32 {
	for {
		if id := uuid.New().ID(); id != 0 {
			return id
		}
	}
}

// Localize messages for the specified language.
// No errors is returned if language is not supported.
func (r *Registry) Localize(tag language.Tag) {
	r.p.Store(message.NewPrinter(tag))
}

func (r *Registry) printer() *message.Printer {
	return r.p.Load()
}

// Capacity returns the number of module slots.
func (r *Registry) Capacity() int {
	return len(r.slots)
}

func (r *Registry) lookup(op string, id ModuleID) (*module, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.slots) || r.slots[id] == nil {
		return nil, newError(op, id, ErrInvalidModule, nil)
	}
	return r.slots[id], nil
}

// CreateModule reserves the first free module slot.
func (r *Registry) CreateModule() (ModuleID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, m := range r.slots {
		if m == nil {
			id := ModuleID(i)
			r.slots[i] = newModule(r, id)
			return id, nil
		}
	}
	return 0, opError("create", ErrNoFreeSlot, fmt.Errorf("all %d slots are in use", len(r.slots)))
}

// Init opens the transport selected by the endpoint.
func (r *Registry) Init(id ModuleID, mode Mode, endpoint Endpoint) error {
	m, err := r.lookup("init", id)
	if err != nil {
		return err
	}
	return m.init(mode, endpoint)
}

// IsInitialized returns true if the transport of the module is open.
func (r *Registry) IsInitialized(id ModuleID) (bool, error) {
	m, err := r.lookup("is initialized", id)
	if err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initialized, nil
}

// Stop pauses the module. The transport is kept open.
func (r *Registry) Stop(id ModuleID) error {
	m, err := r.lookup("stop", id)
	if err != nil {
		return err
	}
	return m.setStopped("stop", true)
}

// Restart resumes a stopped module.
func (r *Registry) Restart(id ModuleID) error {
	m, err := r.lookup("restart", id)
	if err != nil {
		return err
	}
	return m.setStopped("restart", false)
}

// IsStopped returns true if the module is stopped.
func (r *Registry) IsStopped(id ModuleID) (bool, error) {
	m, err := r.lookup("is stopped", id)
	if err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped, nil
}

// Reset closes the transport and initializes the module again with the
// same endpoint.
func (r *Registry) Reset(id ModuleID, mode Mode) error {
	m, err := r.lookup("reset", id)
	if err != nil {
		return err
	}
	return m.reset(mode)
}

// Destroy closes the module if needed and frees the slot.
func (r *Registry) Destroy(id ModuleID) error {
	m, err := r.lookup("destroy", id)
	if err != nil {
		return err
	}
	err = m.close("destroy")
	if errors.Is(err, ErrNotInitialized) {
		err = nil
	}
	r.mu.Lock()
	if r.slots[id] == m {
		r.slots[id] = nil
	}
	r.mu.Unlock()
	return err
}

// Close destroys all modules.
func (r *Registry) Close() error {
	var errs []error
	for i := range r.slots {
		id := ModuleID(i)
		if _, err := r.lookup("destroy", id); err != nil {
			continue
		}
		if err := r.Destroy(id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Mode returns the mode given in Init.
func (r *Registry) Mode(id ModuleID) (Mode, error) {
	m, err := r.lookup("mode", id)
	if err != nil {
		return ModeUnknown, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode, nil
}

// SessionID returns the session ID stamped on sent UDP datagrams.
func (r *Registry) SessionID(id ModuleID) (uint32, error) {
	m, err := r.lookup("session id", id)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return 0, newError("session id", id, ErrNotInitialized, nil)
	}
	return m.sessionID, nil
}

// Endpoint returns the endpoint given in Init.
func (r *Registry) Endpoint(id ModuleID) (Endpoint, error) {
	m, err := r.lookup("endpoint", id)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.endpoint, nil
}

// Modules returns a snapshot of all created modules.
func (r *Registry) Modules() []ModuleInfo {
	r.mu.RLock()
	modules := make([]*module, 0, len(r.slots))
	for _, m := range r.slots {
		if m != nil {
			modules = append(modules, m)
		}
	}
	r.mu.RUnlock()
	ret := make([]ModuleInfo, 0, len(modules))
	for _, m := range modules {
		ret = append(ret, m.info())
	}
	return ret
}

// Send sends a frame built from the given fields.
func (r *Registry) Send(id ModuleID, canID uint32, size uint8, data []byte, flags uint32) error {
	m, err := r.lookup("send", id)
	if err != nil {
		return err
	}
	f, err := NewFrame(canID, size, data, flags)
	if err != nil {
		return newError("send", id, ErrArgument, err)
	}
	return m.send(context.Background(), f)
}

// SendFrame sends a frame.
func (r *Registry) SendFrame(id ModuleID, f Frame) error {
	return r.SendContext(context.Background(), id, f)
}

// SendContext sends a frame. The context cancels waiting for the send rate limit.
func (r *Registry) SendContext(ctx context.Context, id ModuleID, f Frame) error {
	m, err := r.lookup("send", id)
	if err != nil {
		return err
	}
	return m.send(ctx, f)
}

// Recv returns the next received frame without waiting. False is returned
// when no frame is waiting.
func (r *Registry) Recv(id ModuleID) (Frame, bool, error) {
	m, err := r.lookup("recv", id)
	if err != nil {
		return Frame{}, false, err
	}
	return m.recv()
}

// SendCommand writes a CANUSB command and returns the device answer
// without the trailing CR.
func (r *Registry) SendCommand(id ModuleID, cmd string) (string, error) {
	m, err := r.lookup("command", id)
	if err != nil {
		return "", err
	}
	return m.command(cmd)
}

// information sends an information command and returns the answer
// without the echoed command letter.
func (r *Registry) information(id ModuleID, cmd string) (string, error) {
	ret, err := r.SendCommand(id, cmd)
	if err != nil {
		return "", err
	}
	if len(ret) < 2 {
		return "", newError("command", id, ErrUnexpectedAnswer, fmt.Errorf("answer %q to %q", ret, cmd[:1]))
	}
	return ret[1:], nil
}

// SerialNumber returns the serial number of the CANUSB device.
func (r *Registry) SerialNumber(id ModuleID) (string, error) {
	return r.information(id, CmdSerialNumber)
}

// Version returns the hardware and software version of the CANUSB device.
func (r *Registry) Version(id ModuleID) (string, error) {
	return r.information(id, CmdVersion)
}

// StatusFlags returns the status flags of the CANUSB device.
func (r *Registry) StatusFlags(id ModuleID) (uint8, error) {
	ret, err := r.information(id, CmdStatusFlags)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(ret, 16, 8)
	if err != nil {
		return 0, newError("status flags", id, ErrUnexpectedAnswer, err)
	}
	return uint8(v), nil
}

// GetPortNames returns the serial ports of the host.
func GetPortNames() ([]string, error) {
	return getPortNames()
}
