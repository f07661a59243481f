/*
 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at

     https://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

// Package unidig drives Greenspring IP-Unidig and Systran DIO316I digital
// I/O industry-pack modules: bit I/O, edge interrupts with per-bit rising and
// falling selection, and fan-out of bit changes to registered clients.
package unidig

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"jinr.ru/greenlab/go-unidig/pkg/carrier"
	"jinr.ru/greenlab/go-unidig/pkg/log"
)

const (
	DefaultPollInterval = 100 * time.Millisecond
	// DefaultEventQueueSize bounds interrupt events waiting for the poller
	DefaultEventQueueSize = 64
)

type options struct {
	pollInterval  time.Duration
	intVec        uint8
	rising        uint32
	falling       uint32
	signalMask    uint32
	signalMaskSet bool
	maxClients    int
	queueSize     int
}

type Option func(*options)

// WithPollInterval sets the maximum time between two input reads.
// Non-positive values select DefaultPollInterval.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		o.pollInterval = d
	}
}

// WithInterruptVector enables interrupts on capable modules. Zero leaves them off.
func WithInterruptVector(vec uint8) Option {
	return func(o *options) {
		o.intVec = vec
	}
}

func WithRisingMask(mask uint32) Option {
	return func(o *options) {
		o.rising = mask
	}
}

func WithFallingMask(mask uint32) Option {
	return func(o *options) {
		o.falling = mask
	}
}

// WithSignalMask selects the interrupt bits whose input snapshot wakes the
// on-change dispatch. Defaults to rising|falling.
func WithSignalMask(mask uint32) Option {
	return func(o *options) {
		o.signalMask = mask
		o.signalMaskSet = true
	}
}

// WithMaxClients bounds the number of registrations. Zero means unbounded,
// values below MinMaxClients are raised to it.
func WithMaxClients(n int) Option {
	return func(o *options) {
		o.maxClients = n
	}
}

func WithEventQueueSize(n int) Option {
	return func(o *options) {
		o.queueSize = n
	}
}

type interruptEvent struct {
	pending uint32
	inputs  uint32
}

// Device is one IP-Unidig module. All register access is serialized by mu.
type Device struct {
	name   string
	module carrier.Module
	model  *Model

	pollInterval time.Duration
	intVec       uint8
	interrupts   bool

	mu         sync.Mutex
	rising     uint32
	falling    uint32
	polarity   uint32
	signalMask uint32
	bits       uint32
	oldBits    uint32
	force      bool
	// fresh is set when the interrupt handler stored bits since the last cycle
	fresh bool

	rebooting atomic.Bool
	drops     atomic.Uint64
	wake      chan struct{}
	events    chan interruptEvent
	clients   *registry
}

// New identifies the module, applies its model setup and, when an interrupt
// vector is given and the model supports it, connects the interrupt handler.
func New(name string, module carrier.Module, opts ...Option) (*Device, error) {
	o := &options{
		pollInterval: DefaultPollInterval,
		queueSize:    DefaultEventQueueSize,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.pollInterval <= 0 {
		o.pollInterval = DefaultPollInterval
	}
	if o.queueSize <= 0 {
		o.queueSize = DefaultEventQueueSize
	}
	if !o.signalMaskSet {
		o.signalMask = o.rising | o.falling
	}

	model, err := LookupModel(module.Manufacturer(), module.Model())
	if err != nil {
		return nil, err
	}

	d := &Device{
		name:         name,
		module:       module,
		model:        model,
		pollInterval: o.pollInterval,
		intVec:       o.intVec,
		rising:       o.rising,
		falling:      o.falling,
		polarity:     o.rising,
		signalMask:   o.signalMask,
		wake:         make(chan struct{}, 1),
		events:       make(chan interruptEvent, o.queueSize),
		clients:      newRegistry(o.maxClients),
	}

	d.mu.Lock()
	for _, op := range model.Setup {
		if off, ok := d.reg(op.Reg); ok {
			d.module.Write16(off, d.module.Read16(off)|op.Or)
		}
	}
	if model.HasDAC && model.InitialDAC != 0 {
		d.write(RegDAC, model.InitialDAC)
	}
	d.mu.Unlock()

	if model.SupportsInterrupts && o.intVec != 0 {
		d.mu.Lock()
		d.write(RegIntVec, uint16(o.intVec))
		d.mu.Unlock()
		if err := module.ConnectInterrupt(d.HandleInterrupt); err != nil {
			return nil, errors.Wrapf(err, "connect interrupt of %s", name)
		}
		d.mu.Lock()
		d.writePair(RegIntPolarityLow, RegIntPolarityHigh, d.polarity)
		d.writeIntEnable()
		d.mu.Unlock()
		d.interrupts = true
	}

	log.Info("unidig %s: %s at %s, interrupts %v", name, model.Name, module.Base(), d.interrupts)
	return d, nil
}

func (d *Device) Name() string {
	return d.name
}

func (d *Device) Model() *Model {
	return d.model
}

func (d *Device) PollInterval() time.Duration {
	return d.pollInterval
}

// Rebooting reports whether the device has entered its terminal state
func (d *Device) Rebooting() bool {
	return d.rebooting.Load()
}

// Reboot disables interrupt generation and makes every further register
// access fail with ErrShuttingDown. It is not reversible.
func (d *Device) Reboot() {
	d.mu.Lock()
	if !d.rebooting.Load() {
		d.writePair(RegIntEnableLow, RegIntEnableHigh, 0)
		d.rebooting.Store(true)
	}
	d.mu.Unlock()
	d.signal()
}

// InterruptDrops counts interrupt events lost because the poller fell behind
func (d *Device) InterruptDrops() uint64 {
	return d.drops.Load()
}

func (d *Device) Clients() int {
	return d.clients.len()
}

// Info describes the device state at the time of the call
type Info struct {
	Name         string `json:"name"`
	Model        string `json:"model"`
	Manufacturer uint8  `json:"manufacturer"`
	ModelID      uint8  `json:"model_id"`
	Base         string `json:"base"`
	Interrupts   bool   `json:"interrupts"`
	HasDAC       bool   `json:"has_dac"`
	InputMask    uint32 `json:"input_mask"`
	OutputMask   uint32 `json:"output_mask"`
	RisingMask   uint32 `json:"rising_mask"`
	FallingMask  uint32 `json:"falling_mask"`
	PollMs       int64  `json:"poll_ms"`
	Clients      int    `json:"clients"`
	Drops        uint64 `json:"interrupt_drops"`
	Rebooting    bool   `json:"rebooting"`
}

func (d *Device) Info() Info {
	d.mu.Lock()
	rising, falling := d.rising, d.falling
	d.mu.Unlock()
	return Info{
		Name:         d.name,
		Model:        d.model.Name,
		Manufacturer: d.model.Manufacturer,
		ModelID:      d.model.ID,
		Base:         d.module.Base(),
		Interrupts:   d.interrupts,
		HasDAC:       d.model.HasDAC,
		InputMask:    d.model.InputMask,
		OutputMask:   d.model.OutputMask,
		RisingMask:   rising,
		FallingMask:  falling,
		PollMs:       d.pollInterval.Milliseconds(),
		Clients:      d.clients.len(),
		Drops:        d.drops.Load(),
		Rebooting:    d.rebooting.Load(),
	}
}

// Report writes a human readable status. details >= 1 adds the edge masks.
func (d *Device) Report(w io.Writer, details int) {
	info := d.Info()
	fmt.Fprintf(w, "unidig %s: %s connected at base address %s\n", info.Name, info.Model, info.Base)
	if details >= 1 {
		d.mu.Lock()
		polarity := d.polarity
		d.mu.Unlock()
		fmt.Fprintf(w, "  risingMask=%x\n", info.RisingMask)
		fmt.Fprintf(w, "  fallingMask=%x\n", info.FallingMask)
		fmt.Fprintf(w, "  polarityMask=%x\n", polarity)
		fmt.Fprintf(w, "  interrupts=%v vector=%d drops=%d\n", info.Interrupts, d.intVec, info.Drops)
		fmt.Fprintf(w, "  clients=%d pollMs=%d rebooting=%v\n", info.Clients, info.PollMs, info.Rebooting)
	}
}

// Register adds an on-change client. The next dispatch calls it with the
// current value even if nothing changed.
func (d *Device) Register(cb Callback, pvt interface{}, mask uint32) (*Registration, error) {
	if d.rebooting.Load() {
		return nil, ErrShuttingDown
	}
	reg, err := d.clients.add(cb, pvt, mask, OnChange)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.force = true
	d.mu.Unlock()
	d.signal()
	return reg, nil
}

// RegisterInterrupt adds a client called for every interrupt whose pending
// bits intersect mask.
func (d *Device) RegisterInterrupt(cb Callback, pvt interface{}, mask uint32) (*Registration, error) {
	if d.rebooting.Load() {
		return nil, ErrShuttingDown
	}
	return d.clients.add(cb, pvt, mask, OnInterrupt)
}

func (d *Device) Cancel(reg *Registration) error {
	return d.clients.remove(reg)
}

func (d *Device) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// register helpers, callers hold mu

func (d *Device) reg(r Reg) (uint16, bool) {
	return d.model.Layout.Offset(r)
}

func (d *Device) read(r Reg) uint16 {
	if off, ok := d.reg(r); ok {
		return d.module.Read16(off)
	}
	return 0
}

func (d *Device) write(r Reg, v uint16) {
	if off, ok := d.reg(r); ok {
		d.module.Write16(off, v)
	}
}

func (d *Device) readPair(low, high Reg) uint32 {
	return uint32(d.read(low)) | uint32(d.read(high))<<16
}

func (d *Device) writePair(low, high Reg, v uint32) {
	d.write(low, uint16(v))
	d.write(high, uint16(v>>16))
}
