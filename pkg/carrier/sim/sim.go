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

// Package sim is an in-memory industry-pack digital I/O module. Lines are
// open collector: a line reads high when pulled up from tests or the CLI, or
// when an output bit drives it. Edges on enabled bits raise interrupts the
// way the IP-Unidig interrupt logic does.
package sim

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"jinr.ru/greenlab/go-unidig/pkg/carrier"
	"jinr.ru/greenlab/go-unidig/pkg/unidig"
)

const (
	// Line is inactive.
	LevelInactive int = iota

	// Line is active.
	LevelActive
)

const registerWords = 16

// Write is one register write seen by the card
type Write struct {
	Word  uint16
	Value uint16
}

// Card simulates one module. It implements carrier.Module.
type Card struct {
	name  string
	id    carrier.ID
	model *unidig.Model

	mu      sync.Mutex
	regs    [registerWords]uint16
	pulls   uint32
	inputs  uint32
	pending uint32
	writes  []Write
	irq     chan struct{}
	closed  bool
	wg      sync.WaitGroup
}

// New builds a card for any model known to the unidig driver
func New(name string, manufacturer, model uint8) (*Card, error) {
	m, err := unidig.LookupModel(manufacturer, model)
	if err != nil {
		return nil, errors.Wrapf(err, "simulated module %s", name)
	}
	c := &Card{
		name:  name,
		id:    carrier.ID{Manufacturer: manufacturer, Model: model},
		model: m,
	}
	c.inputs = c.computeInputs()
	return c, nil
}

func (c *Card) Manufacturer() uint8 {
	return c.id.Manufacturer
}

func (c *Card) Model() uint8 {
	return c.id.Model
}

func (c *Card) Base() string {
	return fmt.Sprintf("sim:%s", c.name)
}

// IDProm returns the ID PROM words the card would expose
func (c *Card) IDProm() []uint16 {
	return carrier.IDPromWordsFor(c.id)
}

func (c *Card) Read16(word uint16) uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if half, ok := c.half(unidig.RegInputLow, unidig.RegInputHigh, word); ok {
		return uint16(c.inputs >> half)
	}
	if c.model.SupportsInterrupts {
		if half, ok := c.half(unidig.RegIntPendingLow, unidig.RegIntPendingHigh, word); ok {
			return uint16(c.pending >> half)
		}
	}
	if int(word) >= registerWords {
		return 0xffff
	}
	return c.regs[word]
}

func (c *Card) Write16(word, value uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, Write{Word: word, Value: value})
	if c.model.SupportsInterrupts {
		if half, ok := c.half(unidig.RegIntClearLow, unidig.RegIntClearHigh, word); ok {
			c.pending &^= uint32(value) << half
			if c.pending != 0 {
				c.raise()
			}
			return
		}
	}
	if int(word) >= registerWords {
		return
	}
	c.regs[word] = value
	c.update()
}

// ConnectInterrupt starts the goroutine delivering interrupts to isr
func (c *Card) ConnectInterrupt(isr func()) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.model.SupportsInterrupts {
		return errors.Errorf("%s has no interrupt logic", c.model.Name)
	}
	if c.closed {
		return errors.New("card is closed")
	}
	if c.irq != nil {
		return errors.New("interrupt already connected")
	}
	c.irq = make(chan struct{}, 1)
	c.wg.Add(1)
	go func(irq chan struct{}) {
		defer c.wg.Done()
		for range irq {
			isr()
		}
	}(c.irq)
	if c.pending != 0 {
		c.raise()
	}
	return nil
}

func (c *Card) Close() error {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		if c.irq != nil {
			close(c.irq)
		}
	}
	c.mu.Unlock()
	c.wg.Wait()
	return nil
}

// SetLines pulls the lines in mask to the levels given by value
func (c *Card) SetLines(mask, value uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pulls = (c.pulls &^ mask) | (value & mask)
	c.update()
}

// SetPull pulls one line
func (c *Card) SetPull(offset int, level int) error {
	if offset < 0 || offset > 31 {
		return errors.Errorf("line %d out of range", offset)
	}
	value := uint32(0)
	if level == LevelActive {
		value = 1 << offset
	}
	c.SetLines(1<<offset, value)
	return nil
}

func (c *Card) Pullup(offset int) error {
	return c.SetPull(offset, LevelActive)
}

func (c *Card) Pulldown(offset int) error {
	return c.SetPull(offset, LevelInactive)
}

// Toggle flips the pull of the given line
func (c *Card) Toggle(offset int) error {
	if offset < 0 || offset > 31 {
		return errors.Errorf("line %d out of range", offset)
	}
	c.mu.Lock()
	c.pulls ^= 1 << offset
	c.update()
	c.mu.Unlock()
	return nil
}

// Level returns the input level of a line as the module reads it
func (c *Card) Level(offset int) (int, error) {
	if offset < 0 || offset > 31 {
		return LevelInactive, errors.Errorf("line %d out of range", offset)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inputs&(1<<offset) != 0 {
		return LevelActive, nil
	}
	return LevelInactive, nil
}

// Inputs returns the input word as the module reads it
func (c *Card) Inputs() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inputs
}

// Outputs returns the bits currently driven by the module
func (c *Card) Outputs() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outputs() & c.driven()
}

func (c *Card) DAC() uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if off, ok := c.model.Layout.Offset(unidig.RegDAC); ok {
		return c.regs[off]
	}
	return 0
}

func (c *Card) Pending() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Writes returns the register writes seen so far
func (c *Card) Writes() []Write {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Write(nil), c.writes...)
}

func (c *Card) ResetWrites() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = nil
}

// half reports whether word is the low or high register of a pair and the
// bit shift for that half
func (c *Card) half(low, high unidig.Reg, word uint16) (uint, bool) {
	if off, ok := c.model.Layout.Offset(low); ok && off == word {
		return 0, true
	}
	if off, ok := c.model.Layout.Offset(high); ok && off == word {
		return 16, true
	}
	return 0, false
}

func (c *Card) pair(low, high unidig.Reg) uint32 {
	var v uint32
	if off, ok := c.model.Layout.Offset(low); ok {
		v = uint32(c.regs[off])
	}
	if off, ok := c.model.Layout.Offset(high); ok {
		v |= uint32(c.regs[off]) << 16
	}
	return v
}

func (c *Card) outputs() uint32 {
	return c.pair(unidig.RegOutputLow, unidig.RegOutputHigh)
}

// driven is the set of output bits actually driving their lines
func (c *Card) driven() uint32 {
	if c.model.DifferentialOutput {
		return c.model.OutputMask & c.pair(unidig.RegOutputEnableLow, unidig.RegOutputEnableHigh)
	}
	return c.model.OutputMask
}

// computeInputs models open collector lines: a line is active when pulled
// up or when an enabled output drives it
func (c *Card) computeInputs() uint32 {
	lines := c.pulls | (c.outputs() & c.driven())
	return lines & c.model.InputMask
}

// update recomputes the inputs and latches edges on enabled bits.
// A set polarity bit selects the rising edge.
func (c *Card) update() {
	old := c.inputs
	c.inputs = c.computeInputs()
	if !c.model.SupportsInterrupts {
		return
	}
	changed := old ^ c.inputs
	if changed == 0 {
		return
	}
	enable := c.pair(unidig.RegIntEnableLow, unidig.RegIntEnableHigh)
	polarity := c.pair(unidig.RegIntPolarityLow, unidig.RegIntPolarityHigh)
	rising := changed & c.inputs & polarity
	falling := changed & old &^ polarity
	if edges := (rising | falling) & enable; edges != 0 {
		c.pending |= edges
		c.raise()
	}
}

// raise requests an isr call, callers hold mu
func (c *Card) raise() {
	if c.irq == nil || c.closed {
		return
	}
	select {
	case c.irq <- struct{}{}:
	default:
	}
}
