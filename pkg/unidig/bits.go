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

package unidig

import (
	"jinr.ru/greenlab/go-unidig/pkg/log"
)

// SetBits drives the bits in mask high. Differential models enable those
// outputs first.
func (d *Device) SetBits(mask uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.rebooting.Load() {
		return ErrShuttingDown
	}
	if d.model.DifferentialOutput {
		d.orPair(RegOutputEnableLow, RegOutputEnableHigh, mask)
	}
	d.orPair(RegOutputLow, RegOutputHigh, mask)
	log.Debug("unidig %s: setBits mask=%x", d.name, mask)
	return nil
}

// ClearBits drives the bits in mask low. Differential models enable those
// outputs first.
func (d *Device) ClearBits(mask uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.rebooting.Load() {
		return ErrShuttingDown
	}
	if d.model.DifferentialOutput {
		d.orPair(RegOutputEnableLow, RegOutputEnableHigh, mask)
	}
	d.andNotPair(RegOutputLow, RegOutputHigh, mask)
	log.Debug("unidig %s: clearBits mask=%x", d.name, mask)
	return nil
}

// ReadBits returns the input lines. A missing input half reads as zero.
func (d *Device) ReadBits() (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.rebooting.Load() {
		return 0, ErrShuttingDown
	}
	value := d.readInputs()
	log.Debug("unidig %s: readBits value=%x", d.name, value)
	return value, nil
}

// SetDAC writes the high voltage comparator threshold
func (d *Device) SetDAC(value uint16) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.rebooting.Load() {
		return ErrShuttingDown
	}
	if !d.model.HasDAC {
		log.Debug("unidig %s: setDAC not allowed for %s", d.name, d.model.Name)
		return ErrUnsupportedOperation
	}
	d.write(RegDAC, value)
	log.Debug("unidig %s: setDAC value=%d", d.name, value)
	return nil
}

func (d *Device) RisingMask() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rising
}

func (d *Device) FallingMask() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.falling
}

func (d *Device) SetRisingMaskBits(mask uint32) error {
	return d.updateEdges(func() { d.rising |= mask })
}

func (d *Device) ClearRisingMaskBits(mask uint32) error {
	return d.updateEdges(func() { d.rising &^= mask })
}

func (d *Device) SetFallingMaskBits(mask uint32) error {
	return d.updateEdges(func() { d.falling |= mask })
}

func (d *Device) ClearFallingMaskBits(mask uint32) error {
	return d.updateEdges(func() { d.falling &^= mask })
}

// updateEdges applies a mask change and rewrites polarity and enables.
// Bits armed on both edges keep their current polarity, the others follow
// the rising mask.
func (d *Device) updateEdges(change func()) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.rebooting.Load() {
		return ErrShuttingDown
	}
	change()
	both := d.rising & d.falling
	d.polarity = (d.polarity & both) | (d.rising &^ d.falling)
	d.writePair(RegIntPolarityLow, RegIntPolarityHigh, d.polarity)
	d.writeIntEnable()
	log.Debug("unidig %s: rising=%x falling=%x polarity=%x", d.name, d.rising, d.falling, d.polarity)
	return nil
}

func (d *Device) writeIntEnable() {
	d.writePair(RegIntEnableLow, RegIntEnableHigh, d.rising|d.falling)
}

func (d *Device) readInputs() uint32 {
	return d.readPair(RegInputLow, RegInputHigh)
}

func (d *Device) orPair(low, high Reg, mask uint32) {
	if off, ok := d.reg(low); ok {
		d.module.Write16(off, d.module.Read16(off)|uint16(mask))
	}
	if off, ok := d.reg(high); ok {
		d.module.Write16(off, d.module.Read16(off)|uint16(mask>>16))
	}
}

func (d *Device) andNotPair(low, high Reg, mask uint32) {
	if off, ok := d.reg(low); ok {
		d.module.Write16(off, d.module.Read16(off)&^uint16(mask))
	}
	if off, ok := d.reg(high); ok {
		d.module.Write16(off, d.module.Read16(off)&^uint16(mask>>16))
	}
}
