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

// HandleInterrupt services one interrupt from the module. It acknowledges
// the pending bits, flips the polarity of bits armed on both edges and
// hands the event to the poller. No client callback runs here.
func (d *Device) HandleInterrupt() {
	d.mu.Lock()
	if d.rebooting.Load() {
		d.mu.Unlock()
		return
	}
	pending := d.readPair(RegIntPendingLow, RegIntPendingHigh)
	d.writePair(RegIntClearLow, RegIntClearHigh, pending)
	inputs := d.readInputs()

	if invert := pending & d.rising & d.falling; invert != 0 {
		d.polarity ^= invert
		d.writePair(RegIntPolarityLow, RegIntPolarityHigh, d.polarity)
	}
	if pending&d.signalMask != 0 {
		d.bits = inputs
		d.fresh = true
	}
	d.mu.Unlock()

	select {
	case d.events <- interruptEvent{pending: pending, inputs: inputs}:
	default:
		d.drops.Add(1)
	}
	d.signal()
}

// Polarity returns the current interrupt polarity mask
func (d *Device) Polarity() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.polarity
}
