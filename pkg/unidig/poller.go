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
	"context"
	"time"

	"jinr.ru/greenlab/go-unidig/pkg/log"
)

// Run polls the inputs and dispatches changes and interrupt events to
// clients until ctx is done or the device reboots.
func (d *Device) Run(ctx context.Context) error {
	timer := time.NewTimer(d.pollInterval)
	defer timer.Stop()

	for {
		timedOut := false
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.wake:
			if !timer.Stop() {
				<-timer.C
			}
		case <-timer.C:
			timedOut = true
		}
		if d.rebooting.Load() {
			return ErrShuttingDown
		}
		d.cycle(timedOut)
		timer.Reset(d.pollInterval)
	}
}

// cycle is one pass of the dispatcher
func (d *Device) cycle(timedOut bool) {
	d.dispatchInterrupts()

	d.mu.Lock()
	if d.rebooting.Load() {
		d.mu.Unlock()
		return
	}
	// a wake without a stored snapshot still reads, so interrupts outside
	// the signal mask never hold back polling
	if timedOut || d.force || !d.fresh {
		d.bits = d.readInputs()
	} else {
		log.Debug("unidig %s: poller got interrupt", d.name)
	}
	d.fresh = false
	bits := d.bits
	changed := bits ^ d.oldBits
	if d.force {
		changed = ^uint32(0)
		d.force = false
	}
	if changed != 0 {
		d.oldBits = bits
	}
	d.mu.Unlock()

	if changed == 0 {
		return
	}
	log.Debug("unidig %s: poller bits=%x changed=%x", d.name, bits, changed)
	for _, c := range d.clients.snapshot(OnChange) {
		if c.mask&changed != 0 {
			c.cb(c.pvt, c.mask&bits)
		}
	}
}

func (d *Device) dispatchInterrupts() {
	for {
		select {
		case ev := <-d.events:
			for _, c := range d.clients.snapshot(OnInterrupt) {
				if c.mask&ev.pending != 0 {
					c.cb(c.pvt, c.mask&ev.inputs)
				}
			}
		default:
			return
		}
	}
}
