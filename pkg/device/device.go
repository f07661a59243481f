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

package device

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"jinr.ru/greenlab/go-unidig/pkg/carrier"
	"jinr.ru/greenlab/go-unidig/pkg/carrier/sim"
	"jinr.ru/greenlab/go-unidig/pkg/carrier/uio"
	"jinr.ru/greenlab/go-unidig/pkg/config"
	"jinr.ru/greenlab/go-unidig/pkg/device/ifc"
	"jinr.ru/greenlab/go-unidig/pkg/log"
	"jinr.ru/greenlab/go-unidig/pkg/unidig"
)

// Recorder receives every change of every device
type Recorder interface {
	Record(deviceName string, bits uint32) error
}

// ErrNotSimulated returned when lines are driven on a real module
type ErrNotSimulated struct {
	Name string
}

func (e ErrNotSimulated) Error() string {
	return "Device is not simulated: " + e.Name
}

type entry struct {
	device *unidig.Device
	module carrier.Module
	card   *sim.Card
}

// Pool owns the configured devices and their carriers
type Pool struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string
}

var _ ifc.Pool = &Pool{}

// OpenModule builds the carrier for a configured device
func OpenModule(d *config.Device) (carrier.Module, *sim.Card, error) {
	switch d.Backend {
	case config.BackendSim, "":
		card, err := sim.New(d.Name, d.Manufacturer, d.Model)
		if err != nil {
			return nil, nil, err
		}
		return card, card, nil
	case config.BackendUIO:
		var opts []uio.Option
		if d.Manufacturer != 0 || d.Model != 0 {
			opts = append(opts, uio.WithID(d.Manufacturer, d.Model))
		}
		m, err := uio.Open(d.UIO, opts...)
		if err != nil {
			return nil, nil, err
		}
		return m, nil, nil
	}
	return nil, nil, config.ErrInvalidConfig{What: "unknown backend " + d.Backend}
}

// Options turns the device config into driver options
func Options(d *config.Device) []unidig.Option {
	opts := []unidig.Option{
		unidig.WithPollInterval(time.Duration(d.PollMs) * time.Millisecond),
		unidig.WithInterruptVector(d.IntVec),
		unidig.WithRisingMask(d.RisingMask),
		unidig.WithFallingMask(d.FallingMask),
		unidig.WithMaxClients(d.MaxClients),
	}
	if d.SignalMask != nil {
		opts = append(opts, unidig.WithSignalMask(*d.SignalMask))
	}
	return opts
}

func NewPool(cfg *config.Config) (*Pool, error) {
	p := &Pool{entries: map[string]*entry{}}
	for _, d := range cfg.Devices {
		module, card, err := OpenModule(d)
		if err != nil {
			p.Close()
			return nil, errors.Wrapf(err, "device %s", d.Name)
		}
		dev, err := unidig.New(d.Name, module, Options(d)...)
		if err != nil {
			module.Close()
			p.Close()
			return nil, errors.Wrapf(err, "device %s", d.Name)
		}
		p.entries[d.Name] = &entry{device: dev, module: module, card: card}
		p.order = append(p.order, d.Name)
	}
	return p, nil
}

// Record registers an on-change client per device forwarding to rec
func (p *Pool) Record(rec Recorder) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, name := range p.order {
		name := name
		_, err := p.entries[name].device.Register(func(_ interface{}, bits uint32) {
			if err := rec.Record(name, bits); err != nil {
				log.Error("Error while recording state of %s: %s", name, err)
			}
		}, nil, ^uint32(0))
		if err != nil {
			return errors.Wrapf(err, "register recorder for %s", name)
		}
	}
	return nil
}

// Run runs the poller of every device until ctx is done
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	p.mu.RLock()
	for _, name := range p.order {
		dev := p.entries[name].device
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := dev.Run(ctx)
			if err != nil && err != context.Canceled {
				log.Info("Poller of %s stopped: %s", dev.Name(), err)
			}
		}()
	}
	p.mu.RUnlock()
	wg.Wait()
}

func (p *Pool) GetDeviceByName(name string) (ifc.Device, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.entries[name]
	if !ok {
		return nil, config.ErrDeviceNotFound{Name: name}
	}
	return e.device, nil
}

func (p *Pool) GetAllDevices() []ifc.Device {
	p.mu.RLock()
	defer p.mu.RUnlock()
	devices := make([]ifc.Device, 0, len(p.order))
	for _, name := range p.order {
		devices = append(devices, p.entries[name].device)
	}
	return devices
}

func (p *Pool) GetLines(name string) (ifc.Lines, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.entries[name]
	if !ok {
		return nil, config.ErrDeviceNotFound{Name: name}
	}
	if e.card == nil {
		return nil, ErrNotSimulated{Name: name}
	}
	return e.card, nil
}

// Close reboots every device and releases the carriers
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, name := range p.order {
		e := p.entries[name]
		e.device.Reboot()
		if err := e.module.Close(); err != nil {
			log.Error("Error while closing %s: %s", name, err)
		}
	}
	p.entries = map[string]*entry{}
	p.order = nil
}
