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

// Package uio reaches an industry-pack module through a Linux UIO device.
// map0 is the module I/O space, the optional map1 is its ID space. The
// interrupt line is the UIO file descriptor itself.
package uio

import (
	"fmt"
	"io/ioutil"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"jinr.ru/greenlab/go-unidig/pkg/carrier"
)

const (
	DefaultSysfsRoot = "/sys/class/uio"

	ioMap = 0
	idMap = 1
)

type options struct {
	sysfsRoot string
	id        *carrier.ID
}

type Option func(*options)

// WithID forces the module identity when the carrier does not expose the ID space
func WithID(manufacturer, model uint8) Option {
	return func(o *options) {
		o.id = &carrier.ID{Manufacturer: manufacturer, Model: model}
	}
}

// WithSysfsRoot overrides /sys/class/uio
func WithSysfsRoot(root string) Option {
	return func(o *options) {
		o.sysfsRoot = root
	}
}

// ErrNoMap returned when a UIO device does not expose a required memory map
type ErrNoMap struct {
	Device string
	Index  int
}

func (e ErrNoMap) Error() string {
	return fmt.Sprintf("UIO device %s has no map%d", e.Device, e.Index)
}

// Module is a module mapped through UIO. It implements carrier.Module.
type Module struct {
	path string
	id   carrier.ID

	mu      sync.Mutex
	io      []uint16
	release func() error
	irq     irqLine
	wg      sync.WaitGroup
	closed  bool
}

type irqLine interface {
	// wait blocks until the next interrupt and returns the total count
	wait() (uint32, error)
	// arm enables the interrupt again
	arm() error
	close() error
}

func (m *Module) Manufacturer() uint8 {
	return m.id.Manufacturer
}

func (m *Module) Model() uint8 {
	return m.id.Model
}

func (m *Module) Base() string {
	return m.path
}

func (m *Module) Read16(word uint16) uint16 {
	if int(word) >= len(m.io) {
		return 0xffff
	}
	return m.io[word]
}

func (m *Module) Write16(word, value uint16) {
	if int(word) >= len(m.io) {
		return
	}
	m.io[word] = value
}

// ConnectInterrupt starts the goroutine that blocks on the UIO descriptor
func (m *Module) ConnectInterrupt(isr func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.Errorf("%s is closed", m.path)
	}
	if m.irq == nil {
		return errors.Errorf("%s has no interrupt line", m.path)
	}
	if err := m.irq.arm(); err != nil {
		return errors.Wrapf(err, "arm interrupt of %s", m.path)
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for {
			if _, err := m.irq.wait(); err != nil {
				return
			}
			isr()
			if err := m.irq.arm(); err != nil {
				return
			}
		}
	}()
	return nil
}

func (m *Module) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	var err error
	if m.irq != nil {
		err = m.irq.close()
	}
	m.mu.Unlock()
	m.wg.Wait()
	if m.release != nil {
		if rerr := m.release(); rerr != nil && err == nil {
			err = rerr
		}
	}
	return err
}

// deviceName turns /dev/uio0 into uio0
func deviceName(path string) string {
	return filepath.Base(path)
}

// mapSize reads the size of mapN from sysfs, zero when the map does not exist
func mapSize(sysfsRoot, device string, index int) (int, error) {
	p := filepath.Join(sysfsRoot, device, "maps", fmt.Sprintf("map%d", index), "size")
	data, err := ioutil.ReadFile(p)
	if err != nil {
		return 0, nil
	}
	return parseSize(string(data))
}

func parseSize(s string) (int, error) {
	s = strings.TrimSpace(s)
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, errors.Wrapf(err, "bad map size %q", s)
	}
	return int(v), nil
}

// identify resolves the module identity from the ID space or the override
func identify(idSpace []uint16, override *carrier.ID) (carrier.ID, error) {
	if override != nil {
		return *override, nil
	}
	if len(idSpace) == 0 {
		return carrier.ID{}, errors.New("no ID space and no module identity configured")
	}
	return carrier.ParseIDProm(idSpace)
}
