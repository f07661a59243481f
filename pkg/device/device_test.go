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
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jinr.ru/greenlab/go-unidig/pkg/config"
	"jinr.ru/greenlab/go-unidig/pkg/unidig"
)

type memRecorder struct {
	mu   sync.Mutex
	last map[string]uint32
}

func (r *memRecorder) Record(name string, bits uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last[name] = bits
	return nil
}

func (r *memRecorder) get(name string) (uint32, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.last[name]
	return v, ok
}

func testConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.Devices = []*config.Device{
		{Name: "a", Backend: config.BackendSim, Manufacturer: unidig.GreenspringID, Model: unidig.UnidigI, PollMs: 5},
		{Name: "b", Backend: config.BackendSim, Manufacturer: unidig.GreenspringID, Model: unidig.UnidigHV16I8O, PollMs: 5},
	}
	return cfg
}

func TestNewPool(t *testing.T) {
	p, err := NewPool(testConfig())
	require.NoError(t, err)
	defer p.Close()

	all := p.GetAllDevices()
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].Name())
	assert.Equal(t, "IP-Unidig-HV-16I8O", all[1].Info().Model)

	_, err = p.GetDeviceByName("zzz")
	assert.Equal(t, config.ErrDeviceNotFound{Name: "zzz"}, errors.Cause(err))

	lines, err := p.GetLines("a")
	require.NoError(t, err)
	lines.SetLines(0x1, 0x1)
	d, err := p.GetDeviceByName("a")
	require.NoError(t, err)
	v, err := d.ReadBits()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x1), v)
}

func TestNewPoolBadModel(t *testing.T) {
	cfg := testConfig()
	cfg.Devices[1].Model = unidig.UnidigT
	_, err := NewPool(cfg)
	require.Error(t, err)
	assert.IsType(t, unidig.ErrUnsupportedModel{}, errors.Cause(err))
}

func TestOptions(t *testing.T) {
	signal := uint32(0x1)
	opts := Options(&config.Device{PollMs: 10, IntVec: 0x80, SignalMask: &signal})
	assert.Len(t, opts, 6)
	assert.Len(t, Options(&config.Device{}), 5)
}

func TestPoolRecordsChanges(t *testing.T) {
	p, err := NewPool(testConfig())
	require.NoError(t, err)
	defer p.Close()

	rec := &memRecorder{last: map[string]uint32{}}
	require.NoError(t, p.Record(rec))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	d, err := p.GetDeviceByName("a")
	require.NoError(t, err)
	require.NoError(t, d.SetBits(0x6))
	assert.Eventually(t, func() bool {
		v, ok := rec.get("a")
		return ok && v == 0x6
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestCloseReboots(t *testing.T) {
	p, err := NewPool(testConfig())
	require.NoError(t, err)
	d, err := p.GetDeviceByName("a")
	require.NoError(t, err)
	p.Close()
	assert.Equal(t, unidig.ErrShuttingDown, d.SetBits(1))
	assert.Empty(t, p.GetAllDevices())
}
