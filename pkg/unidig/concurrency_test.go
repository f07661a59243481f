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

package unidig_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jinr.ru/greenlab/go-unidig/pkg/unidig"
)

func TestConcurrentBitsAndClients(t *testing.T) {
	d, card := startDevice(t, unidig.Unidig,
		unidig.WithPollInterval(time.Millisecond),
		unidig.WithMaxClients(64))

	const workers = 16
	const rounds = 200
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(bit uint32) {
			defer wg.Done()
			mask := uint32(1) << bit
			for n := 0; n < rounds; n++ {
				assert.NoError(t, d.SetBits(mask))
				reg, err := d.Register(func(interface{}, uint32) {}, nil, mask)
				if assert.NoError(t, err) {
					assert.NoError(t, d.Cancel(reg))
				}
				assert.NoError(t, d.ClearBits(mask))
				_, err = d.ReadBits()
				assert.NoError(t, err)
			}
			if bit%2 == 0 {
				assert.NoError(t, d.SetBits(mask))
			}
		}(uint32(i))
	}
	wg.Wait()

	assert.Equal(t, uint32(0x5555), card.Outputs())
	assert.Equal(t, 0, d.Clients())
}

func TestCallbackCancelsItself(t *testing.T) {
	d, card := startDevice(t, unidig.Unidig, unidig.WithPollInterval(time.Millisecond))

	regs := make(chan *unidig.Registration, 1)
	cancelled := make(chan error, 4)
	var calls int
	var mu sync.Mutex
	reg, err := d.Register(func(interface{}, uint32) {
		mu.Lock()
		calls++
		mu.Unlock()
		cancelled <- d.Cancel(<-regs)
	}, nil, 0xff)
	require.NoError(t, err)
	regs <- reg

	select {
	case err := <-cancelled:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("callback did not run")
	}
	assert.Equal(t, 0, d.Clients())

	// the poller keeps running and the cancelled client is not called again
	got := make(chan uint32, 8)
	_, err = d.Register(func(_ interface{}, bits uint32) { got <- bits }, nil, 0xff)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), waitBits(t, got))
	require.NoError(t, card.Pullup(3))
	assert.Equal(t, uint32(0x8), waitBits(t, got))

	mu.Lock()
	assert.Equal(t, 1, calls)
	mu.Unlock()
}
