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
	"sync"

	"github.com/pkg/errors"
)

type regWrite struct {
	word  uint16
	value uint16
}

// fakeModule is a plain register file that records every write and counts reads
type fakeModule struct {
	mu           sync.Mutex
	manufacturer uint8
	model        uint8
	regs         map[uint16]uint16
	writes       []regWrite
	reads        int
	isr          func()
	connectErr   error
}

func newFakeModule(manufacturer, model uint8) *fakeModule {
	return &fakeModule{
		manufacturer: manufacturer,
		model:        model,
		regs:         map[uint16]uint16{},
	}
}

func (f *fakeModule) Manufacturer() uint8 { return f.manufacturer }
func (f *fakeModule) Model() uint8        { return f.model }
func (f *fakeModule) Base() string        { return "fake" }
func (f *fakeModule) Close() error        { return nil }

func (f *fakeModule) Read16(word uint16) uint16 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	return f.regs[word]
}

func (f *fakeModule) Write16(word, value uint16) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.regs[word] = value
	f.writes = append(f.writes, regWrite{word: word, value: value})
}

func (f *fakeModule) ConnectInterrupt(isr func()) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	if isr == nil {
		return errors.New("nil isr")
	}
	f.isr = isr
	return nil
}

// poke sets a register without recording a write
func (f *fakeModule) poke(word, value uint16) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.regs[word] = value
}

func (f *fakeModule) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = nil
	f.reads = 0
}

func (f *fakeModule) readCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

func (f *fakeModule) written() []regWrite {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]regWrite(nil), f.writes...)
}

func (f *fakeModule) wroteTo(word uint16) bool {
	for _, w := range f.written() {
		if w.word == word {
			return true
		}
	}
	return false
}

type call struct {
	pvt  interface{}
	bits uint32
}

type recorder struct {
	mu    sync.Mutex
	calls []call
}

func (r *recorder) cb(pvt interface{}, bits uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{pvt: pvt, bits: bits})
}

func (r *recorder) get() []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]call(nil), r.calls...)
}
