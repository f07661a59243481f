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
)

// MinMaxClients is the smallest registry capacity accepted by WithMaxClients
const MinMaxClients = 5

// Callback receives the client's private pointer and the masked bit snapshot
type Callback func(pvt interface{}, bits uint32)

// Delivery selects when a client is called
type Delivery int

const (
	// OnChange calls the client when any bit in its mask changed since the last dispatch
	OnChange Delivery = iota
	// OnInterrupt calls the client for each interrupt whose pending bits intersect its mask
	OnInterrupt
)

func (d Delivery) String() string {
	switch d {
	case OnChange:
		return "on-change"
	case OnInterrupt:
		return "on-interrupt"
	}
	return "unknown"
}

// Registration is the handle returned by Register and accepted by Cancel
type Registration struct {
	id   uint64
	cb   Callback
	pvt  interface{}
	mask uint32
	mode Delivery
}

func (r *Registration) Mask() uint32 {
	return r.mask
}

func (r *Registration) Mode() Delivery {
	return r.mode
}

type registry struct {
	mu      sync.Mutex
	clients []*Registration
	nextID  uint64
	limit   int
}

func newRegistry(limit int) *registry {
	if limit > 0 && limit < MinMaxClients {
		limit = MinMaxClients
	}
	return &registry{limit: limit}
}

func (r *registry) add(cb Callback, pvt interface{}, mask uint32, mode Delivery) (*Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.limit > 0 && len(r.clients) >= r.limit {
		return nil, ErrRegistrationLimit
	}
	r.nextID++
	reg := &Registration{id: r.nextID, cb: cb, pvt: pvt, mask: mask, mode: mode}
	r.clients = append(r.clients, reg)
	return reg, nil
}

func (r *registry) remove(reg *Registration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, c := range r.clients {
		if c == reg {
			r.clients = append(r.clients[:i], r.clients[i+1:]...)
			return nil
		}
	}
	return ErrCallbackNotFound
}

// snapshot copies the registrations of one delivery mode so callbacks run unlocked
func (r *registry) snapshot(mode Delivery) []*Registration {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Registration, 0, len(r.clients))
	for _, c := range r.clients {
		if c.mode == mode {
			out = append(out, c)
		}
	}
	return out
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}
