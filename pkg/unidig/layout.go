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

// Register offsets are in units of 16-bit words from the module I/O base.

type Reg int

const (
	RegOutputLow Reg = iota
	RegOutputHigh
	RegOutputEnableLow
	RegOutputEnableHigh
	RegInputLow
	RegInputHigh
	RegControl0
	RegControl1
	RegIntVec
	RegIntEnableLow
	RegIntEnableHigh
	RegIntPolarityLow
	RegIntPolarityHigh
	RegIntClearLow
	RegIntClearHigh
	RegIntPendingLow
	RegIntPendingHigh
	RegDAC
	RegLimit
)

var regNames = map[Reg]string{
	RegOutputLow:        "outputLow",
	RegOutputHigh:       "outputHigh",
	RegOutputEnableLow:  "outputEnableLow",
	RegOutputEnableHigh: "outputEnableHigh",
	RegInputLow:         "inputLow",
	RegInputHigh:        "inputHigh",
	RegControl0:         "control0",
	RegControl1:         "control1",
	RegIntVec:           "intVec",
	RegIntEnableLow:     "intEnableLow",
	RegIntEnableHigh:    "intEnableHigh",
	RegIntPolarityLow:   "intPolarityLow",
	RegIntPolarityHigh:  "intPolarityHigh",
	RegIntClearLow:      "intClearLow",
	RegIntClearHigh:     "intClearHigh",
	RegIntPendingLow:    "intPendingLow",
	RegIntPendingHigh:   "intPendingHigh",
	RegDAC:              "DAC",
}

func (r Reg) String() string {
	if name, ok := regNames[r]; ok {
		return name
	}
	return "unknown"
}

// Layout maps a register to its word offset. A register missing from the
// map does not exist on the module.
type Layout map[Reg]uint16

// Offset returns the word offset of r and whether the module has it
func (l Layout) Offset(r Reg) (uint16, bool) {
	off, ok := l[r]
	return off, ok
}

// Without returns a copy of the layout with the given registers removed
func (l Layout) Without(regs ...Reg) Layout {
	out := l.clone()
	for _, r := range regs {
		delete(out, r)
	}
	return out
}

// With returns a copy of the layout with the given registers added or moved
func (l Layout) With(extra Layout) Layout {
	out := l.clone()
	for r, off := range extra {
		out[r] = off
	}
	return out
}

func (l Layout) clone() Layout {
	out := make(Layout, len(l))
	for r, off := range l {
		out[r] = off
	}
	return out
}

// GreenspringLayout is the register map shared by the IP-Unidig family.
// Pending and clear registers share a word: reading returns the pending
// bits, writing clears them.
var GreenspringLayout = Layout{
	RegOutputLow:        0x0,
	RegOutputHigh:       0x1,
	RegInputLow:         0x2,
	RegInputHigh:        0x3,
	RegOutputEnableLow:  0x4,
	RegOutputEnableHigh: 0x5,
	RegControl0:         0x6,
	RegIntVec:           0x8,
	RegIntEnableLow:     0x9,
	RegIntEnableHigh:    0xa,
	RegIntPolarityLow:   0xb,
	RegIntPolarityHigh:  0xc,
	RegIntClearLow:      0xd,
	RegIntClearHigh:     0xe,
	RegIntPendingLow:    0xd,
	RegIntPendingHigh:   0xe,
}

// HV16I8OLayout has no access to the low output word and reuses word 0xe
// for the comparator DAC.
var HV16I8OLayout = GreenspringLayout.
	Without(RegOutputLow, RegIntClearHigh, RegIntPendingHigh).
	With(Layout{RegDAC: 0xe})

// HV8I16OLayout keeps the low output word, inputs live in the low half only.
var HV8I16OLayout = GreenspringLayout.
	Without(RegIntClearHigh, RegIntPendingHigh).
	With(Layout{RegDAC: 0xe})

// SystranLayout is the DIO316I register map. It has no interrupt logic.
var SystranLayout = Layout{
	RegOutputLow:  0x0,
	RegOutputHigh: 0x1,
	RegInputLow:   0x2,
	RegControl0:   0x3,
	RegControl1:   0x4,
}
