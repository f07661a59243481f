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
	"sort"
)

const (
	GreenspringID uint8 = 0xF0
	SystranID     uint8 = 0x45
)

// Greenspring model identifiers
const (
	UnidigE        uint8 = 0x51 // IP-Unidig-E          (24 I/O, LineSafe)
	Unidig         uint8 = 0x61 // IP-Unidig            (24 I/O)
	UnidigD        uint8 = 0x62 // IP-Unidig-D          (24 I/O, differential)
	UnidigO24IO    uint8 = 0x63 // IP-Unidig-O-24IO     (24 I/O, optically iso.)
	UnidigHV16I8O  uint8 = 0x64 // IP-Unidig-HV-16I8O   (16I, 8O, high voltage)
	UnidigE48      uint8 = 0x65 // IP-Unidig-E48        (48 I/O, LineSafe)
	UnidigIO24I    uint8 = 0x66 // IP-Unidig-I-O-24I    (24 I, optical, interrupts)
	UnidigIE       uint8 = 0x67 // IP-Unidig-I-E        (24 I/O, LineSafe, interrupts)
	UnidigI        uint8 = 0x68 // IP-Unidig-I          (24 I/O, interrupts)
	UnidigID       uint8 = 0x69 // IP-Unidig-I-D        (24 I/O, differential, interrupts)
	UnidigIO24IO   uint8 = 0x6A // IP-Unidig-I-O-24IO   (24 I/O, optical, interrupts)
	UnidigIHV16I8O uint8 = 0x6B // IP-Unidig-I-HV-16I8O (16I, 8O, high voltage, ints.)
	UnidigT        uint8 = 0x6D // IP-Unidig-T          (Timer)
	UnidigTD       uint8 = 0x6E // IP-Unidig-T-D        (Timer, differential)
	UnidigO12I12O  uint8 = 0x6F // IP-Unidig-O-12I12O   (12I, 12O, optical)
	UnidigIO12I12O uint8 = 0x70 // IP-Unidig-I-O-12I12O (12I, 12O, optical, interrupts)
	UnidigP        uint8 = 0x71 // IP-Unidig-P          (16I, 16O)
	UnidigPD       uint8 = 0x72 // IP-Unidig-P-D        (16I, 16O, differential)
	UnidigO24I     uint8 = 0x73 // IP-Unidig-O-24I      (24I, opt. iso.)
	UnidigHV8I16O  uint8 = 0x74 // IP-Unidig-HV-8I16O   (8I, 16O, high voltage)
	UnidigIHV8I16O uint8 = 0x75 // IP-Unidig-I-HV-8I16O (8I, 16O, high voltage, ints.)
)

// Systran model identifiers
const (
	SystranDIO316I uint8 = 0x63
)

const (
	// DefaultComparatorDAC sets the HV comparator to 2.5 V, 15 mV per bit
	DefaultComparatorDAC uint16 = 2500 / 15

	mask24 uint32 = 0x00FFFFFF
	mask32 uint32 = 0xFFFFFFFF
)

// RegOp is a read-modify-write applied once when the module is initialized
type RegOp struct {
	Reg Reg
	Or  uint16
}

// Model describes everything that differs between supported modules.
type Model struct {
	Manufacturer uint8
	ID           uint8
	Name         string

	Layout Layout

	SupportsInterrupts bool
	HasDAC             bool
	// DifferentialOutput models drive a bit only once its output enable is set
	DifferentialOutput bool

	// InputMask and OutputMask are the bits wired as inputs and outputs
	InputMask  uint32
	OutputMask uint32

	Setup []RegOp
	// InitialDAC is written at initialization when HasDAC is set
	InitialDAC uint16
}

type modelKey struct {
	manufacturer uint8
	model        uint8
}

var enableOptoOutputs = []RegOp{{Reg: RegControl0, Or: 0x4}}

var models = map[modelKey]*Model{}

func init() {
	for _, m := range []*Model{
		{Manufacturer: GreenspringID, ID: UnidigE, Name: "IP-Unidig-E", Layout: GreenspringLayout,
			InputMask: mask24, OutputMask: mask24},
		{Manufacturer: GreenspringID, ID: Unidig, Name: "IP-Unidig", Layout: GreenspringLayout,
			InputMask: mask24, OutputMask: mask24},
		{Manufacturer: GreenspringID, ID: UnidigD, Name: "IP-Unidig-D", Layout: GreenspringLayout,
			DifferentialOutput: true, InputMask: mask24, OutputMask: mask24},
		{Manufacturer: GreenspringID, ID: UnidigO24IO, Name: "IP-Unidig-O-24IO", Layout: GreenspringLayout,
			InputMask: mask24, OutputMask: mask24, Setup: enableOptoOutputs},
		{Manufacturer: GreenspringID, ID: UnidigHV16I8O, Name: "IP-Unidig-HV-16I8O", Layout: HV16I8OLayout,
			HasDAC: true, InitialDAC: DefaultComparatorDAC, InputMask: 0x0000FFFF, OutputMask: 0x00FF0000},
		{Manufacturer: GreenspringID, ID: UnidigE48, Name: "IP-Unidig-E48", Layout: GreenspringLayout,
			InputMask: mask32, OutputMask: mask32},
		{Manufacturer: GreenspringID, ID: UnidigIO24I, Name: "IP-Unidig-I-O-24I", Layout: GreenspringLayout,
			SupportsInterrupts: true, InputMask: mask24},
		{Manufacturer: GreenspringID, ID: UnidigIE, Name: "IP-Unidig-I-E", Layout: GreenspringLayout,
			SupportsInterrupts: true, InputMask: mask24, OutputMask: mask24},
		{Manufacturer: GreenspringID, ID: UnidigI, Name: "IP-Unidig-I", Layout: GreenspringLayout,
			SupportsInterrupts: true, InputMask: mask24, OutputMask: mask24},
		{Manufacturer: GreenspringID, ID: UnidigID, Name: "IP-Unidig-I-D", Layout: GreenspringLayout,
			SupportsInterrupts: true, DifferentialOutput: true, InputMask: mask24, OutputMask: mask24},
		{Manufacturer: GreenspringID, ID: UnidigIO24IO, Name: "IP-Unidig-I-O-24IO", Layout: GreenspringLayout,
			SupportsInterrupts: true, InputMask: mask24, OutputMask: mask24, Setup: enableOptoOutputs},
		{Manufacturer: GreenspringID, ID: UnidigIHV16I8O, Name: "IP-Unidig-I-HV-16I8O", Layout: HV16I8OLayout,
			SupportsInterrupts: true, HasDAC: true, InitialDAC: DefaultComparatorDAC,
			InputMask: 0x0000FFFF, OutputMask: 0x00FF0000},
		{Manufacturer: GreenspringID, ID: UnidigO12I12O, Name: "IP-Unidig-O-12I12O", Layout: GreenspringLayout,
			InputMask: 0x00000FFF, OutputMask: 0x00FFF000, Setup: enableOptoOutputs},
		{Manufacturer: GreenspringID, ID: UnidigIO12I12O, Name: "IP-Unidig-I-O-12I12O", Layout: GreenspringLayout,
			SupportsInterrupts: true, InputMask: 0x00000FFF, OutputMask: 0x00FFF000, Setup: enableOptoOutputs},
		{Manufacturer: GreenspringID, ID: UnidigO24I, Name: "IP-Unidig-O-24I", Layout: GreenspringLayout,
			InputMask: mask24},
		{Manufacturer: GreenspringID, ID: UnidigHV8I16O, Name: "IP-Unidig-HV-8I16O", Layout: HV8I16OLayout,
			HasDAC: true, InputMask: 0x000000FF, OutputMask: 0x00FFFF00},
		{Manufacturer: GreenspringID, ID: UnidigIHV8I16O, Name: "IP-Unidig-I-HV-8I16O", Layout: HV8I16OLayout,
			SupportsInterrupts: true, HasDAC: true, InputMask: 0x000000FF, OutputMask: 0x00FFFF00},
		{Manufacturer: SystranID, ID: SystranDIO316I, Name: "Systran DIO316I", Layout: SystranLayout,
			InputMask: 0x0000FFFF, OutputMask: 0x0000FFFF,
			Setup: []RegOp{
				// enable outputs for ports 0-3, ports 0-1 drive
				{Reg: RegControl0, Or: 0xf},
				{Reg: RegControl1, Or: 0x3},
			}},
	} {
		models[modelKey{m.Manufacturer, m.ID}] = m
	}
}

// LookupModel returns the descriptor of a supported module
func LookupModel(manufacturer, model uint8) (*Model, error) {
	m, ok := models[modelKey{manufacturer, model}]
	if !ok {
		return nil, ErrUnsupportedModel{Manufacturer: manufacturer, Model: model}
	}
	return m, nil
}

// Models lists all supported modules ordered by manufacturer and model
func Models() []*Model {
	out := make([]*Model, 0, len(models))
	for _, m := range models {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Manufacturer != out[j].Manufacturer {
			return out[i].Manufacturer < out[j].Manufacturer
		}
		return out[i].ID < out[j].ID
	})
	return out
}
