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

package ifc

import (
	"io"

	"jinr.ru/greenlab/go-unidig/pkg/unidig"
)

// Device is what the servers need from one digital I/O module
type Device interface {
	Name() string
	Info() unidig.Info
	Report(w io.Writer, details int)

	SetBits(mask uint32) error
	ClearBits(mask uint32) error
	ReadBits() (uint32, error)
	SetDAC(value uint16) error

	RisingMask() uint32
	FallingMask() uint32
	SetRisingMaskBits(mask uint32) error
	ClearRisingMaskBits(mask uint32) error
	SetFallingMaskBits(mask uint32) error
	ClearFallingMaskBits(mask uint32) error

	Register(cb unidig.Callback, pvt interface{}, mask uint32) (*unidig.Registration, error)
	RegisterInterrupt(cb unidig.Callback, pvt interface{}, mask uint32) (*unidig.Registration, error)
	Cancel(reg *unidig.Registration) error
}

// Lines drives the input lines of a simulated module
type Lines interface {
	SetLines(mask, value uint32)
	Inputs() uint32
}

type Pool interface {
	GetDeviceByName(name string) (Device, error)
	GetAllDevices() []Device
	// GetLines returns the line driver of a simulated device
	GetLines(name string) (Lines, error)
}

var _ Device = &unidig.Device{}
