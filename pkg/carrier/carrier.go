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

// Package carrier describes the industry-pack module slot the digital I/O
// driver talks to: the ID PROM, the 16-bit I/O space and the interrupt line.
package carrier

import (
	"fmt"

	"github.com/pkg/errors"
)

// Module is one industry-pack module as seen through its carrier board.
// Register offsets are in units of 16-bit words from the I/O space base.
type Module interface {
	Manufacturer() uint8
	Model() uint8

	Read16(word uint16) uint16
	Write16(word uint16, value uint16)

	// Base describes where the I/O space lives, for reports only
	Base() string

	// ConnectInterrupt attaches isr to the module interrupt line. The isr
	// is called from a goroutine owned by the carrier, one call per
	// interrupt, never concurrently with itself.
	ConnectInterrupt(isr func()) error

	Close() error
}

const (
	// IDPromWords is the number of words of the ID PROM we care about
	IDPromWords = 6

	idManufacturerWord = 4
	idModelWord        = 5
)

var idSignature = [4]byte{'I', 'P', 'A', 'C'}

// ID is the manufacturer/model pair read from the ID PROM
type ID struct {
	Manufacturer uint8
	Model        uint8
}

func (id ID) String() string {
	return fmt.Sprintf("manufacturer=0x%02x model=0x%02x", id.Manufacturer, id.Model)
}

// ErrBadIDProm returned when the ID space does not start with the IPAC signature
type ErrBadIDProm struct {
	What string
}

func (e ErrBadIDProm) Error() string {
	return fmt.Sprintf("Bad industry-pack ID PROM: %s", e.What)
}

// ParseIDProm decodes the identification words of an industry-pack ID PROM.
// Each PROM byte is held in the low byte of a 16-bit word.
func ParseIDProm(words []uint16) (ID, error) {
	if len(words) < IDPromWords {
		return ID{}, errors.WithStack(ErrBadIDProm{What: fmt.Sprintf("%d words, need %d", len(words), IDPromWords)})
	}
	for i, c := range idSignature {
		if byte(words[i]&0xff) != c {
			return ID{}, errors.WithStack(ErrBadIDProm{What: fmt.Sprintf("signature byte %d is 0x%02x", i, words[i]&0xff)})
		}
	}
	return ID{
		Manufacturer: uint8(words[idManufacturerWord] & 0xff),
		Model:        uint8(words[idModelWord] & 0xff),
	}, nil
}

// IDPromWordsFor builds the ID PROM contents for a module, used by simulated carriers
func IDPromWordsFor(id ID) []uint16 {
	words := make([]uint16, IDPromWords)
	for i, c := range idSignature {
		words[i] = uint16(c)
	}
	words[idManufacturerWord] = uint16(id.Manufacturer)
	words[idModelWord] = uint16(id.Model)
	return words
}
