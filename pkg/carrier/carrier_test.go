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

package carrier

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIDProm(t *testing.T) {
	id, err := ParseIDProm([]uint16{0x49, 0x50, 0x41, 0x43, 0xf0, 0x68, 0xffff})
	require.NoError(t, err)
	assert.Equal(t, ID{Manufacturer: 0xf0, Model: 0x68}, id)
	assert.Equal(t, "manufacturer=0xf0 model=0x68", id.String())
}

func TestParseIDPromHighBytesIgnored(t *testing.T) {
	id, err := ParseIDProm([]uint16{0xff49, 0xff50, 0xff41, 0xff43, 0xff45, 0xff63})
	require.NoError(t, err)
	assert.Equal(t, ID{Manufacturer: 0x45, Model: 0x63}, id)
}

func TestParseIDPromErrors(t *testing.T) {
	_, err := ParseIDProm([]uint16{0x49, 0x50})
	require.Error(t, err)
	assert.IsType(t, ErrBadIDProm{}, errors.Cause(err))

	_, err = ParseIDProm([]uint16{0x49, 0x50, 0x41, 0x44, 0xf0, 0x68})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signature byte 3")
}

func TestIDPromRoundTrip(t *testing.T) {
	want := ID{Manufacturer: 0xf0, Model: 0x75}
	got, err := ParseIDProm(IDPromWordsFor(want))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
