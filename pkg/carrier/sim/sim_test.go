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

package sim

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jinr.ru/greenlab/go-unidig/pkg/carrier"
	"jinr.ru/greenlab/go-unidig/pkg/unidig"
)

func TestNewUnknownModel(t *testing.T) {
	_, err := New("t", unidig.GreenspringID, unidig.UnidigT)
	require.Error(t, err)
	assert.IsType(t, unidig.ErrUnsupportedModel{}, errors.Cause(err))
}

func TestIDProm(t *testing.T) {
	c, err := New("t", unidig.GreenspringID, unidig.UnidigI)
	require.NoError(t, err)
	id, err := carrier.ParseIDProm(c.IDProm())
	require.NoError(t, err)
	assert.Equal(t, unidig.GreenspringID, id.Manufacturer)
	assert.Equal(t, unidig.UnidigI, id.Model)
	assert.Equal(t, "sim:t", c.Base())
}

func TestPullsAndLoopback(t *testing.T) {
	c, err := New("t", unidig.GreenspringID, unidig.Unidig)
	require.NoError(t, err)

	require.NoError(t, c.Pullup(3))
	lvl, err := c.Level(3)
	require.NoError(t, err)
	assert.Equal(t, LevelActive, lvl)
	assert.Equal(t, uint16(0x8), c.Read16(0x2))

	c.Write16(0x1, 0x0001)
	assert.Equal(t, uint32(0x00010008), c.Inputs())
	assert.Equal(t, uint16(0x0001), c.Read16(0x3))
	assert.Equal(t, uint32(0x00010000), c.Outputs())

	require.NoError(t, c.Toggle(3))
	assert.Equal(t, uint32(0x00010000), c.Inputs())

	// lines outside the input mask never read back
	c.SetLines(0xff000000, 0xff000000)
	assert.Equal(t, uint32(0x00010000), c.Inputs())

	assert.Error(t, c.SetPull(32, LevelActive))
	_, err = c.Level(-1)
	assert.Error(t, err)
}

func TestDifferentialNeedsEnable(t *testing.T) {
	c, err := New("t", unidig.GreenspringID, unidig.UnidigD)
	require.NoError(t, err)
	c.Write16(0x0, 0x0003)
	assert.Equal(t, uint32(0), c.Inputs())
	c.Write16(0x4, 0x0001)
	assert.Equal(t, uint32(0x1), c.Inputs())
}

func TestDAC(t *testing.T) {
	c, err := New("t", unidig.GreenspringID, unidig.UnidigHV8I16O)
	require.NoError(t, err)
	c.Write16(0xe, 321)
	assert.Equal(t, uint16(321), c.DAC())
	assert.Equal(t, []Write{{Word: 0xe, Value: 321}}, c.Writes())
	c.ResetWrites()
	assert.Empty(t, c.Writes())

	c, err = New("t", unidig.GreenspringID, unidig.Unidig)
	require.NoError(t, err)
	assert.Equal(t, uint16(0), c.DAC())
}

func TestEdgeLatching(t *testing.T) {
	c, err := New("t", unidig.GreenspringID, unidig.UnidigI)
	require.NoError(t, err)
	// enable bits 0 and 1, bit 0 rising, bit 1 falling
	c.Write16(0x9, 0x3)
	c.Write16(0xb, 0x1)

	c.SetLines(0x3, 0x3)
	assert.Equal(t, uint32(0x1), c.Pending())
	c.SetLines(0x3, 0x0)
	assert.Equal(t, uint32(0x3), c.Pending())
	assert.Equal(t, uint16(0x3), c.Read16(0xd))

	c.Write16(0xd, 0x1)
	assert.Equal(t, uint32(0x2), c.Pending())

	// disabled bits never latch
	c.SetLines(0x4, 0x4)
	assert.Equal(t, uint32(0x2), c.Pending())
}

func TestNoInterruptLogic(t *testing.T) {
	c, err := New("t", unidig.GreenspringID, unidig.Unidig)
	require.NoError(t, err)
	assert.Error(t, c.ConnectInterrupt(func() {}))
	c.Write16(0x9, 0x1)
	c.Write16(0xb, 0x1)
	c.SetLines(0x1, 0x1)
	assert.Equal(t, uint32(0), c.Pending())
	assert.Equal(t, uint16(0x1), c.Read16(0x9))
}

func TestInterruptDelivery(t *testing.T) {
	c, err := New("t", unidig.GreenspringID, unidig.UnidigI)
	require.NoError(t, err)
	fired := make(chan uint16, 4)
	require.NoError(t, c.ConnectInterrupt(func() {
		p := c.Read16(0xd)
		c.Write16(0xd, p)
		fired <- p
	}))
	assert.Error(t, c.ConnectInterrupt(func() {}))

	c.Write16(0x9, 0x1)
	c.Write16(0xb, 0x1)
	c.SetLines(0x1, 0x1)
	select {
	case p := <-fired:
		assert.Equal(t, uint16(0x1), p)
	case <-time.After(time.Second):
		t.Fatal("no interrupt")
	}
	assert.Equal(t, uint32(0), c.Pending())

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.Error(t, c.ConnectInterrupt(func() {}))
}
