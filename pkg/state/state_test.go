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

package state

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestState(t *testing.T, devices ...string) *State {
	t.Helper()
	dir, err := ioutil.TempDir("", "go-unidig-state")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	s, err := NewState(filepath.Join(dir, "state.db"), devices)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndGet(t *testing.T) {
	s := newTestState(t, "a", "b")

	_, err := s.Get("a")
	assert.Equal(t, ErrNoSnapshot{Device: "a"}, errors.Cause(err))

	require.NoError(t, s.Record("a", 0x5))
	require.NoError(t, s.Record("a", 0xa))
	snap, err := s.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "a", snap.Device)
	assert.Equal(t, uint32(0xa), snap.Bits)
	assert.Equal(t, uint64(2), snap.Changes)
	assert.NotZero(t, snap.Timestamp)
}

func TestUnknownDevice(t *testing.T) {
	s := newTestState(t, "a")
	assert.Error(t, s.Record("zzz", 1))
	_, err := s.Get("zzz")
	assert.Error(t, err)
}

func TestGetAll(t *testing.T) {
	s := newTestState(t, "a", "b", "c")
	require.NoError(t, s.Record("a", 1))
	require.NoError(t, s.Record("c", 3))

	snaps, err := s.GetAll()
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "a", snaps[0].Device)
	assert.Equal(t, uint32(3), snaps[1].Bits)
}
