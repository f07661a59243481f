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

package log

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevels(t *testing.T) {
	var buf bytes.Buffer
	Init(&buf, "warning")
	defer Init(&bytes.Buffer{}, "info")

	Debug("debug %d", 1)
	Info("info %d", 2)
	assert.Empty(t, buf.String())

	Warning("careful %s", "now")
	assert.Contains(t, buf.String(), LogPrefix)
	assert.Contains(t, buf.String(), WarningPrefix+"careful now")

	buf.Reset()
	Error("broken")
	assert.Contains(t, buf.String(), ErrorPrefix+"broken")
	assert.False(t, IsDebug())
}

func TestSetLevel(t *testing.T) {
	defer SetLevel("info")

	require.NoError(t, SetLevel("debug"))
	assert.True(t, IsDebug())
	assert.Equal(t, DebugLevel, Level())

	err := SetLevel("verbose")
	require.Error(t, err)
	assert.Contains(t, err.Error(), HelpLevels)
	assert.Equal(t, DebugLevel, Level())
}
