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

package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(args ...string) (string, error) {
	var out bytes.Buffer
	root := NewRootCommand(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCompletion(t *testing.T) {
	for _, shell := range []string{"bash", "zsh", "fish"} {
		out, err := run("completion", shell)
		require.NoError(t, err, shell)
		assert.Contains(t, out, "go-unidig", shell)
	}
	_, err := run("completion", "tcsh")
	assert.Error(t, err)
}

func TestRequiredFlags(t *testing.T) {
	_, err := run("bits", "set")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mask")

	_, err = run("dac", "set")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "value")
}

func TestBadMask(t *testing.T) {
	_, err := run("bits", "clear", "--mask", "nothex")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad mask")

	_, err = run("mask", "get", "--edge", "both")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wrong edge")
}

func TestLogLevel(t *testing.T) {
	_, err := run("--log-level", "debug", "completion")
	assert.NoError(t, err)
}
