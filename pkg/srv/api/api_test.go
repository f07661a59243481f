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

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jinr.ru/greenlab/go-unidig/pkg/config"
	"jinr.ru/greenlab/go-unidig/pkg/device"
	"jinr.ru/greenlab/go-unidig/pkg/state"
	"jinr.ru/greenlab/go-unidig/pkg/unidig"
)

type testEnv struct {
	pool   *device.Pool
	state  *state.State
	server *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.Devices = []*config.Device{
		{Name: "dio", Backend: config.BackendSim, Manufacturer: unidig.GreenspringID, Model: unidig.UnidigI,
			PollMs: 5, IntVec: 0x80, RisingMask: 0x1},
		{Name: "hv", Backend: config.BackendSim, Manufacturer: unidig.GreenspringID, Model: unidig.UnidigHV16I8O, PollMs: 5},
	}
	dir, err := ioutil.TempDir("", "go-unidig-api")
	require.NoError(t, err)
	st, err := state.NewState(filepath.Join(dir, "state.db"), []string{"dio", "hv"})
	require.NoError(t, err)
	pool, err := device.NewPool(cfg)
	require.NoError(t, err)

	s, err := NewApiServer(context.Background(), cfg, pool, st)
	require.NoError(t, err)
	server := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		server.Close()
		pool.Close()
		st.Close()
		os.RemoveAll(dir)
	})
	return &testEnv{pool: pool, state: st, server: server}
}

func (e *testEnv) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(e.server.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) post(t *testing.T, path string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(e.server.URL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestDevices(t *testing.T) {
	e := newTestEnv(t)
	resp := e.get(t, "/api/devices")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var infos []unidig.Info
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&infos))
	require.Len(t, infos, 2)
	assert.Equal(t, "dio", infos[0].Name)
	assert.True(t, infos[0].Interrupts)
	assert.True(t, infos[1].HasDAC)
}

func TestBits(t *testing.T) {
	e := newTestEnv(t)

	resp := e.post(t, "/api/bits/dio/set", &Mask{Mask: "0x0000000f"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = e.post(t, "/api/bits/dio/clear", &Mask{Mask: "0x3"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = e.get(t, "/api/bits/dio")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	bits := &Bits{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(bits))
	assert.Equal(t, "0x0000000c", bits.Value)

	assert.Equal(t, http.StatusNotFound, e.get(t, "/api/bits/nope").StatusCode)
	assert.Equal(t, http.StatusBadRequest, e.post(t, "/api/bits/dio/set", &Mask{Mask: "zz"}).StatusCode)
	assert.Equal(t, http.StatusNotFound, e.post(t, "/api/bits/dio/toggle", &Mask{Mask: "0x1"}).StatusCode)
}

func TestDAC(t *testing.T) {
	e := newTestEnv(t)
	assert.Equal(t, http.StatusOK, e.post(t, "/api/dac/hv", &DAC{Value: 200}).StatusCode)
	assert.Equal(t, http.StatusConflict, e.post(t, "/api/dac/dio", &DAC{Value: 200}).StatusCode)
}

func TestMasks(t *testing.T) {
	e := newTestEnv(t)
	resp := e.post(t, "/api/mask/dio/falling/set", &Mask{Mask: "0x6"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = e.post(t, "/api/mask/dio/rising/clear", &Mask{Mask: "0x1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	mask := &Mask{}
	require.NoError(t, json.NewDecoder(e.get(t, "/api/mask/dio/falling").Body).Decode(mask))
	assert.Equal(t, "0x00000006", mask.Mask)
	require.NoError(t, json.NewDecoder(e.get(t, "/api/mask/dio/rising").Body).Decode(mask))
	assert.Equal(t, "0x00000000", mask.Mask)
}

func TestLines(t *testing.T) {
	e := newTestEnv(t)
	resp := e.post(t, "/api/lines/dio", &Lines{Mask: "0x10", Value: "0x10"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	bits := &Bits{}
	require.NoError(t, json.NewDecoder(e.get(t, "/api/bits/dio").Body).Decode(bits))
	assert.Equal(t, "0x00000010", bits.Value)
	assert.Equal(t, http.StatusBadRequest, e.post(t, "/api/lines/dio", &Lines{Mask: "0x1", Value: "x"}).StatusCode)
}

func TestState(t *testing.T) {
	e := newTestEnv(t)
	assert.Equal(t, http.StatusNotFound, e.get(t, "/api/state/dio").StatusCode)
	require.NoError(t, e.state.Record("dio", 0x5))
	resp := e.get(t, "/api/state/dio")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap := &state.Snapshot{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(snap))
	assert.Equal(t, uint32(0x5), snap.Bits)
}

func TestReport(t *testing.T) {
	e := newTestEnv(t)
	resp := e.get(t, "/api/report/dio?details=1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := ioutil.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "unidig dio: IP-Unidig-I")
	assert.Contains(t, string(body), "risingMask=1")
	assert.Equal(t, http.StatusBadRequest, e.get(t, "/api/report/dio?details=x").StatusCode)
}

func TestShuttingDown(t *testing.T) {
	e := newTestEnv(t)
	d, err := e.pool.GetDeviceByName("dio")
	require.NoError(t, err)
	d.(*unidig.Device).Reboot()
	assert.Equal(t, http.StatusServiceUnavailable, e.get(t, "/api/bits/dio").StatusCode)
}

func TestSpecAndDocs(t *testing.T) {
	e := newTestEnv(t)
	resp := e.get(t, "/api/swagger.json")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var doc map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	assert.Equal(t, "2.0", doc["swagger"])

	resp = e.get(t, "/api/docs")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := ioutil.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "redoc")
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(errors.WithStack(config.ErrDeviceNotFound{Name: "x"})))
	assert.Equal(t, http.StatusConflict, statusFor(device.ErrNotSimulated{Name: "x"}))
	assert.Equal(t, http.StatusTooManyRequests, statusFor(unidig.ErrRegistrationLimit))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
}
