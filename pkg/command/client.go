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

package command

import (
	"fmt"
	"strings"

	"github.com/imroc/req"
	"github.com/pkg/errors"

	"jinr.ru/greenlab/go-unidig/pkg/config"
	"jinr.ru/greenlab/go-unidig/pkg/srv/api"
	"jinr.ru/greenlab/go-unidig/pkg/state"
	"jinr.ru/greenlab/go-unidig/pkg/unidig"
)

type ApiClient struct {
	*config.Config
	ApiPrefix string
}

func NewApiClient(cfg *config.Config) *ApiClient {
	return &ApiClient{
		Config:    cfg,
		ApiPrefix: fmt.Sprintf("http://%s:%d%s", cfg.IP, cfg.ApiPort, api.ApiPrefix),
	}
}

func (c *ApiClient) url(format string, v ...interface{}) string {
	return c.ApiPrefix + fmt.Sprintf(format, v...)
}

func check(r *req.Resp) error {
	if r.Response().StatusCode != 200 {
		return errors.Errorf("%s: %s", r.Response().Status, strings.TrimSpace(r.String()))
	}
	return nil
}

func (c *ApiClient) get(url string, v interface{}) error {
	r, err := req.Get(url)
	if err != nil {
		return err
	}
	if err := check(r); err != nil {
		return err
	}
	return r.ToJSON(v)
}

func (c *ApiClient) post(url string, body interface{}) error {
	r, err := req.Post(url, req.BodyJSON(body))
	if err != nil {
		return err
	}
	return check(r)
}

// Devices lists the devices the server drives
func (c *ApiClient) Devices() ([]unidig.Info, error) {
	var infos []unidig.Info
	if err := c.get(c.url("/devices"), &infos); err != nil {
		return nil, err
	}
	return infos, nil
}

func (c *ApiClient) ReadBits(device string) (uint32, error) {
	bits := &api.Bits{}
	if err := c.get(c.url("/bits/%s", device), bits); err != nil {
		return 0, err
	}
	return api.ParseHex(bits.Value)
}

func (c *ApiClient) SetBits(device string, mask uint32) error {
	return c.post(c.url("/bits/%s/set", device), &api.Mask{Mask: api.Hex(mask)})
}

func (c *ApiClient) ClearBits(device string, mask uint32) error {
	return c.post(c.url("/bits/%s/clear", device), &api.Mask{Mask: api.Hex(mask)})
}

func (c *ApiClient) SetDAC(device string, value uint16) error {
	return c.post(c.url("/dac/%s", device), &api.DAC{Value: value})
}

// GetMask returns the rising or falling interrupt mask of a device
func (c *ApiClient) GetMask(device, edge string) (uint32, error) {
	mask := &api.Mask{}
	if err := c.get(c.url("/mask/%s/%s", device, edge), mask); err != nil {
		return 0, err
	}
	return api.ParseHex(mask.Mask)
}

func (c *ApiClient) SetMask(device, edge string, mask uint32) error {
	return c.post(c.url("/mask/%s/%s/set", device, edge), &api.Mask{Mask: api.Hex(mask)})
}

func (c *ApiClient) ClearMask(device, edge string, mask uint32) error {
	return c.post(c.url("/mask/%s/%s/clear", device, edge), &api.Mask{Mask: api.Hex(mask)})
}

// SetLines drives the input lines of a simulated device
func (c *ApiClient) SetLines(device string, mask, value uint32) error {
	return c.post(c.url("/lines/%s", device), &api.Lines{Mask: api.Hex(mask), Value: api.Hex(value)})
}

// State returns the last recorded snapshot of a device
func (c *ApiClient) State(device string) (*state.Snapshot, error) {
	snap := &state.Snapshot{}
	if err := c.get(c.url("/state/%s", device), snap); err != nil {
		return nil, err
	}
	return snap, nil
}

func (c *ApiClient) Report(device string, details int) (string, error) {
	r, err := req.Get(c.url("/report/%s", device), req.Param{"details": details})
	if err != nil {
		return "", err
	}
	if err := check(r); err != nil {
		return "", err
	}
	return r.String(), nil
}
