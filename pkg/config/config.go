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

package config

import (
	"fmt"
	"io/ioutil"
	"net"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

type Device struct {
	Name    string `yaml:"name"`
	Backend string `yaml:"backend"`
	// UIO is the device node, e.g. /dev/uio0, used by the uio backend
	UIO          string `yaml:"uio,omitempty"`
	Manufacturer uint8  `yaml:"manufacturer"`
	Model        uint8  `yaml:"model"`
	PollMs       int    `yaml:"poll_ms"`
	IntVec       uint8  `yaml:"int_vec"`
	RisingMask   uint32 `yaml:"rising_mask"`
	FallingMask  uint32 `yaml:"falling_mask"`
	// SignalMask defaults to rising|falling when nil
	SignalMask *uint32 `yaml:"signal_mask,omitempty"`
	MaxClients int     `yaml:"max_clients"`
}

type Config struct {
	LogLevel string
	IP       *net.IP
	ApiPort  int
	MsgPort  int
	DBPath   string
	Devices  []*Device
	filepath string
}

// yamlConfig is the on-disk form, the IP is kept as text
type yamlConfig struct {
	LogLevel string    `yaml:"log_level"`
	IP       string    `yaml:"ip"`
	ApiPort  int       `yaml:"api_port"`
	MsgPort  int       `yaml:"msg_port"`
	DBPath   string    `yaml:"db_path"`
	Devices  []*Device `yaml:"devices"`
}

func (c *Config) toYaml() *yamlConfig {
	y := &yamlConfig{
		LogLevel: c.LogLevel,
		ApiPort:  c.ApiPort,
		MsgPort:  c.MsgPort,
		DBPath:   c.DBPath,
	}
	if c.IP != nil {
		y.IP = c.IP.String()
	}
	y.Devices = c.Devices
	return y
}

func (c *Config) fromYaml(y *yamlConfig) error {
	c.LogLevel = y.LogLevel
	c.ApiPort = y.ApiPort
	c.MsgPort = y.MsgPort
	c.DBPath = y.DBPath
	if y.IP != "" {
		ip := net.ParseIP(y.IP)
		if ip == nil {
			return ErrInvalidConfig{What: fmt.Sprintf("bad ip %q", y.IP)}
		}
		c.IP = &ip
	}
	c.Devices = y.Devices
	return nil
}

func (c *Config) Path() string {
	return c.filepath
}

func (c *Config) SetPath(path string) {
	c.filepath = path
}

func (c *Config) Persist(overwrite bool) error {
	if _, err := os.Stat(c.filepath); err == nil && !overwrite {
		return ErrConfigFileExists{Path: c.filepath}
	}

	data, err := yaml.Marshal(c.toYaml())
	if err != nil {
		return err
	}

	dir := filepath.Dir(c.filepath)
	err = os.MkdirAll(dir, 0755)
	if err != nil {
		return err
	}

	return ioutil.WriteFile(c.filepath, data, 0644)
}

// Load reads the config file on top of the current values. A missing file
// is not an error, the defaults stay in place.
func (c *Config) Load() error {
	data, err := ioutil.ReadFile(c.filepath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	y := c.toYaml()
	if err := yaml.Unmarshal(data, y); err != nil {
		return err
	}
	if err := c.fromYaml(y); err != nil {
		return err
	}
	for _, d := range c.Devices {
		d.setDefaults()
	}
	return nil
}

// Marshal returns the config as it would be written to disk
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c.toYaml())
}

func (c *Config) GetDeviceByName(name string) (*Device, error) {
	for _, d := range c.Devices {
		if d.Name == name {
			return d, nil
		}
	}
	return nil, ErrDeviceNotFound{Name: name}
}

func (c *Config) Validate() error {
	if c.ApiPort <= 0 || c.ApiPort > 65535 {
		return ErrInvalidConfig{What: fmt.Sprintf("api_port %d", c.ApiPort)}
	}
	if c.MsgPort <= 0 || c.MsgPort > 65535 {
		return ErrInvalidConfig{What: fmt.Sprintf("msg_port %d", c.MsgPort)}
	}
	names := map[string]bool{}
	for _, d := range c.Devices {
		if d.Name == "" {
			return ErrInvalidConfig{What: "device without name"}
		}
		if names[d.Name] {
			return ErrInvalidConfig{What: fmt.Sprintf("duplicate device %s", d.Name)}
		}
		names[d.Name] = true
		switch d.Backend {
		case BackendSim:
		case BackendUIO:
			if d.UIO == "" {
				return ErrInvalidConfig{What: fmt.Sprintf("device %s: uio path is empty", d.Name)}
			}
		default:
			return ErrInvalidConfig{What: fmt.Sprintf("device %s: unknown backend %q", d.Name, d.Backend)}
		}
		if d.MaxClients < 0 {
			return ErrInvalidConfig{What: fmt.Sprintf("device %s: max_clients %d", d.Name, d.MaxClients)}
		}
	}
	return nil
}

func (d *Device) setDefaults() {
	if d.Backend == "" {
		d.Backend = BackendSim
	}
	if d.PollMs <= 0 {
		d.PollMs = DefaultPollMs
	}
}

func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}
	return filepath.Join(home, ConfigDir)
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), ConfigFile)
}

func NewDefaultConfig() *Config {
	ip := net.ParseIP(DefaultIP)
	return &Config{
		LogLevel: DefaultLogLevel,
		IP:       &ip,
		ApiPort:  DefaultApiPort,
		MsgPort:  DefaultMsgPort,
		DBPath:   filepath.Join(DefaultConfigDir(), DefaultDBFile),
		Devices: []*Device{
			{
				Name:         DefaultDeviceName,
				Backend:      BackendSim,
				Manufacturer: DefaultManufacturer,
				Model:        DefaultModel,
				PollMs:       DefaultPollMs,
			},
		},
		filepath: DefaultConfigPath(),
	}
}
