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

package bits

import (
	"fmt"

	"github.com/spf13/cobra"

	"jinr.ru/greenlab/go-unidig/pkg/command"
	"jinr.ru/greenlab/go-unidig/pkg/config"
	"jinr.ru/greenlab/go-unidig/pkg/srv/api"
)

const (
	DeviceOptionName = "device"
	MaskOptionName   = "mask"
	MsgOptionName    = "msg"
)

// BitsClient is served by both the HTTP and the message clients
type BitsClient interface {
	ReadBits(device string) (uint32, error)
	SetBits(device string, mask uint32) error
	ClearBits(device string, mask uint32) error
}

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bits",
		Short: "Read and write digital I/O bits",
	}
	cmd.AddCommand(NewReadCommand())
	cmd.AddCommand(NewWriteCommand("set"))
	cmd.AddCommand(NewWriteCommand("clear"))
	return cmd
}

func newClient(cfg *config.Config, useMsg bool) (BitsClient, func(), error) {
	if !useMsg {
		return command.NewApiClient(cfg), func() {}, nil
	}
	c, err := command.NewMsgClient(cfg)
	if err != nil {
		return nil, nil, err
	}
	return c, func() { c.Close() }, nil
}

func NewReadCommand() *cobra.Command {
	var device string
	var useMsg bool
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "read",
		Short: "Read input bits",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, closeFn, err := newClient(cfg, useMsg)
			if err != nil {
				return err
			}
			defer closeFn()
			bits, err := c.ReadBits(device)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), api.Hex(bits))
			return nil
		},
	}
	cmd.Flags().StringVar(&device, DeviceOptionName, config.DefaultDeviceName, "Device name")
	cmd.Flags().BoolVar(&useMsg, MsgOptionName, false, "Use the message protocol instead of HTTP")
	return cmd
}

// NewWriteCommand builds the set or clear command
func NewWriteCommand(action string) *cobra.Command {
	var device, mask string
	var useMsg bool
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   action,
		Short: fmt.Sprintf("%s output bits in mask", action),
		RunE: func(cmd *cobra.Command, args []string) error {
			maskInt, err := api.ParseHex(mask)
			if err != nil {
				return err
			}
			c, closeFn, err := newClient(cfg, useMsg)
			if err != nil {
				return err
			}
			defer closeFn()
			if action == "clear" {
				return c.ClearBits(device, maskInt)
			}
			return c.SetBits(device, maskInt)
		},
	}
	cmd.Flags().StringVar(&device, DeviceOptionName, config.DefaultDeviceName, "Device name")
	cmd.Flags().StringVar(&mask, MaskOptionName, "", "Bit mask. E.g. 0x0f")
	cmd.MarkFlagRequired(MaskOptionName)
	cmd.Flags().BoolVar(&useMsg, MsgOptionName, false, "Use the message protocol instead of HTTP")
	return cmd
}
