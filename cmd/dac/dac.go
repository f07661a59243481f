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

package dac

import (
	"github.com/spf13/cobra"

	"jinr.ru/greenlab/go-unidig/pkg/command"
	"jinr.ru/greenlab/go-unidig/pkg/config"
)

const (
	DeviceOptionName = "device"
	ValueOptionName  = "value"
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dac",
		Short: "High voltage comparator threshold",
	}
	cmd.AddCommand(NewSetCommand())
	return cmd
}

func NewSetCommand() *cobra.Command {
	var device string
	var value uint16
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set the comparator DAC of a high voltage module",
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient := command.NewApiClient(cfg)
			return apiClient.SetDAC(device, value)
		},
	}
	cmd.Flags().StringVar(&device, DeviceOptionName, config.DefaultDeviceName, "Device name")
	cmd.Flags().Uint16Var(&value, ValueOptionName, 0, "DAC value, 15 mV per step")
	cmd.MarkFlagRequired(ValueOptionName)
	return cmd
}
