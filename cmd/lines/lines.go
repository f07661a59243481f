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

package lines

import (
	"github.com/spf13/cobra"

	"jinr.ru/greenlab/go-unidig/pkg/command"
	"jinr.ru/greenlab/go-unidig/pkg/config"
	"jinr.ru/greenlab/go-unidig/pkg/srv/api"
)

const (
	DeviceOptionName = "device"
	MaskOptionName   = "mask"
	ValueOptionName  = "value"
)

func NewCommand() *cobra.Command {
	var device, mask, value string
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "lines",
		Short: "Drive the input lines of a simulated device",
		RunE: func(cmd *cobra.Command, args []string) error {
			maskInt, err := api.ParseHex(mask)
			if err != nil {
				return err
			}
			valueInt, err := api.ParseHex(value)
			if err != nil {
				return err
			}
			apiClient := command.NewApiClient(cfg)
			return apiClient.SetLines(device, maskInt, valueInt)
		},
	}
	cmd.Flags().StringVar(&device, DeviceOptionName, config.DefaultDeviceName, "Device name")
	cmd.Flags().StringVar(&mask, MaskOptionName, "", "Lines to drive. E.g. 0x0f")
	cmd.Flags().StringVar(&value, ValueOptionName, "0x0", "Levels of the lines in mask")
	cmd.MarkFlagRequired(MaskOptionName)
	return cmd
}
