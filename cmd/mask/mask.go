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

package mask

import (
	"fmt"

	"github.com/spf13/cobra"

	"jinr.ru/greenlab/go-unidig/pkg/command"
	"jinr.ru/greenlab/go-unidig/pkg/config"
	"jinr.ru/greenlab/go-unidig/pkg/srv/api"
)

const (
	DeviceOptionName = "device"
	EdgeOptionName   = "edge"
	MaskOptionName   = "mask"
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mask",
		Short: "Rising and falling edge interrupt masks",
	}
	cmd.AddCommand(NewGetCommand())
	cmd.AddCommand(NewUpdateCommand("set"))
	cmd.AddCommand(NewUpdateCommand("clear"))
	return cmd
}

func checkEdge(edge string) error {
	if edge != "rising" && edge != "falling" {
		return fmt.Errorf("wrong edge %q. Must be one of rising/falling", edge)
	}
	return nil
}

func NewGetCommand() *cobra.Command {
	var device, edge string
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Get an edge mask",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkEdge(edge); err != nil {
				return err
			}
			apiClient := command.NewApiClient(cfg)
			mask, err := apiClient.GetMask(device, edge)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), api.Hex(mask))
			return nil
		},
	}
	cmd.Flags().StringVar(&device, DeviceOptionName, config.DefaultDeviceName, "Device name")
	cmd.Flags().StringVar(&edge, EdgeOptionName, "rising", "Edge. Must be one of rising/falling")
	return cmd
}

// NewUpdateCommand builds the set or clear command
func NewUpdateCommand(action string) *cobra.Command {
	var device, edge, mask string
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   action,
		Short: fmt.Sprintf("%s bits of an edge mask", action),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkEdge(edge); err != nil {
				return err
			}
			maskInt, err := api.ParseHex(mask)
			if err != nil {
				return err
			}
			apiClient := command.NewApiClient(cfg)
			if action == "clear" {
				return apiClient.ClearMask(device, edge, maskInt)
			}
			return apiClient.SetMask(device, edge, maskInt)
		},
	}
	cmd.Flags().StringVar(&device, DeviceOptionName, config.DefaultDeviceName, "Device name")
	cmd.Flags().StringVar(&edge, EdgeOptionName, "rising", "Edge. Must be one of rising/falling")
	cmd.Flags().StringVar(&mask, MaskOptionName, "", "Bit mask. E.g. 0x0f")
	cmd.MarkFlagRequired(MaskOptionName)
	return cmd
}
