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

package devices

import (
	"fmt"

	"github.com/spf13/cobra"

	"jinr.ru/greenlab/go-unidig/pkg/command"
	"jinr.ru/greenlab/go-unidig/pkg/config"
)

func NewListCommand() *cobra.Command {
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient := command.NewApiClient(cfg)
			infos, err := apiClient.Devices()
			if err != nil {
				return err
			}
			for _, info := range infos {
				fmt.Fprintf(cmd.OutOrStdout(), "%-12s %-24s base=%s interrupts=%v dac=%v clients=%d\n",
					info.Name, info.Model, info.Base, info.Interrupts, info.HasDAC, info.Clients)
				if info.Rebooting {
					fmt.Fprintf(cmd.OutOrStdout(), "!!! Device %s is shutting down\n", info.Name)
				}
			}
			return nil
		},
	}
	return cmd
}

func NewReportCommand() *cobra.Command {
	var details int
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "report DEVICE",
		Short: "Print the driver report of a device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient := command.NewApiClient(cfg)
			report, err := apiClient.Report(args[0], details)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().IntVar(&details, DetailsOptionName, 0, "Level of details, 1 adds masks and clients")
	return cmd
}

func NewStateCommand() *cobra.Command {
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "state DEVICE",
		Short: "Print the last recorded bits of a device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient := command.NewApiClient(cfg)
			snap, err := apiClient.State(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: bits=0x%08x changes=%d timestamp=%d\n",
				snap.Device, snap.Bits, snap.Changes, snap.Timestamp)
			return nil
		},
	}
	return cmd
}
