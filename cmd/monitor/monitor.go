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

package monitor

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"jinr.ru/greenlab/go-unidig/pkg/command"
	"jinr.ru/greenlab/go-unidig/pkg/config"
	"jinr.ru/greenlab/go-unidig/pkg/srv/api"
)

const (
	DeviceOptionName = "device"
	MaskOptionName   = "mask"
)

func NewCommand() *cobra.Command {
	var device, mask string
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Print input bits every time they change",
		RunE: func(cmd *cobra.Command, args []string) error {
			maskInt, err := api.ParseHex(mask)
			if err != nil {
				return err
			}
			c, err := command.NewMsgClient(cfg)
			if err != nil {
				return err
			}
			defer c.Close()
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()
			return c.Monitor(ctx, device, maskInt, func(bits uint32) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n",
					time.Now().Format(time.RFC3339Nano), device, api.Hex(bits))
			})
		},
	}
	cmd.Flags().StringVar(&device, DeviceOptionName, config.DefaultDeviceName, "Device name")
	cmd.Flags().StringVar(&mask, MaskOptionName, "0x0", "Bits to watch, 0 watches all")
	return cmd
}
