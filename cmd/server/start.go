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

package server

import (
	"fmt"
	"net"

	"github.com/spf13/cobra"

	"jinr.ru/greenlab/go-unidig/pkg/command"
	"jinr.ru/greenlab/go-unidig/pkg/config"
)

const (
	IPOptionName      = "ip"
	ApiPortOptionName = "api-port"
	MsgPortOptionName = "msg-port"
	DBOptionName      = "db"
)

func NewStartCommand() *cobra.Command {
	var ip, dbPath string
	var apiPort, msgPort int
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the server driving the configured devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			if ip != "" {
				parsedIP := net.ParseIP(ip)
				if parsedIP == nil {
					return fmt.Errorf("wrong IP address %q", ip)
				}
				cfg.IP = &parsedIP
			}
			if apiPort != 0 {
				cfg.ApiPort = apiPort
			}
			if msgPort != 0 {
				cfg.MsgPort = msgPort
			}
			if cmd.Flags().Changed(DBOptionName) {
				cfg.DBPath = dbPath
			}
			return command.StartServer(cfg)
		},
	}
	cmd.Flags().StringVar(&ip, IPOptionName, "", fmt.Sprintf("IP to bind. E.g. %s", config.DefaultIP))
	cmd.Flags().IntVar(&apiPort, ApiPortOptionName, 0, fmt.Sprintf("HTTP API port. Default %d", config.DefaultApiPort))
	cmd.Flags().IntVar(&msgPort, MsgPortOptionName, 0, fmt.Sprintf("Message port. Default %d", config.DefaultMsgPort))
	cmd.Flags().StringVar(&dbPath, DBOptionName, "", "State database path. Empty disables the state store")

	return cmd
}
