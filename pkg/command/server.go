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
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"jinr.ru/greenlab/go-unidig/pkg/config"
	"jinr.ru/greenlab/go-unidig/pkg/device"
	"jinr.ru/greenlab/go-unidig/pkg/log"
	"jinr.ru/greenlab/go-unidig/pkg/srv/api"
	"jinr.ru/greenlab/go-unidig/pkg/srv/msg"
	"jinr.ru/greenlab/go-unidig/pkg/state"
)

// StartServer runs the driver until SIGINT or SIGTERM
func StartServer(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err := RunServer(ctx, cfg)
	if err == context.Canceled {
		log.Info("Server stopped")
		return nil
	}
	return err
}

// RunServer opens the configured devices and serves the message and HTTP
// APIs until ctx is done or one of the servers fails
func RunServer(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	pool, err := device.NewPool(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	var reader api.StateReader
	if cfg.DBPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
			return err
		}
		names := make([]string, 0, len(cfg.Devices))
		for _, d := range cfg.Devices {
			names = append(names, d.Name)
		}
		st, err := state.NewState(cfg.DBPath, names)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := pool.Record(st); err != nil {
			return err
		}
		reader = st
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	msgServer, err := msg.NewMsgServer(ctx, cfg, pool)
	if err != nil {
		return err
	}
	apiServer, err := api.NewApiServer(ctx, cfg, pool, reader)
	if err != nil {
		return err
	}

	pollerDone := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(pollerDone)
	}()
	// pool.Close must not run while the pollers still hold the devices
	defer func() {
		cancel()
		<-pollerDone
	}()

	errChan := make(chan error, 2)
	go func() { errChan <- msgServer.Run() }()
	go func() { errChan <- apiServer.Run() }()

	err = <-errChan
	cancel()
	<-errChan
	return err
}
