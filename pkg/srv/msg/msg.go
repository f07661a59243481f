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

package msg

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/gopacket"

	"jinr.ru/greenlab/go-unidig/pkg/config"
	"jinr.ru/greenlab/go-unidig/pkg/device/ifc"
	"jinr.ru/greenlab/go-unidig/pkg/layers"
	"jinr.ru/greenlab/go-unidig/pkg/log"
	"jinr.ru/greenlab/go-unidig/pkg/srv"
	"jinr.ru/greenlab/go-unidig/pkg/unidig"
)

type monitor struct {
	device ifc.Device
	reg    *unidig.Registration
}

// MsgServer answers bit I/O commands over UDP and streams bit changes to
// monitoring peers. Each peer has at most one monitor.
type MsgServer struct {
	srv.Server
	pool ifc.Pool

	mu       sync.Mutex
	monitors map[string]*monitor
}

func NewMsgServer(ctx context.Context, cfg *config.Config, pool ifc.Pool) (*MsgServer, error) {
	log.Debug("Initializing message server with address: %s port: %d", cfg.IP, cfg.MsgPort)

	uaddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", cfg.IP, cfg.MsgPort))
	if err != nil {
		return nil, err
	}
	return &MsgServer{
		Server: srv.Server{
			Context: ctx,
			UDPAddr: uaddr,
			ChIn:    make(chan srv.InPacket),
			ChOut:   make(chan srv.OutPacket),
		},
		pool:     pool,
		monitors: map[string]*monitor{},
	}, nil
}

func (s *MsgServer) Run() error {
	conn, err := net.ListenUDP("udp", s.UDPAddr)
	if err != nil {
		return err
	}
	log.Info("Starting message server: %s", conn.LocalAddr())
	return s.Serve(conn)
}

// Serve runs the pipeline on conn until the context is done. conn is closed on return.
func (s *MsgServer) Serve(conn *net.UDPConn) error {
	defer conn.Close()
	defer s.stopAllMonitors()

	errChan := make(chan error, 2)

	// Read UDP packets from wire and put them to input queue
	go func() {
		buffer := make([]byte, 65536)
		for {
			length, udpAddr, readErr := conn.ReadFromUDP(buffer)
			if readErr != nil {
				errChan <- readErr
				return
			}
			data := make([]byte, length)
			copy(data, buffer[:length])
			captureInfo := gopacket.CaptureInfo{
				Length:        length,
				CaptureLength: length,
				Timestamp:     time.Now(),
				AncillaryData: []interface{}{udpAddr},
			}
			select {
			case s.ChIn <- srv.InPacket{Data: data, CaptureInfo: captureInfo}:
			case <-s.Context.Done():
				return
			}
		}
	}()

	// Read captured packets from input queue, decode and handle them
	go func() {
		source := gopacket.NewPacketSource(s, layers.MsgLayerType)
		for packet := range source.Packets() {
			addr, packetErr := srv.GetAddrPort(packet)
			if packetErr != nil {
				log.Error(packetErr.Error())
				continue
			}
			layer := packet.Layer(layers.MsgLayerType)
			if layer == nil {
				log.Debug("Drop packet from %s. Not a message frame", addr)
				continue
			}
			reply := s.Handle(layer.(*layers.MsgLayer), addr)
			if reply == nil {
				continue
			}
			if err := s.sendMsg(reply, addr); err != nil {
				return
			}
		}
	}()

	// Read packets from output queue and send them to wire
	go func() {
		for {
			select {
			case outPacket := <-s.ChOut:
				if _, sendErr := conn.WriteToUDP(outPacket.Data, outPacket.UDPAddr); sendErr != nil {
					log.Error("Error while sending data to %s", outPacket.UDPAddr)
					errChan <- sendErr
					return
				}
			case <-s.Context.Done():
				return
			}
		}
	}()

	select {
	case <-s.Context.Done():
		return s.Context.Err()
	case err := <-errChan:
		return err
	}
}

func (s *MsgServer) sendMsg(m *layers.MsgLayer, addr *net.UDPAddr) error {
	data, err := layers.Encode(m)
	if err != nil {
		log.Error("Error while serializing reply to %s: %s", addr, err)
		return nil
	}
	return s.Send(data, addr)
}

// Handle executes one command and returns the reply to send, if any
func (s *MsgServer) Handle(m *layers.MsgLayer, addr *net.UDPAddr) *layers.MsgLayer {
	log.Debug("Handling %s from %s: device: %s mask: %x value: %x", m.Cmd, addr, m.Device, m.Mask, m.Value)

	if m.Cmd == layers.CmdStopMonitor {
		if s.stopMonitor(addr.String()) {
			return m.Reply(layers.StatusOk, 0)
		}
		return m.Reply(layers.StatusError, 0)
	}

	device, err := s.pool.GetDeviceByName(m.Device)
	if err != nil {
		log.Debug("Message for unknown device: %s", m.Device)
		return m.Reply(layers.StatusError, 0)
	}

	switch m.Cmd {
	case layers.CmdSetBits:
		return statusReply(m, device.SetBits(m.Mask), 0)
	case layers.CmdClearBits:
		return statusReply(m, device.ClearBits(m.Mask), 0)
	case layers.CmdSetDAC:
		if m.Value > 0xffff {
			log.Debug("DAC value 0x%x for %s does not fit 16 bits", m.Value, m.Device)
			return m.Reply(layers.StatusError, 0)
		}
		return statusReply(m, device.SetDAC(uint16(m.Value)), 0)
	case layers.CmdReadBits:
		bits, err := device.ReadBits()
		return statusReply(m, err, bits)
	case layers.CmdStartMonitor:
		if err := s.startMonitor(m, device, addr); err != nil {
			log.Debug("Start monitor for %s failed: %s", addr, err)
			return m.Reply(layers.StatusError, 0)
		}
		// the first bit value is the acknowledgement
		return nil
	}
	log.Debug("Unknown command %d from %s", uint16(m.Cmd), addr)
	return m.Reply(layers.StatusError, 0)
}

func statusReply(m *layers.MsgLayer, err error, value uint32) *layers.MsgLayer {
	if err != nil {
		log.Debug("%s on %s failed: %s", m.Cmd, m.Device, err)
		return m.Reply(layers.StatusError, value)
	}
	return m.Reply(layers.StatusOk, value)
}

// startMonitor replaces the peer's monitor with a new on-change client
func (s *MsgServer) startMonitor(m *layers.MsgLayer, device ifc.Device, addr *net.UDPAddr) error {
	mask := m.Mask
	if mask == 0 {
		mask = ^uint32(0)
	}
	key := addr.String()
	s.stopMonitor(key)

	request := *m
	reg, err := device.Register(func(_ interface{}, bits uint32) {
		reply := request.Reply(layers.StatusOk, bits)
		if err := s.sendMsg(reply, addr); err != nil {
			log.Debug("Monitor reply to %s dropped: %s", addr, err)
		}
	}, nil, mask)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.monitors[key] = &monitor{device: device, reg: reg}
	s.mu.Unlock()
	return nil
}

func (s *MsgServer) stopMonitor(key string) bool {
	s.mu.Lock()
	mon, ok := s.monitors[key]
	delete(s.monitors, key)
	s.mu.Unlock()
	if !ok {
		return false
	}
	if err := mon.device.Cancel(mon.reg); err != nil {
		log.Debug("Cancel monitor of %s: %s", key, err)
	}
	return true
}

func (s *MsgServer) stopAllMonitors() {
	s.mu.Lock()
	keys := make([]string, 0, len(s.monitors))
	for key := range s.monitors {
		keys = append(keys, key)
	}
	s.mu.Unlock()
	for _, key := range keys {
		s.stopMonitor(key)
	}
}

// Monitors returns the number of active monitors
func (s *MsgServer) Monitors() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.monitors)
}
