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
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"

	"jinr.ru/greenlab/go-unidig/pkg/config"
	"jinr.ru/greenlab/go-unidig/pkg/layers"
	"jinr.ru/greenlab/go-unidig/pkg/log"
)

const (
	DefaultMsgTimeout = 2 * time.Second
	DefaultMsgRetries = 2
	// monitorReadStep bounds how long Monitor blocks before checking its context
	monitorReadStep = 200 * time.Millisecond
)

// ErrStatus is returned when the server replies with an error status
type ErrStatus struct {
	Cmd    layers.MsgCmd
	Device string
	Status int16
}

func (e ErrStatus) Error() string {
	return fmt.Sprintf("%s on %s failed with status %d", e.Cmd, e.Device, e.Status)
}

// MsgClient talks to the message server over UDP. Calls are serialized.
// Commands are idempotent, so a command whose reply times out is resent
// up to Retries times.
type MsgClient struct {
	Timeout time.Duration
	Retries int

	mu   sync.Mutex
	conn *net.UDPConn
	seq  uint16
}

func NewMsgClient(cfg *config.Config) (*MsgClient, error) {
	raddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", cfg.IP, cfg.MsgPort))
	if err != nil {
		return nil, err
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, err
	}
	return &MsgClient{Timeout: DefaultMsgTimeout, Retries: DefaultMsgRetries, conn: conn}, nil
}

func (c *MsgClient) Close() error {
	return c.conn.Close()
}

func (c *MsgClient) send(cmd layers.MsgCmd, device string, mask, value uint32) (uint16, error) {
	c.seq++
	m := layers.NewMsg(cmd, device, c.seq)
	m.Mask = mask
	m.Value = value
	data, err := layers.Encode(m)
	if err != nil {
		return 0, err
	}
	if _, err := c.conn.Write(data); err != nil {
		return 0, err
	}
	return m.Seq, nil
}

// receive reads frames until one matches seq or the deadline passes
func (c *MsgClient) receive(seq uint16, deadline time.Time) (*layers.MsgLayer, error) {
	buf := make([]byte, layers.MsgMaxFrameSize)
	for {
		if err := c.conn.SetReadDeadline(deadline); err != nil {
			return nil, err
		}
		n, err := c.conn.Read(buf)
		if err != nil {
			return nil, err
		}
		m, err := layers.Decode(buf[:n])
		if err != nil {
			log.Debug("Dropping bad frame: %s", err)
			continue
		}
		if m.Seq != seq {
			log.Debug("Dropping stale reply: seq %d, want %d", m.Seq, seq)
			continue
		}
		return m, nil
	}
}

// Do sends one command and waits for the matching reply
func (c *MsgClient) Do(cmd layers.MsgCmd, device string, mask, value uint32) (*layers.MsgLayer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var reply *layers.MsgLayer
	op := func() error {
		seq, err := c.send(cmd, device, mask, value)
		if err != nil {
			return backoff.Permanent(err)
		}
		reply, err = c.receive(seq, time.Now().Add(c.Timeout))
		if err != nil && !isTimeout(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	err := backoff.Retry(op, backoff.WithMaxRetries(&backoff.ExponentialBackOff{
		InitialInterval:     25 * time.Millisecond,
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         time.Second,
		MaxElapsedTime:      time.Minute,
		Clock:               backoff.SystemClock}, uint64(c.Retries)))
	if err != nil {
		return nil, errors.Wrapf(err, "waiting for %s reply", cmd)
	}
	if reply.Status != layers.StatusOk {
		return reply, ErrStatus{Cmd: cmd, Device: device, Status: reply.Status}
	}
	return reply, nil
}

func (c *MsgClient) SetBits(device string, mask uint32) error {
	_, err := c.Do(layers.CmdSetBits, device, mask, 0)
	return err
}

func (c *MsgClient) ClearBits(device string, mask uint32) error {
	_, err := c.Do(layers.CmdClearBits, device, mask, 0)
	return err
}

func (c *MsgClient) SetDAC(device string, value uint16) error {
	_, err := c.Do(layers.CmdSetDAC, device, 0, uint32(value))
	return err
}

func (c *MsgClient) ReadBits(device string) (uint32, error) {
	reply, err := c.Do(layers.CmdReadBits, device, 0, 0)
	if err != nil {
		return 0, err
	}
	return reply.Value, nil
}

// Monitor subscribes to bit changes of a device and calls fn with every
// value until ctx is done. The first value arrives right after subscribing.
func (c *MsgClient) Monitor(ctx context.Context, device string, mask uint32, fn func(bits uint32)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	seq, err := c.send(layers.CmdStartMonitor, device, mask, 0)
	if err != nil {
		return err
	}
	first := true
	for {
		deadline := time.Now().Add(monitorReadStep)
		if first {
			deadline = time.Now().Add(c.Timeout)
		}
		m, err := c.receive(seq, deadline)
		if err != nil {
			if isTimeout(err) && !first {
				if ctx.Err() != nil {
					return c.stopMonitor()
				}
				continue
			}
			return errors.Wrap(err, "waiting for monitor value")
		}
		if m.Status != layers.StatusOk {
			return ErrStatus{Cmd: layers.CmdStartMonitor, Device: device, Status: m.Status}
		}
		first = false
		fn(m.Value)
		if ctx.Err() != nil {
			return c.stopMonitor()
		}
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func (c *MsgClient) stopMonitor() error {
	seq, err := c.send(layers.CmdStopMonitor, "", 0, 0)
	if err != nil {
		return err
	}
	// late monitor values share the start seq and are skipped
	if _, err := c.receive(seq, time.Now().Add(c.Timeout)); err != nil {
		return errors.Wrap(err, "waiting for stop monitor reply")
	}
	return nil
}
