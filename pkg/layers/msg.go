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

package layers

import (
	"encoding/binary"
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/pkg/errors"
	"github.com/snksoft/crc"

	"jinr.ru/greenlab/go-unidig/pkg/log"
)

const (
	// MsgLayerNum identifies the layer
	MsgLayerNum = 2001
	// MsgSync is a magic number that appears in the beginning of each message frame
	MsgSync = 0x2A55
	// MsgHeaderSize is sync, cmd, status, seq, mask, value and name length
	MsgHeaderSize = 18
	// MsgCrcSize is the crc32 tail of each frame
	MsgCrcSize = 4
	// MsgMaxNameLen bounds the device name carried in a frame
	MsgMaxNameLen = 64
	// MsgMaxFrameSize is the max size of a frame including header and CRC
	MsgMaxFrameSize = MsgHeaderSize + MsgMaxNameLen + MsgCrcSize
)

type MsgCmd uint16

const (
	CmdSetBits      MsgCmd = 1
	CmdClearBits    MsgCmd = 2
	CmdStartMonitor MsgCmd = 3
	CmdStopMonitor  MsgCmd = 4
	CmdSetDAC       MsgCmd = 5
	CmdReadBits     MsgCmd = 6
)

var msgCmdNames = map[MsgCmd]string{
	CmdSetBits:      "SetBits",
	CmdClearBits:    "ClearBits",
	CmdStartMonitor: "StartMonitor",
	CmdStopMonitor:  "StopMonitor",
	CmdSetDAC:       "SetDAC",
	CmdReadBits:     "ReadBits",
}

func (c MsgCmd) String() string {
	if name, ok := msgCmdNames[c]; ok {
		return name
	}
	return fmt.Sprintf("UnknownCmd(%d)", uint16(c))
}

// Status values carried in replies
const (
	StatusOk    int16 = 0
	StatusError int16 = -1
)

type MsgHeader struct {
	Sync   uint16
	Cmd    MsgCmd
	Status int16
	Seq    uint16
	Mask   uint32
	Value  uint32
}

// MsgLayer is one command or reply of the digital I/O message protocol.
// The same frame travels in both directions, replies echo Cmd and Seq.
type MsgLayer struct {
	layers.BaseLayer
	MsgHeader
	Device string
	Crc    uint32
}

var crcTable = crc.NewTable(crc.CRC32)

func checksum(data []byte) uint32 {
	return crcTable.CRC32(crcTable.UpdateCrc(crcTable.InitCrc(), data))
}

var MsgLayerType = gopacket.RegisterLayerType(MsgLayerNum,
	gopacket.LayerTypeMetadata{Name: "MsgLayerType", Decoder: gopacket.DecodeFunc(decodeMsgLayer)})

func (m *MsgLayer) LayerType() gopacket.LayerType {
	return MsgLayerType
}

// NewMsg fills in the sync word
func NewMsg(cmd MsgCmd, device string, seq uint16) *MsgLayer {
	m := &MsgLayer{Device: device}
	m.Sync = MsgSync
	m.Cmd = cmd
	m.Seq = seq
	return m
}

// Reply builds the answer to m with the given status
func (m *MsgLayer) Reply(status int16, value uint32) *MsgLayer {
	r := NewMsg(m.Cmd, m.Device, m.Seq)
	r.Status = status
	r.Mask = m.Mask
	r.Value = value
	return r
}

// SerializeTo serializes the layer into bytes and writes the bytes to the SerializeBuffer
func (m *MsgLayer) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	if len(m.Device) > MsgMaxNameLen {
		return errors.Errorf("device name too long: %d > %d", len(m.Device), MsgMaxNameLen)
	}
	size := MsgHeaderSize + len(m.Device)
	bytes, err := b.PrependBytes(size)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(bytes[0:2], m.Sync)
	binary.LittleEndian.PutUint16(bytes[2:4], uint16(m.Cmd))
	binary.LittleEndian.PutUint16(bytes[4:6], uint16(m.Status))
	binary.LittleEndian.PutUint16(bytes[6:8], m.Seq)
	binary.LittleEndian.PutUint32(bytes[8:12], m.Mask)
	binary.LittleEndian.PutUint32(bytes[12:16], m.Value)
	binary.LittleEndian.PutUint16(bytes[16:18], uint16(len(m.Device)))
	copy(bytes[18:], m.Device)

	m.Crc = checksum(bytes[:size])
	tail, err := b.AppendBytes(MsgCrcSize)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(tail, m.Crc)
	return nil
}

// DecodeFromBytes attempts to decode the byte slice as a message frame
func (m *MsgLayer) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < MsgHeaderSize+MsgCrcSize {
		df.SetTruncated()
		return errors.New("Msg packet too short")
	}
	if binary.LittleEndian.Uint16(data[0:2]) != MsgSync {
		return errors.Errorf("Wrong Msg sync. Must be 0x%04x", MsgSync)
	}
	nameLen := int(binary.LittleEndian.Uint16(data[16:18]))
	if nameLen > MsgMaxNameLen {
		return errors.Errorf("Msg device name too long: %d", nameLen)
	}
	size := MsgHeaderSize + nameLen
	if len(data) < size+MsgCrcSize {
		df.SetTruncated()
		return errors.New("Msg packet too short for device name")
	}
	sum := binary.LittleEndian.Uint32(data[size : size+MsgCrcSize])
	if sum != checksum(data[:size]) {
		return errors.Errorf("Wrong Msg crc 0x%08x", sum)
	}

	m.BaseLayer = layers.BaseLayer{
		Contents: data[:size+MsgCrcSize],
		Payload:  data[size+MsgCrcSize:],
	}
	m.Sync = MsgSync
	m.Cmd = MsgCmd(binary.LittleEndian.Uint16(data[2:4]))
	m.Status = int16(binary.LittleEndian.Uint16(data[4:6]))
	m.Seq = binary.LittleEndian.Uint16(data[6:8])
	m.Mask = binary.LittleEndian.Uint32(data[8:12])
	m.Value = binary.LittleEndian.Uint32(data[12:16])
	m.Device = string(data[MsgHeaderSize:size])
	m.Crc = sum
	return nil
}

func (m *MsgLayer) CanDecode() gopacket.LayerClass {
	return MsgLayerType
}

func (m *MsgLayer) NextLayerType() gopacket.LayerType {
	return gopacket.LayerTypePayload
}

func decodeMsgLayer(data []byte, p gopacket.PacketBuilder) error {
	m := &MsgLayer{}
	err := m.DecodeFromBytes(data, p)
	if err != nil {
		log.Debug("Error while decoding msg layer: %s", err)
		return err
	}
	p.AddLayer(m)
	if len(m.Payload) == 0 {
		return nil
	}
	return p.NextDecoder(m.NextLayerType())
}

// Encode serializes a message into a new buffer
func Encode(m *MsgLayer) ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{}, m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses one frame
func Decode(data []byte) (*MsgLayer, error) {
	packet := gopacket.NewPacket(data, MsgLayerType, gopacket.Default)
	if errLayer := packet.ErrorLayer(); errLayer != nil {
		return nil, errLayer.Error()
	}
	layer := packet.Layer(MsgLayerType)
	if layer == nil {
		return nil, errors.New("no Msg layer in packet")
	}
	return layer.(*MsgLayer), nil
}
