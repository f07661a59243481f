//go:build linux

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

package uio

import (
	"encoding/binary"
	"os"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"jinr.ru/greenlab/go-unidig/pkg/log"
)

// Open maps the module behind a UIO device such as /dev/uio0
func Open(path string, opts ...Option) (*Module, error) {
	o := &options{sysfsRoot: DefaultSysfsRoot}
	for _, opt := range opts {
		opt(o)
	}
	name := deviceName(path)

	ioSize, err := mapSize(o.sysfsRoot, name, ioMap)
	if err != nil {
		return nil, err
	}
	if ioSize == 0 {
		return nil, ErrNoMap{Device: name, Index: ioMap}
	}
	idSize, err := mapSize(o.sysfsRoot, name, idMap)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}

	page := unix.Getpagesize()
	ioMem, err := unix.Mmap(int(f.Fd()), int64(ioMap*page), ioSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "mmap map%d of %s", ioMap, path)
	}
	var idMem []byte
	if idSize > 0 {
		idMem, err = unix.Mmap(int(f.Fd()), int64(idMap*page), idSize, unix.PROT_READ, unix.MAP_SHARED)
		if err != nil {
			log.Warning("uio %s: ID space not mapped: %s", path, err)
			idMem = nil
		}
	}

	id, err := identify(words(idMem), o.id)
	if idMem != nil {
		unix.Munmap(idMem)
	}
	if err != nil {
		unix.Munmap(ioMem)
		f.Close()
		return nil, errors.Wrapf(err, "identify %s", path)
	}

	m := &Module{
		path: path,
		id:   id,
		io:   words(ioMem),
		irq:  &fileLine{f: f},
		release: func() error {
			return unix.Munmap(ioMem)
		},
	}
	log.Info("uio %s: %s, %d bytes of I/O space", path, id, ioSize)
	return m, nil
}

// words views mapped memory as 16-bit registers
func words(mem []byte) []uint16 {
	if len(mem) < 2 {
		return nil
	}
	return unsafe.Slice((*uint16)(unsafe.Pointer(&mem[0])), len(mem)/2)
}

// fileLine is the UIO interrupt protocol: write 1 to unmask, a 4-byte read
// blocks until the next interrupt and returns the event count.
type fileLine struct {
	f *os.File
}

func (l *fileLine) wait() (uint32, error) {
	var buf [4]byte
	if _, err := l.f.Read(buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func (l *fileLine) arm() error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], 1)
	_, err := l.f.Write(buf[:])
	return err
}

func (l *fileLine) close() error {
	return l.f.Close()
}
