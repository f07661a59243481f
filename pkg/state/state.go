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

package state

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
	"sigs.k8s.io/yaml"

	"jinr.ru/greenlab/go-unidig/pkg/log"
)

const (
	BucketPrefix = "unidig_"
	SnapshotKey  = "snapshot"
)

// Snapshot is the last input word seen for a device
type Snapshot struct {
	Device string `json:"device"`
	Bits   uint32 `json:"bits"`
	// Changes counts the recorded updates since the bucket was created
	Changes uint64 `json:"changes"`
	// Timestamp is milliseconds since the epoch
	Timestamp uint64 `json:"timestamp"`
}

// ErrNoSnapshot returned when nothing was recorded for a device yet
type ErrNoSnapshot struct {
	Device string
}

func (e ErrNoSnapshot) Error() string {
	return fmt.Sprintf("No state recorded for device: %s", e.Device)
}

type State struct {
	DB *bbolt.DB
}

func NewState(dbPath string, devices []string) (*State, error) {
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "open state database %s", dbPath)
	}
	s := &State{DB: db}
	for _, name := range devices {
		if err := s.CreateBucket(name); err != nil {
			db.Close()
			return nil, err
		}
	}
	return s, nil
}

// Close ...
func (s *State) Close() error {
	return s.DB.Close()
}

func BucketName(deviceName string) string {
	return fmt.Sprintf("%s%s", BucketPrefix, deviceName)
}

func (s *State) CreateBucket(deviceName string) error {
	return s.DB.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(BucketName(deviceName)))
		return err
	})
}

func now() uint64 {
	return uint64(time.Now().UnixNano() / int64(time.Millisecond))
}

// Record stores the bits of a device and bumps its change counter
func (s *State) Record(deviceName string, bits uint32) error {
	log.Debug("Recording state: device: %s bits: %x", deviceName, bits)
	return s.DB.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(BucketName(deviceName)))
		if b == nil {
			return errors.Errorf("Bucket not found: %s", BucketName(deviceName))
		}
		snap := &Snapshot{Device: deviceName}
		if data := b.Get([]byte(SnapshotKey)); data != nil {
			if err := yaml.Unmarshal(data, snap); err != nil {
				return err
			}
		}
		snap.Bits = bits
		snap.Changes++
		snap.Timestamp = now()
		data, err := yaml.Marshal(snap)
		if err != nil {
			return err
		}
		return b.Put([]byte(SnapshotKey), data)
	})
}

func (s *State) Get(deviceName string) (*Snapshot, error) {
	snap := &Snapshot{}
	if err := s.DB.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(BucketName(deviceName)))
		if b == nil {
			return errors.Errorf("Bucket not found: %s", BucketName(deviceName))
		}
		data := b.Get([]byte(SnapshotKey))
		if data == nil {
			return ErrNoSnapshot{Device: deviceName}
		}
		return yaml.Unmarshal(data, snap)
	}); err != nil {
		return nil, err
	}
	return snap, nil
}

// GetAll returns the snapshots of every device that has one
func (s *State) GetAll() ([]*Snapshot, error) {
	var snaps []*Snapshot
	if err := s.DB.View(func(tx *bbolt.Tx) error {
		return tx.ForEach(func(name []byte, b *bbolt.Bucket) error {
			if !strings.HasPrefix(string(name), BucketPrefix) {
				return nil
			}
			data := b.Get([]byte(SnapshotKey))
			if data == nil {
				return nil
			}
			snap := &Snapshot{}
			if err := yaml.Unmarshal(data, snap); err != nil {
				log.Error("Error while unmarshalling snapshot of %s: %s", name, err)
				return err
			}
			snaps = append(snaps, snap)
			return nil
		})
	}); err != nil {
		return nil, err
	}
	return snaps, nil
}
