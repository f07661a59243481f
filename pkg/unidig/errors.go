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

package unidig

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrUnsupportedOperation is returned when the module lacks the hardware for a request
	ErrUnsupportedOperation = errors.New("operation not supported by this module")
	// ErrRegistrationLimit is returned when the client registry is full
	ErrRegistrationLimit = errors.New("too many clients")
	// ErrShuttingDown is returned by every register access after Reboot
	ErrShuttingDown = errors.New("device is shutting down")
	// ErrCallbackNotFound is returned by Cancel for an unknown registration
	ErrCallbackNotFound = errors.New("callback not found")
)

// ErrUnsupportedModel is returned when the module ID PROM names a card the driver does not know
type ErrUnsupportedModel struct {
	Manufacturer uint8
	Model        uint8
}

func (e ErrUnsupportedModel) Error() string {
	return fmt.Sprintf("Unsupported industry-pack module: manufacturer=0x%02x model=0x%02x",
		e.Manufacturer, e.Model)
}
