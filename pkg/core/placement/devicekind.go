package placement

import (
	"strings"

	"github.com/pkg/errors"
)

// DeviceKind is the type of the devices of a placement Group.
type DeviceKind int

//go:generate go tool enumer -type DeviceKind -output=gen_devicekind_enumer.go devicekind.go

const (
	// Unrecognized is any device kind not known by this package. It's the zero value.
	Unrecognized DeviceKind = iota

	// CPU devices: the device physical ids are CPU "threads" of the machine.
	CPU

	// GPU devices: the device physical ids are the GPU ordinals of the machine.
	GPU
)

// UnrecognizedLabel is the label used by Label for any DeviceKind other than CPU or GPU.
const UnrecognizedLabel = "Unrecognized Device"

// Label returns "CPU", "GPU" or UnrecognizedLabel.
//
// It never fails: unknown values (including values out of the enumeration range) degrade to UnrecognizedLabel,
// so placements can always be logged.
func (k DeviceKind) Label() string {
	if k == Unrecognized || !k.IsADeviceKind() {
		return UnrecognizedLabel
	}
	return k.String()
}

// ParseDeviceKind converts a device type name ("cpu", "gpu" or its alias "cuda", case-insensitive) to a DeviceKind.
func ParseDeviceKind(name string) (DeviceKind, error) {
	name = strings.TrimSpace(name)
	if strings.EqualFold(name, "cuda") {
		return GPU, nil
	}
	kind, err := DeviceKindString(name)
	if err != nil || kind == Unrecognized {
		return Unrecognized, errors.Errorf("unknown device kind %q, valid values are \"cpu\" or \"gpu\"", name)
	}
	return kind, nil
}
