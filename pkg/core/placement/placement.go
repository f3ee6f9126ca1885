// Package placement describes the group of devices a logical tensor is placed on.
//
// A Group lists the machines participating (by machine id) and, for each machine, the physical ids of its
// devices used. All devices of a Group are of the same DeviceKind.
//
// Example:
//
//	// 2 machines with 4 GPUs each.
//	group, err := placement.Build(placement.GPU).Range(0, 0, 3).Range(1, 0, 3).Done()
//	fmt.Println(group) // "0:GPU:0-3 1:GPU:0-3"
//
// Groups are immutable once built.
package placement

import (
	"slices"
	"strconv"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"github.com/xy548/oneflow/pkg/support/sets"
	"github.com/xy548/oneflow/pkg/support/xslices"
)

// Group of devices, organized by machine, a logical tensor is placed on.
type Group struct {
	kind DeviceKind

	// machineIDs sorted in ascending order, no duplicates.
	machineIDs []int

	// devices maps each machine id to its device physical ids, sorted in ascending order, no duplicates.
	devices map[int][]int
}

// New creates a Group with devices of the given kind.
//
// devices maps machine ids to the physical ids of the devices used in that machine. The device ids don't need
// to be sorted, but they must be unique, non-negative and there must be at least one per machine.
// There must be at least one machine.
func New(kind DeviceKind, devices map[int][]int) (*Group, error) {
	if len(devices) == 0 {
		return nil, errors.New("placement.New(): a placement group needs at least one machine")
	}
	machines := sets.Make[int](len(devices))
	g := &Group{
		kind:    kind,
		devices: make(map[int][]int, len(devices)),
	}
	for machine, devIDs := range devices {
		if machine < 0 {
			return nil, errors.Errorf("placement.New(): invalid machine id %d, it must be non-negative", machine)
		}
		if len(devIDs) == 0 {
			return nil, errors.Errorf("placement.New(): machine %d has no devices", machine)
		}
		seen := sets.Make[int](len(devIDs))
		for _, devID := range devIDs {
			if devID < 0 {
				return nil, errors.Errorf("placement.New(): machine %d has invalid device id %d, it must be non-negative",
					machine, devID)
			}
			if seen.Has(devID) {
				return nil, errors.Errorf("placement.New(): machine %d has device id %d duplicated", machine, devID)
			}
			seen.Insert(devID)
		}
		machines.Insert(machine)
		g.devices[machine] = sets.Sorted(seen)
	}
	g.machineIDs = sets.Sorted(machines)
	return g, nil
}

// MustNew is like New, but panics on error.
func MustNew(kind DeviceKind, devices map[int][]int) *Group {
	g, err := New(kind, devices)
	if err != nil {
		panic(err)
	}
	return g
}

// Kind returns the kind of the devices in the group.
func (g *Group) Kind() DeviceKind {
	return g.kind
}

// MachineIDs returns a copy of the sorted machine ids.
func (g *Group) MachineIDs() []int {
	return slices.Clone(g.machineIDs)
}

// NumMachines returns the number of machines in the group.
func (g *Group) NumMachines() int {
	return len(g.machineIDs)
}

// DeviceIDs returns a copy of the sorted device physical ids used in the given machine.
// It returns nil if the machine is not part of the group.
func (g *Group) DeviceIDs(machine int) []int {
	devIDs, found := g.devices[machine]
	if !found {
		return nil
	}
	return slices.Clone(devIDs)
}

// NumDevices returns the total number of devices, across all machines.
func (g *Group) NumDevices() int {
	total := 0
	for _, devIDs := range g.devices {
		total += len(devIDs)
	}
	return total
}

// Equal returns whether both groups have the same device kind and devices.
func (g *Group) Equal(other *Group) bool {
	if g == nil || other == nil {
		return g == other
	}
	if g.kind != other.kind || !slices.Equal(g.machineIDs, other.machineIDs) {
		return false
	}
	for _, machine := range g.machineIDs {
		if !slices.Equal(g.devices[machine], other.devices[machine]) {
			return false
		}
	}
	return true
}

// String implements fmt.Stringer. It returns the same as Format.
func (g *Group) String() string {
	if g == nil {
		return "placement.Group<nil>"
	}
	return Format(g)
}

// Format returns one "<machineId>:<kind>:<minDeviceId>-<maxDeviceId>" token per machine, separated by spaces.
//
// Only the smallest and largest device ids of each machine are used: gaps in the device ids are not represented.
// The kind is the DeviceKind.Label, so unknown device kinds are formatted as UnrecognizedLabel.
func Format(g *Group) string {
	if g == nil || len(g.machineIDs) == 0 {
		exceptions.Panicf("placement.Format(): invalid empty placement group")
	}
	label := g.kind.Label()
	var sb strings.Builder
	for i, machine := range g.machineIDs {
		if i > 0 {
			sb.WriteByte(' ')
		}
		devIDs := g.devices[machine]
		sb.WriteString(strconv.Itoa(machine))
		sb.WriteByte(':')
		sb.WriteString(label)
		sb.WriteByte(':')
		sb.WriteString(strconv.Itoa(devIDs[0]))
		sb.WriteByte('-')
		sb.WriteString(strconv.Itoa(xslices.Last(devIDs)))
	}
	return sb.String()
}

// Builder is a more ergonomic way of creating a Group.
type Builder struct {
	kind    DeviceKind
	devices map[int][]int
	err     error
}

// Build starts building a Group with devices of the given kind.
//
// Example:
//
//	group, err := placement.Build(placement.CPU).Machine(0, 0, 1).Range(1, 0, 7).Done()
func Build(kind DeviceKind) *Builder {
	return &Builder{kind: kind, devices: make(map[int][]int)}
}

// Machine adds the given device ids to the machine.
func (b *Builder) Machine(machine int, devIDs ...int) *Builder {
	b.devices[machine] = append(b.devices[machine], devIDs...)
	return b
}

// Range adds the devices ids from first to last (inclusive) to the machine.
func (b *Builder) Range(machine, first, last int) *Builder {
	if last < first {
		if b.err == nil {
			b.err = errors.Errorf("placement.Builder.Range(%d, %d, %d): last device id must be >= first",
				machine, first, last)
		}
		return b
	}
	for devID := first; devID <= last; devID++ {
		b.devices[machine] = append(b.devices[machine], devID)
	}
	return b
}

// Done returns the Group built, or the first error found.
func (b *Builder) Done() (*Group, error) {
	if b.err != nil {
		return nil, b.err
	}
	return New(b.kind, b.devices)
}

// Parse creates a Group from device names of the form "<machine>:<deviceId>" or
// "<machine>:<firstDeviceId>-<lastDeviceId>", optionally prefixed with "@".
//
// Device names for the same machine are merged. Overlapping device ids are an error.
//
// Example:
//
//	group, err := placement.Parse(placement.GPU, "0:0-3", "1:0-3")
func Parse(kind DeviceKind, deviceNames ...string) (*Group, error) {
	b := Build(kind)
	for _, name := range deviceNames {
		machine, first, last, err := parseDeviceName(name)
		if err != nil {
			return nil, err
		}
		b.Range(machine, first, last)
	}
	return b.Done()
}

func parseDeviceName(name string) (machine, first, last int, err error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(name), "@")
	machineStr, devStr, found := strings.Cut(trimmed, ":")
	if !found {
		err = errors.Errorf("invalid device name %q, expected \"<machine>:<first>-<last>\"", name)
		return
	}
	machine, err = strconv.Atoi(machineStr)
	if err != nil {
		err = errors.Wrapf(err, "invalid machine id in device name %q", name)
		return
	}
	firstStr, lastStr, isRange := strings.Cut(devStr, "-")
	first, err = strconv.Atoi(firstStr)
	if err != nil {
		err = errors.Wrapf(err, "invalid device id in device name %q", name)
		return
	}
	last = first
	if isRange {
		last, err = strconv.Atoi(lastStr)
		if err != nil {
			err = errors.Wrapf(err, "invalid last device id in device name %q", name)
			return
		}
		if last < first {
			err = errors.Errorf("invalid device range in device name %q: last device id must be >= first", name)
			return
		}
	}
	return
}
