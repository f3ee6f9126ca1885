package placement

import (
	"fmt"
	"slices"
	"strings"

	"github.com/pkg/errors"
	"github.com/xy548/oneflow/pkg/support/sets"
)

// Names of the Mesh axes.
const (
	MachineAxis = "machine"
	DeviceAxis  = "device"
)

// Mesh is the logical topology of a Group as a 2D grid of devices: one row per machine ("machine" axis),
// one column per device of the machine ("device" axis).
//
// Devices are numbered by their global rank, row-major: rank = machineIndex*devicesPerMachine + deviceIndex.
// Use Mesh.Device to convert a rank back to the machine id and device physical id.
type Mesh struct {
	group *Group

	// axesNames and axesSizes, one per axis of the mesh.
	axesNames []string
	axesSizes []int

	// nameToAxis maps axis names to their index.
	nameToAxis map[string]int

	numDevices int
}

// Mesh returns the Group as a Mesh. It requires every machine to use the same number of devices.
func (g *Group) Mesh() (*Mesh, error) {
	devicesPerMachine := len(g.devices[g.machineIDs[0]])
	for _, machine := range g.machineIDs[1:] {
		if len(g.devices[machine]) != devicesPerMachine {
			return nil, errors.Errorf("placement group %s is not a mesh: machine %d has %d devices, "+
				"machine %d has %d", g, g.machineIDs[0], devicesPerMachine, machine, len(g.devices[machine]))
		}
	}
	m := &Mesh{
		group:      g,
		axesNames:  []string{MachineAxis, DeviceAxis},
		axesSizes:  []int{len(g.machineIDs), devicesPerMachine},
		nameToAxis: map[string]int{MachineAxis: 0, DeviceAxis: 1},
		numDevices: len(g.machineIDs) * devicesPerMachine,
	}
	return m, nil
}

// Group returns the placement group the mesh was created from.
func (m *Mesh) Group() *Group {
	return m.group
}

// NumDevices returns the total number of devices in the mesh.
func (m *Mesh) NumDevices() int {
	return m.numDevices
}

// Rank returns the number of axes in the mesh.
func (m *Mesh) Rank() int {
	return len(m.axesSizes)
}

// AxesNames returns a copy of the mesh's axis names.
func (m *Mesh) AxesNames() []string {
	return slices.Clone(m.axesNames)
}

// AxesSizes returns a copy of the mesh's axesSizes.
func (m *Mesh) AxesSizes() []int {
	return slices.Clone(m.axesSizes)
}

// AxisSize returns the number of devices along the given mesh axis.
func (m *Mesh) AxisSize(axisName string) (int, error) {
	idx, found := m.nameToAxis[axisName]
	if !found {
		return 0, errors.Errorf("mesh axis %q not found", axisName)
	}
	return m.axesSizes[idx], nil
}

// Device returns the machine id and device physical id of the device with the given global rank.
func (m *Mesh) Device(rank int) (machine, devID int, err error) {
	if rank < 0 || rank >= m.numDevices {
		return 0, 0, errors.Errorf("device rank %d out of range for mesh with %d devices", rank, m.numDevices)
	}
	perMachine := m.axesSizes[1]
	machine = m.group.machineIDs[rank/perMachine]
	devID = m.group.devices[machine][rank%perMachine]
	return machine, devID, nil
}

// String implements the fmt.Stringer interface.
func (m *Mesh) String() string {
	var sb strings.Builder
	sb.WriteString("Mesh(axesSizes={")
	for i, name := range m.axesNames {
		if i > 0 {
			sb.WriteString(", ")
		}
		_, _ = fmt.Fprintf(&sb, "%s: %d", name, m.axesSizes[i])
	}
	sb.WriteString("})")
	return sb.String()
}

// ReplicaGroups returns the groups of devices (by global rank) that take part together in a collective operation
// performed along the given mesh axes. The remaining axes enumerate the groups.
//
// Example, for 2 machines with 2 devices each:
//
//	m.ReplicaGroups(placement.DeviceAxis)                         // -> [][]int{{0, 1}, {2, 3}}
//	m.ReplicaGroups(placement.MachineAxis)                        // -> [][]int{{0, 2}, {1, 3}}
//	m.ReplicaGroups(placement.MachineAxis, placement.DeviceAxis)  // -> [][]int{{0, 1, 2, 3}}
func (m *Mesh) ReplicaGroups(axes ...string) ([][]int, error) {
	inGroup := make([]bool, len(m.axesSizes))
	used := sets.Make[string](len(axes))
	groupSize := 1
	for _, axis := range axes {
		idx, found := m.nameToAxis[axis]
		if !found {
			return nil, errors.Errorf("axis %q not found in mesh", axis)
		}
		if used.Has(axis) {
			return nil, errors.Errorf("axis %q is duplicated: each axis can only appear once", axis)
		}
		used.Insert(axis)
		inGroup[idx] = true
		groupSize *= m.axesSizes[idx]
	}

	groups := make([][]int, m.numDevices/groupSize)
	for i := range groups {
		groups[i] = make([]int, 0, groupSize)
	}
	// Iterating ranks in order leaves each group sorted.
	for rank := range m.numDevices {
		groupIdx, groupStride := 0, 1
		remaining := rank
		for axis := len(m.axesSizes) - 1; axis >= 0; axis-- {
			coord := remaining % m.axesSizes[axis]
			remaining /= m.axesSizes[axis]
			if !inGroup[axis] {
				groupIdx += coord * groupStride
				groupStride *= m.axesSizes[axis]
			}
		}
		groups[groupIdx] = append(groups[groupIdx], rank)
	}
	return groups, nil
}
