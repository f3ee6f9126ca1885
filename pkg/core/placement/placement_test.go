package placement_test

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xy548/oneflow/pkg/core/placement"
)

var tokenRegexp = regexp.MustCompile(`^\d+:(CPU|GPU|Unrecognized Device):\d+-\d+$`)

func TestNew(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		g, err := placement.New(placement.GPU, map[int][]int{
			3: {2, 0, 1},
			1: {7},
		})
		require.NoError(t, err)
		assert.Equal(t, placement.GPU, g.Kind())
		assert.Equal(t, []int{1, 3}, g.MachineIDs())
		assert.Equal(t, []int{0, 1, 2}, g.DeviceIDs(3))
		assert.Equal(t, []int{7}, g.DeviceIDs(1))
		assert.Nil(t, g.DeviceIDs(2))
		assert.Equal(t, 2, g.NumMachines())
		assert.Equal(t, 4, g.NumDevices())
	})

	t.Run("Invalid", func(t *testing.T) {
		tests := []struct {
			name    string
			devices map[int][]int
			wantErr string
		}{
			{"no machines", nil, "at least one machine"},
			{"machine without devices", map[int][]int{0: {}}, "has no devices"},
			{"negative machine", map[int][]int{-1: {0}}, "invalid machine id"},
			{"negative device", map[int][]int{0: {-2}}, "invalid device id"},
			{"duplicate device", map[int][]int{0: {1, 1}}, "duplicated"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := placement.New(placement.CPU, tt.devices)
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			})
		}
	})

	t.Run("Accessors return copies", func(t *testing.T) {
		g := placement.MustNew(placement.CPU, map[int][]int{0: {0, 1}})
		ids := g.MachineIDs()
		ids[0] = 10
		devs := g.DeviceIDs(0)
		devs[0] = 10
		assert.Equal(t, []int{0}, g.MachineIDs())
		assert.Equal(t, []int{0, 1}, g.DeviceIDs(0))
	})
}

func TestFormat(t *testing.T) {
	t.Run("Single machine", func(t *testing.T) {
		g, err := placement.Build(placement.CPU).Range(0, 0, 3).Done()
		require.NoError(t, err)
		assert.Equal(t, "0:CPU:0-3", placement.Format(g))
		assert.Equal(t, "0:CPU:0-3", g.String())
	})

	t.Run("Multiple machines sorted", func(t *testing.T) {
		g := placement.MustNew(placement.GPU, map[int][]int{
			2: {4, 5},
			0: {0, 1, 2, 3},
			1: {6},
		})
		got := placement.Format(g)
		assert.Equal(t, "0:GPU:0-3 1:GPU:6-6 2:GPU:4-5", got)
		tokens := strings.Split(got, " ")
		require.Len(t, tokens, g.NumMachines())
		for _, token := range tokens {
			assert.Regexp(t, tokenRegexp, token)
		}
	})

	t.Run("Only min and max device ids", func(t *testing.T) {
		g := placement.MustNew(placement.GPU, map[int][]int{0: {7, 0, 3}})
		assert.Equal(t, "0:GPU:0-7", placement.Format(g))
	})

	t.Run("Unrecognized device kinds degrade gracefully", func(t *testing.T) {
		for _, kind := range []placement.DeviceKind{placement.Unrecognized, placement.DeviceKind(42), placement.DeviceKind(-1)} {
			g := placement.MustNew(kind, map[int][]int{0: {0, 1}, 1: {0}})
			var got string
			require.NotPanics(t, func() { got = placement.Format(g) })
			assert.Equal(t, "0:Unrecognized Device:0-1 1:Unrecognized Device:0-0", got)
			for _, token := range strings.Split(got, " ") {
				assert.Regexp(t, tokenRegexp, token)
			}
		}
	})

	t.Run("Pure", func(t *testing.T) {
		g := placement.MustNew(placement.GPU, map[int][]int{0: {0, 1}, 5: {2, 3}})
		assert.Equal(t, placement.Format(g), placement.Format(g))
	})

	t.Run("Nil group panics", func(t *testing.T) {
		assert.Panics(t, func() { _ = placement.Format(nil) })
	})
}

func TestBuilder(t *testing.T) {
	g, err := placement.Build(placement.GPU).Machine(1, 3, 2).Range(0, 0, 1).Machine(1, 0).Done()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, g.MachineIDs())
	assert.Equal(t, []int{0, 2, 3}, g.DeviceIDs(1))

	_, err = placement.Build(placement.GPU).Range(0, 3, 1).Done()
	require.Error(t, err)

	_, err = placement.Build(placement.GPU).Range(0, 0, 3).Machine(0, 2).Done()
	require.Error(t, err, "overlapping device ids must fail")

	_, err = placement.Build(placement.GPU).Done()
	require.Error(t, err)
}

func TestParse(t *testing.T) {
	g, err := placement.Parse(placement.GPU, "0:0-3", "@1:0-3", "1:5")
	require.NoError(t, err)
	assert.Equal(t, "0:GPU:0-3 1:GPU:0-5", placement.Format(g))
	assert.Equal(t, 9, g.NumDevices())

	want := placement.MustNew(placement.GPU, map[int][]int{0: {0, 1, 2, 3}, 1: {0, 1, 2, 3, 5}})
	assert.True(t, want.Equal(g))
	assert.False(t, want.Equal(placement.MustNew(placement.CPU, map[int][]int{0: {0, 1, 2, 3}, 1: {0, 1, 2, 3, 5}})))
	assert.False(t, want.Equal(nil))

	for _, invalid := range []string{"", "0", "x:0", "0:x", "0:3-1", "0:1-x", "0:-1", "0:0-3,1:0-3"} {
		_, err := placement.Parse(placement.CPU, invalid)
		assert.Error(t, err, "placement.Parse(%q) should fail", invalid)
	}

	_, err = placement.Parse(placement.CPU, "0:0-3", "0:2-4")
	assert.Error(t, err, "overlapping ranges should fail")
}

func TestParseDeviceKind(t *testing.T) {
	for name, want := range map[string]placement.DeviceKind{
		"cpu": placement.CPU, "CPU": placement.CPU, "gpu": placement.GPU, "Gpu": placement.GPU,
		" cuda ": placement.GPU, "CUDA": placement.GPU,
	} {
		got, err := placement.ParseDeviceKind(name)
		require.NoError(t, err, "device kind %q", name)
		assert.Equal(t, want, got, "device kind %q", name)
	}
	for _, name := range []string{"tpu", "", "unrecognized", "Unrecognized"} {
		_, err := placement.ParseDeviceKind(name)
		require.Error(t, err, "device kind %q", name)
	}
}

func TestDeviceKindLabel(t *testing.T) {
	assert.Equal(t, "CPU", placement.CPU.String())
	assert.Equal(t, "CPU", placement.CPU.Label())
	assert.Equal(t, "GPU", placement.GPU.Label())
	assert.Equal(t, placement.UnrecognizedLabel, placement.Unrecognized.Label())

	invalid := placement.DeviceKind(42)
	assert.False(t, invalid.IsADeviceKind())
	assert.Equal(t, "DeviceKind(42)", invalid.String())
	assert.Equal(t, placement.UnrecognizedLabel, invalid.Label())
	assert.Equal(t, placement.UnrecognizedLabel, placement.DeviceKind(-1).Label())
}
