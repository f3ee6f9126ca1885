package sbp_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xy548/oneflow/pkg/core/sbp"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name string
		d    sbp.Distribution
		want string
	}{
		{"broadcast", sbp.Broadcast{}, "B"},
		{"partial sum", sbp.PartialSum{}, "P"},
		{"split 0", sbp.Split{Axis: 0}, "S(0)"},
		{"split 1", sbp.Split{Axis: 1}, "S(1)"},
		{"split large axis", sbp.Split{Axis: 12345}, "S(12345)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sbp.Format(tt.d)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want, tt.d.String())
			assert.Equal(t, tt.want, fmt.Sprintf("%s", tt.d))
			// Repeated calls are byte-identical.
			assert.Equal(t, got, sbp.Format(tt.d))
		})
	}

	t.Run("forms are mutually exclusive", func(t *testing.T) {
		b, p, s := sbp.Format(sbp.Broadcast{}), sbp.Format(sbp.PartialSum{}), sbp.Format(sbp.Split{Axis: 0})
		assert.NotEqual(t, b, p)
		assert.NotEqual(t, b, s)
		assert.NotEqual(t, p, s)
	})

	t.Run("nil distribution panics", func(t *testing.T) {
		assert.Panics(t, func() { _ = sbp.Format(nil) })
	})
}

func TestNewSplit(t *testing.T) {
	split, err := sbp.NewSplit(3)
	require.NoError(t, err)
	assert.Equal(t, 3, split.Axis)

	_, err = sbp.NewSplit(-1)
	require.Error(t, err)
}

func TestParse(t *testing.T) {
	for _, d := range []sbp.Distribution{sbp.Broadcast{}, sbp.PartialSum{}, sbp.Split{Axis: 0}, sbp.Split{Axis: 7}} {
		got, err := sbp.Parse(sbp.Format(d))
		require.NoError(t, err)
		assert.True(t, sbp.Equal(d, got), "parsed %s, got %s", d, got)
	}

	got, err := sbp.Parse(" S(2) ")
	require.NoError(t, err)
	assert.Equal(t, sbp.Split{Axis: 2}, got)

	for _, invalid := range []string{"", "b", "S", "S()", "S(x)", "S(-1)", "S(1", "Split(1)"} {
		_, err := sbp.Parse(invalid)
		assert.Error(t, err, "sbp.Parse(%q) should fail", invalid)
	}
}

func TestEqualAndIsSplit(t *testing.T) {
	assert.True(t, sbp.Equal(sbp.Split{Axis: 1}, sbp.Split{Axis: 1}))
	assert.False(t, sbp.Equal(sbp.Split{Axis: 1}, sbp.Split{Axis: 0}))
	assert.False(t, sbp.Equal(sbp.Broadcast{}, sbp.PartialSum{}))
	assert.True(t, sbp.Equal(nil, nil))

	axis, ok := sbp.IsSplit(sbp.Split{Axis: 4})
	assert.True(t, ok)
	assert.Equal(t, 4, axis)
	_, ok = sbp.IsSplit(sbp.Broadcast{})
	assert.False(t, ok)
}
