// Package sbp defines Distribution, the way the elements of a logical tensor are spread over the devices
// of a placement group. It's also known as SBP, after its three cases:
//
//   - Split: the tensor is sharded along one of its axes, each device holds one slice.
//   - Broadcast: every device holds a full replica of the tensor.
//   - PartialSum: every device holds a tensor of the full shape, and the logical value is their element-wise sum.
//
// Distributions are immutable values. They render to the compact forms "S(<axis>)", "B" and "P", used by the
// boxing log.
package sbp

import (
	"strconv"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// Distribution is one of Broadcast, PartialSum or Split.
//
// The interface is sealed: only the types of this package implement it.
type Distribution interface {
	// String returns the same as Format.
	String() string

	isDistribution()
}

// Broadcast means the tensor is fully replicated on every device.
type Broadcast struct{}

// PartialSum means each device holds a partial value, and the logical tensor is the sum over all devices.
type PartialSum struct{}

// Split means the tensor is sharded along Axis across the devices.
type Split struct {
	Axis int
}

func (Broadcast) isDistribution()  {}
func (PartialSum) isDistribution() {}
func (Split) isDistribution()      {}

// String implements fmt.Stringer.
func (b Broadcast) String() string { return Format(b) }

// String implements fmt.Stringer.
func (p PartialSum) String() string { return Format(p) }

// String implements fmt.Stringer.
func (s Split) String() string { return Format(s) }

// NewSplit returns a Split distribution along the given axis.
// It returns an error if the axis is negative.
func NewSplit(axis int) (Split, error) {
	if axis < 0 {
		return Split{}, errors.Errorf("sbp.NewSplit(%d): split axis must be non-negative", axis)
	}
	return Split{Axis: axis}, nil
}

// Format returns "B", "P" or "S(<axis>)".
//
// A nil Distribution is a programming error (the producer built an invalid value), and Format panics.
func Format(d Distribution) string {
	switch v := d.(type) {
	case Broadcast:
		return "B"
	case PartialSum:
		return "P"
	case Split:
		return "S(" + strconv.Itoa(v.Axis) + ")"
	}
	exceptions.Panicf("sbp.Format(): distribution %#v has no case set", d)
	return ""
}

// Parse the compact representation returned by Format back into a Distribution.
//
// It's used to read distributions from plan files and command-line flags.
func Parse(s string) (Distribution, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "B":
		return Broadcast{}, nil
	case "P":
		return PartialSum{}, nil
	}
	if !strings.HasPrefix(s, "S(") || !strings.HasSuffix(s, ")") {
		return nil, errors.Errorf("sbp.Parse(%q): expected one of \"B\", \"P\" or \"S(<axis>)\"", s)
	}
	axis, err := strconv.Atoi(s[2 : len(s)-1])
	if err != nil {
		return nil, errors.Wrapf(err, "sbp.Parse(%q): invalid split axis", s)
	}
	split, err := NewSplit(axis)
	if err != nil {
		return nil, errors.WithMessagef(err, "sbp.Parse(%q)", s)
	}
	return split, nil
}

// Equal returns whether a and b are the same distribution.
// Two nil distributions are considered equal.
func Equal(a, b Distribution) bool {
	return a == b
}

// IsSplit returns whether d is a Split, and its axis if so.
func IsSplit(d Distribution) (axis int, ok bool) {
	split, ok := d.(Split)
	if !ok {
		return 0, false
	}
	return split.Axis, true
}
