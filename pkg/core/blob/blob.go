// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package blob describes logical tensors ("blobs") flowing between operators of a computation graph:
// LogicalBlobId identifies them, and Desc holds their element type and logical shape.
package blob

import (
	"slices"
	"strconv"
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"github.com/xy548/oneflow/pkg/support/xslices"
)

// LogicalBlobId identifies a logical tensor by the name of the operator that produces it and the name of
// the operator's output slot.
type LogicalBlobId struct {
	OpName   string
	BlobName string
}

// String returns the logical blob name "<OpName>/<BlobName>".
func (id LogicalBlobId) String() string {
	return id.OpName + "/" + id.BlobName
}

// ParseLogicalBlobName parses "<op>/<blob>" into a LogicalBlobId.
// The split happens at the first "/", so blob names may contain "/".
func ParseLogicalBlobName(name string) (LogicalBlobId, error) {
	op, blobName, found := strings.Cut(name, "/")
	if !found || op == "" || blobName == "" {
		return LogicalBlobId{}, errors.Errorf("invalid logical blob name %q, expected \"<op_name>/<blob_name>\"", name)
	}
	return LogicalBlobId{OpName: op, BlobName: blobName}, nil
}

// Desc describes a logical tensor: its element type and dimensions.
//
// Create it with NewDesc, which guarantees there is at least one dimension.
type Desc struct {
	dtype      dtypes.DType
	dimensions []int
}

// NewDesc returns a Desc for a tensor with the given dtype and dimensions.
//
// It returns an error if dtype is invalid, if no dimensions are given, or if any dimension is negative.
// Dimensions of size 0 are accepted.
func NewDesc(dtype dtypes.DType, dimensions ...int) (Desc, error) {
	if dtype == dtypes.InvalidDType {
		return Desc{}, errors.New("blob.NewDesc(): invalid dtype")
	}
	if len(dimensions) == 0 {
		return Desc{}, errors.Errorf("blob.NewDesc(%s): at least one dimension is required", dtype)
	}
	for axis, dim := range dimensions {
		if dim < 0 {
			return Desc{}, errors.Errorf("blob.NewDesc(%s, %v): axis #%d has negative dimension %d",
				dtype, dimensions, axis, dim)
		}
	}
	return Desc{dtype: dtype, dimensions: slices.Clone(dimensions)}, nil
}

// MustNewDesc is like NewDesc, but panics on error.
func MustNewDesc(dtype dtypes.DType, dimensions ...int) Desc {
	d, err := NewDesc(dtype, dimensions...)
	if err != nil {
		panic(err)
	}
	return d
}

// DType returns the element type.
func (d Desc) DType() dtypes.DType { return d.dtype }

// Dimensions returns a copy of the dimensions.
func (d Desc) Dimensions() []int { return slices.Clone(d.dimensions) }

// NumAxes returns the number of axes (the rank).
func (d Desc) NumAxes() int { return len(d.dimensions) }

// Ok returns whether d was created with NewDesc. The zero Desc is not ok.
func (d Desc) Ok() bool { return d.dtype != dtypes.InvalidDType && len(d.dimensions) > 0 }

// Size returns the number of elements, the product of the dimensions.
func (d Desc) Size() int {
	size := 1
	for _, dim := range d.dimensions {
		size *= dim
	}
	return size
}

// Memory returns the number of bytes needed to store the tensor.
func (d Desc) Memory() uintptr {
	return uintptr(d.dtype.Size()) * uintptr(d.Size())
}

// Equal returns whether d and other have the same dtype and dimensions.
func (d Desc) Equal(other Desc) bool {
	return d.dtype == other.dtype && slices.Equal(d.dimensions, other.dimensions)
}

// DTypeName returns the lowercase name of the element type, e.g. "float32" or "bfloat16".
func (d Desc) DTypeName() string {
	return DTypeName(d.dtype)
}

// ShapeString returns the dimensions enclosed in brackets and separated by spaces, e.g. "[4 8]".
func (d Desc) ShapeString() string {
	return "[" + strings.Join(xslices.Map(d.dimensions, strconv.Itoa), " ") + "]"
}

// String implements fmt.Stringer, e.g. "(float32)[4 8]".
func (d Desc) String() string {
	return "(" + d.DTypeName() + ")" + d.ShapeString()
}

// DTypeName returns the lowercase name of dtype, e.g. "float32".
func DTypeName(dtype dtypes.DType) string {
	return strings.ToLower(dtype.String())
}

// ParseDType converts a dtype name to a dtypes.DType. It accepts the names and aliases of dtypes.MapOfNames,
// e.g. "float32", "Float32" or "F32", and also their lower-case versions.
func ParseDType(name string) (dtypes.DType, error) {
	name = strings.TrimSpace(name)
	dtype, found := dtypes.MapOfNames[name]
	if !found {
		dtype, found = dtypes.MapOfNames[strings.ToLower(name)]
	}
	if !found || dtype == dtypes.InvalidDType {
		return dtypes.InvalidDType, errors.Errorf("unknown dtype %q", name)
	}
	return dtype, nil
}
