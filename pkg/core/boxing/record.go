// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package boxing records "boxing" decisions: the conversion of a logical tensor from one distribution
// (sbp.Distribution) and placement (placement.Group) to another.
//
// A planner (not part of this package) creates one Record per decision and hands it to a Log, which writes it
// as one CSV line to a Sink (a file by default). The log is write-only: nothing here reads it back.
//
// Log is not safe for concurrent use. Producers running in parallel should funnel their records through a
// Collector, or serialize the calls themselves.
package boxing

import (
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"github.com/xy548/oneflow/pkg/core/blob"
	"github.com/xy548/oneflow/pkg/core/placement"
	"github.com/xy548/oneflow/pkg/core/sbp"
)

// Header is the first line written to every boxing log, naming the fields of FormatRecord.
const Header = "src_op_name,dst_op_name,src_parallel_conf,dst_parallel_conf," +
	"src_sbp_conf,dst_sbp_conf,lbi,dtype,shape,builder,comment\n"

// NumFields in each line of the boxing log.
const NumFields = 11

// EmptyComment is written in the comment field when Record.Comment is empty.
const EmptyComment = "-"

// Record of one boxing decision. It's created by the planner and not modified afterwards.
type Record struct {
	SrcOpName, DstOpName       string
	SrcPlacement, DstPlacement *placement.Group
	SrcSbp, DstSbp             sbp.Distribution

	// Lbi identifies the logical tensor being converted, and BlobDesc its dtype and logical shape.
	Lbi      blob.LogicalBlobId
	BlobDesc blob.Desc

	// BuilderName is the name of the strategy that produced the conversion.
	BuilderName string

	// Comment is optional free text.
	Comment string
}

// FormatRecord returns the CSV line (with the trailing "\n") for the record.
//
// Fields are not escaped: names and comment must not contain "," or line breaks (see Record.Validate).
// It panics if a distribution is nil, a placement is missing or the blob descriptor was not created with
// blob.NewDesc (e.g. an empty shape).
func FormatRecord(r *Record) string {
	if !r.BlobDesc.Ok() {
		exceptions.Panicf("boxing.FormatRecord(): invalid blob descriptor %s for %s", r.BlobDesc, r.Lbi)
	}
	var sb strings.Builder
	fields := [NumFields]string{
		r.SrcOpName,
		r.DstOpName,
		placement.Format(r.SrcPlacement),
		placement.Format(r.DstPlacement),
		sbp.Format(r.SrcSbp),
		sbp.Format(r.DstSbp),
		r.Lbi.String(),
		r.BlobDesc.DTypeName(),
		r.BlobDesc.ShapeString(),
		r.BuilderName,
		r.Comment,
	}
	if fields[NumFields-1] == "" {
		fields[NumFields-1] = EmptyComment
	}
	for i, field := range fields {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(field)
	}
	sb.WriteByte('\n')
	return sb.String()
}

// String returns the formatted line, without the trailing line break.
func (r *Record) String() string {
	return strings.TrimSuffix(FormatRecord(r), "\n")
}

// Validate checks that the record can be formatted into a well-formed line: placements and distributions are
// set, the blob descriptor was created with blob.NewDesc, and no text field contains the field separator or a
// line break.
//
// It reports problems but doesn't fix them.
func (r *Record) Validate() error {
	if r.SrcPlacement == nil || r.DstPlacement == nil {
		return errors.Errorf("boxing record for %s: source and destination placements must be set", r.Lbi)
	}
	if r.SrcSbp == nil || r.DstSbp == nil {
		return errors.Errorf("boxing record for %s: source and destination distributions must be set", r.Lbi)
	}
	if !r.BlobDesc.Ok() {
		return errors.Errorf("boxing record for %s: blob descriptor not set", r.Lbi)
	}
	textFields := []struct{ name, value string }{
		{"src_op_name", r.SrcOpName},
		{"dst_op_name", r.DstOpName},
		{"lbi.op_name", r.Lbi.OpName},
		{"lbi.blob_name", r.Lbi.BlobName},
		{"builder", r.BuilderName},
		{"comment", r.Comment},
	}
	for _, field := range textFields {
		if strings.ContainsAny(field.value, ",\n\r") {
			return errors.Errorf("boxing record for %s: field %s=%q contains a separator or line break",
				r.Lbi, field.name, field.value)
		}
	}
	return nil
}
