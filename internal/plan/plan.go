// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package plan loads "boxing plans": YAML files listing boxing decisions, used by the boxing_log tool to
// produce boxing logs without running a planner.
//
// Example:
//
//	placements:
//	  node0_gpus:
//	    device: gpu
//	    devices: ["0:0-3"]
//	  node0_cpu:
//	    device: cpu
//	    devices: ["0:0"]
//	records:
//	  - src_op: conv1
//	    dst_op: fc1
//	    src_placement: node0_gpus
//	    dst_placement: node0_cpu
//	    src_sbp: S(0)
//	    dst_sbp: B
//	    lbi: conv1/out
//	    dtype: float32
//	    shape: [64, 128]
//	    builder: SliceBoxing
//	    comment: gather to host
package plan

import (
	"os"

	"github.com/pkg/errors"
	"github.com/xy548/oneflow/pkg/core/blob"
	"github.com/xy548/oneflow/pkg/core/boxing"
	"github.com/xy548/oneflow/pkg/core/placement"
	"github.com/xy548/oneflow/pkg/core/sbp"
	"gopkg.in/yaml.v3"
)

// Plan is the contents of a plan file.
type Plan struct {
	Placements map[string]PlacementConfig `yaml:"placements"`
	Records    []RecordConfig             `yaml:"records"`

	// groups holds the parsed Placements, filled by Validate.
	groups map[string]*placement.Group
}

// PlacementConfig describes a placement.Group: the device kind ("cpu" or "gpu") and the device names
// ("<machine>:<first>-<last>").
type PlacementConfig struct {
	Device  string   `yaml:"device"`
	Devices []string `yaml:"devices"`
}

// RecordConfig describes one boxing.Record. Placements are referred to by name.
type RecordConfig struct {
	SrcOp        string `yaml:"src_op"`
	DstOp        string `yaml:"dst_op"`
	SrcPlacement string `yaml:"src_placement"`
	DstPlacement string `yaml:"dst_placement"`
	SrcSbp       string `yaml:"src_sbp"`
	DstSbp       string `yaml:"dst_sbp"`
	Lbi          string `yaml:"lbi"`
	DType        string `yaml:"dtype"`
	Shape        []int  `yaml:"shape"`
	Builder      string `yaml:"builder"`
	Comment      string `yaml:"comment,omitempty"`
}

// Load reads, parses and validates the plan file at path.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read plan %q", path)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, errors.WithMessagef(err, "plan %q", path)
	}
	return p, nil
}

// Parse and validate a plan from its YAML contents.
func Parse(data []byte) (*Plan, error) {
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, errors.Wrap(err, "failed to parse YAML")
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate the placements and every record of the plan.
func (p *Plan) Validate() error {
	p.groups = make(map[string]*placement.Group, len(p.Placements))
	for name, config := range p.Placements {
		kind, err := placement.ParseDeviceKind(config.Device)
		if err != nil {
			return errors.WithMessagef(err, "placement %q", name)
		}
		group, err := placement.Parse(kind, config.Devices...)
		if err != nil {
			return errors.WithMessagef(err, "placement %q", name)
		}
		p.groups[name] = group
	}
	for i := range p.Records {
		if _, err := p.Record(i); err != nil {
			return err
		}
	}
	return nil
}

// NumRecords in the plan.
func (p *Plan) NumRecords() int {
	return len(p.Records)
}

// Placement returns the parsed placement group with the given name, or nil if there isn't one.
func (p *Plan) Placement(name string) *placement.Group {
	return p.groups[name]
}

// Record builds the i-th boxing.Record of the plan. It requires Validate (or Load/Parse) to have been called.
//
// It's safe to call concurrently.
func (p *Plan) Record(i int) (*boxing.Record, error) {
	if i < 0 || i >= len(p.Records) {
		return nil, errors.Errorf("record #%d out of range, plan has %d records", i, len(p.Records))
	}
	rc := &p.Records[i]
	wrap := func(err error) error { return errors.WithMessagef(err, "record #%d (%s -> %s)", i, rc.SrcOp, rc.DstOp) }

	r := &boxing.Record{
		SrcOpName:   rc.SrcOp,
		DstOpName:   rc.DstOp,
		BuilderName: rc.Builder,
		Comment:     rc.Comment,
	}
	var err error
	if r.SrcPlacement, err = p.lookupPlacement(rc.SrcPlacement); err != nil {
		return nil, wrap(err)
	}
	if r.DstPlacement, err = p.lookupPlacement(rc.DstPlacement); err != nil {
		return nil, wrap(err)
	}
	if r.SrcSbp, err = sbp.Parse(rc.SrcSbp); err != nil {
		return nil, wrap(err)
	}
	if r.DstSbp, err = sbp.Parse(rc.DstSbp); err != nil {
		return nil, wrap(err)
	}
	if r.Lbi, err = blob.ParseLogicalBlobName(rc.Lbi); err != nil {
		return nil, wrap(err)
	}
	dtype, err := blob.ParseDType(rc.DType)
	if err != nil {
		return nil, wrap(err)
	}
	if r.BlobDesc, err = blob.NewDesc(dtype, rc.Shape...); err != nil {
		return nil, wrap(err)
	}
	if err = r.Validate(); err != nil {
		return nil, wrap(err)
	}
	return r, nil
}

func (p *Plan) lookupPlacement(name string) (*placement.Group, error) {
	group, found := p.groups[name]
	if !found {
		return nil, errors.Errorf("unknown placement %q", name)
	}
	return group, nil
}
