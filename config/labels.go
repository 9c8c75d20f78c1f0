package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/arturpragacz/labelgraph/errors"
	"github.com/arturpragacz/labelgraph/types"
)

// LabelsFile is the on-disk schema of the labels configuration:
//
//	labels:
//	  living_room:
//	    name: Living room
//	    parents: [ground_floor]
//	    aliases: [lounge]
//	label_rules:
//	  important_battery: label(important) and label(battery)
//	areas:
//	  - home
//	  - ground_floor
//	  - living_room
type LabelsFile struct {
	Labels map[types.LabelID]LabelEntry `yaml:"labels"`
	Rules  map[types.LabelID]string     `yaml:"label_rules"`
	Areas  []types.LabelID              `yaml:"areas"`
}

// LabelEntry is one label definition under the labels key.
type LabelEntry struct {
	Name    string          `yaml:"name"`
	Parents []types.LabelID `yaml:"parents"`
	Aliases []string        `yaml:"aliases"`
}

// LoadLabels reads and parses a labels file into configuration
// records. A rule or area key without a labels entry still defines the
// label, so small configurations need only the sections they use.
// Reserved identifiers are collected into diags; a syntax error aborts
// immediately.
func LoadLabels(path string, diags *errors.Diagnostics) ([]types.LabelRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapFatal(errors.ErrConfigNotFound, "config", "LoadLabels",
				fmt.Sprintf("reading labels file %s", path))
		}
		return nil, errors.WrapFatal(err, "config", "LoadLabels",
			fmt.Sprintf("reading labels file %s", path))
	}
	return ParseLabels(data, diags)
}

// ParseLabels parses labels-file content. See LoadLabels.
func ParseLabels(data []byte, diags *errors.Diagnostics) ([]types.LabelRecord, error) {
	var file LabelsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.WrapInvalid(err, "config", "ParseLabels", "parsing labels file")
	}
	return file.Records(diags), nil
}

// Records merges the three sections into one record per label.
func (f *LabelsFile) Records(diags *errors.Diagnostics) []types.LabelRecord {
	byID := make(map[types.LabelID]*types.LabelRecord)

	record := func(id types.LabelID) *types.LabelRecord {
		if rec, ok := byID[id]; ok {
			return rec
		}
		rec := &types.LabelRecord{ID: id}
		byID[id] = rec
		return rec
	}

	for id, entry := range f.Labels {
		if types.IsSpecialID(id) {
			diags.Addf(errors.ErrSpecialLabelID, "label %q uses a reserved identifier", id)
			continue
		}
		rec := record(id)
		rec.Name = entry.Name
		rec.Parents = entry.Parents
		rec.Aliases = entry.Aliases
	}

	for id, text := range f.Rules {
		if types.IsSpecialID(id) {
			diags.Addf(errors.ErrSpecialLabelID, "rule label %q uses a reserved identifier", id)
			continue
		}
		record(id).Rule = text
	}

	for _, id := range f.Areas {
		if types.IsSpecialID(id) {
			diags.Addf(errors.ErrSpecialLabelID, "area label %q uses a reserved identifier", id)
			continue
		}
		record(id).Area = true
	}

	out := make([]types.LabelRecord, 0, len(byID))
	for _, rec := range byID {
		out = append(out, *rec)
	}
	return out
}
