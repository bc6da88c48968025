package brand

import (
	"maps"
	"slices"
)

// Parse decodes a brand document and returns its logical models.
func Parse(data []byte) ([]LogicalModel, error) {
	doc, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return doc.Models(), nil
}

// Models returns the logical models of the document: "others" entries first, then tree nodes.
//
// Each (button, blob) pair of an "others" entry gives its own model. Reverse codes are not paired
// for "others": keys such as "power_r" come out as ordinary buttons.
//
// Each tree node carrying a blob gives one model whose single button holds both the code and its
// reverse code. Nodes without blob are structural and skipped. Node order is the array order.
func (d Document) Models() []LogicalModel {
	var models []LogicalModel

	for _, o := range d.Others {
		var modelID []string
		if o.ID != "" {
			modelID = []string{o.ID}
		}
		// Sorted for stable output, the dump map has no meaningful order.
		for _, name := range slices.Sorted(maps.Keys(o.Keys)) {
			models = append(models, LogicalModel{
				Frequency: o.Frequency,
				ModelID:   modelID,
				Source:    o.Source,
				Buttons:   []ButtonDescriptor{{Name: name, Blob: o.Keys[name]}},
			})
		}
	}

	if d.Tree == nil || !d.Tree.HasMarker {
		return models
	}

	for _, n := range d.Tree.Nodes {
		if n.Code == nil {
			continue
		}
		models = append(models, LogicalModel{
			Frequency: n.Frequency,
			ModelID:   n.KeysetIDs,
			Buttons: []ButtonDescriptor{{
				Name:        n.KeyID,
				Blob:        *n.Code,
				ReverseBlob: n.CodeReverse,
			}},
		})
	}

	return models
}
