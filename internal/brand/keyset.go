package brand

import (
	"maps"
	"slices"

	"github.com/ubuntu/decorate"
)

// keysetModel is the "data" section of a keyset model document.
type keysetModel struct {
	Frequency int               `mapstructure:"frequency"`
	Keys      map[string]string `mapstructure:"key"`
}

// ParseKeyset parses the document of one keyset model and returns one logical model per button.
//
// Keyset documents hold the full button set of a model referenced by tree node keyset ids.
// A document without buttons yields no model.
func ParseKeyset(keyset string, data []byte) (models []LogicalModel, err error) {
	defer decorate.OnError(&err, "could not decode keyset %q", keyset)

	root, err := decodeJSON(data, keysetSchema)
	if err != nil {
		return nil, err
	}
	section, _ := root["data"].(map[string]any)

	var m keysetModel
	if err := decodeSection(section, &m); err != nil {
		return nil, err
	}

	for _, name := range slices.Sorted(maps.Keys(m.Keys)) {
		models = append(models, LogicalModel{
			Frequency: m.Frequency,
			ModelID:   []string{keyset},
			Buttons:   []ButtonDescriptor{{Name: name, Blob: m.Keys[name]}},
		})
	}
	return models, nil
}
