package brand

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"path"
	"reflect"

	"github.com/go-viper/mapstructure/v2"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/ubuntu/decorate"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

//go:embed schema/*.schema.json
var schemaFS embed.FS

var (
	brandSchema  = mustCompileSchema("brand.schema.json")
	keysetSchema = mustCompileSchema("keyset.schema.json")
)

// secretKeyMarker is the tree field whose presence marks a tree holding codes.
// The spelling is the vendor's.
const secretKeyMarker = "seceret_key"

// Decode parses and validates a brand document.
//
// The returned error wraps ErrMalformedDocument when the document is not valid JSON, misses its
// top-level "data" object, or breaks a node invariant.
func Decode(data []byte) (doc *Document, err error) {
	defer decorate.OnError(&err, "could not decode brand document")

	root, err := decodeJSON(data, brandSchema)
	if err != nil {
		return nil, err
	}
	section, _ := root["data"].(map[string]any)

	doc = &Document{}
	if err := decodeSection(section, doc); err != nil {
		return nil, err
	}

	if doc.Tree != nil {
		tree, _ := section["tree"].(map[string]any)
		_, doc.Tree.HasMarker = tree[secretKeyMarker]
		markNullCodes(tree, doc.Tree.Nodes)
		if err := doc.Tree.validate(); err != nil {
			return nil, err
		}
	}

	return doc, nil
}

// markNullCodes gives an empty code to nodes whose code key is present but null, so that they are
// built and skipped as undecryptable buttons instead of being taken for structural nodes.
func markNullCodes(tree map[string]any, nodes []TreeNode) {
	raw, _ := tree["nodes"].([]any)
	for i, r := range raw {
		if i >= len(nodes) || nodes[i].Code != nil {
			continue
		}
		n, _ := r.(map[string]any)
		if _, ok := n["ir_zip_key"]; ok {
			empty := ""
			nodes[i].Code = &empty
		}
	}
}

// validate checks the node invariants: unique indices, no code on the root and a button name on
// every node carrying a code. Children indices are not checked: they are not used to walk.
func (t Tree) validate() error {
	seen := make(map[int]struct{}, len(t.Nodes))
	for _, n := range t.Nodes {
		if _, dup := seen[n.Index]; dup {
			return fmt.Errorf("%w: duplicate node index %d", ErrMalformedDocument, n.Index)
		}
		seen[n.Index] = struct{}{}

		if n.Code == nil {
			continue
		}
		if n.IsRoot() {
			return fmt.Errorf("%w: root node %d carries a code", ErrMalformedDocument, n.Index)
		}
		if n.KeyID == "" {
			return fmt.Errorf("%w: node %d carries a code without keyid", ErrMalformedDocument, n.Index)
		}
	}
	return nil
}

// decodeJSON strips any byte order mark, unmarshals data and validates it against schema.
func decodeJSON(data []byte, schema *jsonschema.Schema) (map[string]any, error) {
	utf8Data, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
	if err != nil {
		return nil, errors.Join(ErrMalformedDocument, fmt.Errorf("invalid text encoding: %v", err))
	}

	var instance any
	d := json.NewDecoder(bytes.NewReader(utf8Data))
	d.UseNumber()
	if err := d.Decode(&instance); err != nil {
		return nil, errors.Join(ErrMalformedDocument, fmt.Errorf("json file is invalid and could not be parsed: %v", err))
	}

	if err := schema.Validate(instance); err != nil {
		return nil, errors.Join(ErrMalformedDocument, err)
	}

	root, ok := instance.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: top-level value is not an object", ErrMalformedDocument)
	}
	return root, nil
}

func decodeSection(section map[string]any, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       roundNumberHook,
		WeaklyTypedInput: true,
		Result:           target,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %v", err)
	}

	if err := decoder.Decode(section); err != nil {
		return errors.Join(ErrMalformedDocument, fmt.Errorf("data does not match expected model structure: %v", err))
	}
	return nil
}

// roundNumberHook decodes numbers written as floats, such as 37990.0, into integer fields by
// rounding them. Other values are left to the decoder.
func roundNumberHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	n, ok := data.(json.Number)
	if !ok || to.Kind() != reflect.Int {
		return data, nil
	}
	if _, err := n.Int64(); err == nil {
		return data, nil
	}
	f, err := n.Float64()
	if err != nil || math.IsInf(f, 0) || f > math.MaxInt32 || f < math.MinInt32 {
		return data, nil
	}
	return int(math.Round(f)), nil
}

func mustCompileSchema(name string) *jsonschema.Schema {
	f, err := schemaFS.Open(path.Join("schema", name))
	if err != nil {
		panic(fmt.Sprintf("missing embedded schema %q: %v", name, err))
	}
	defer f.Close()

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, f); err != nil {
		panic(fmt.Sprintf("invalid embedded schema %q: %v", name, err))
	}
	return compiler.MustCompile(name)
}
