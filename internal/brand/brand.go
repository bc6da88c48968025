// Package brand walks the code documents of one brand and normalizes them into logical models.
//
// A brand document carries a hierarchical "tree" of nodes, addressed by integer index in a flat
// array, and a flat "others" list of legacy models. Both are turned into LogicalModel values, the
// unit consumed by the pattern builder.
package brand

import "errors"

// ErrMalformedDocument is returned when a document misses its required structure or breaks one
// of its invariants. It is fatal to that document only.
var ErrMalformedDocument = errors.New("malformed brand document")

// Document is the decoded form of one brand dump.
type Document struct {
	Tree   *Tree        `mapstructure:"tree"`
	Others []OtherModel `mapstructure:"others"`
}

// Tree is the hierarchical section of a brand document.
type Tree struct {
	// HasMarker reports whether the decryption marker field was present.
	// A tree without it is empty.
	HasMarker bool `mapstructure:"-"`

	RootIndex int        `mapstructure:"root_index"`
	Brand     int        `mapstructure:"brand"`
	Entries   int        `mapstructure:"entrys"`
	Nodes     []TreeNode `mapstructure:"nodes"`
}

// TreeNode is one node of Tree.Nodes. Parent and children are indices, not pointers.
type TreeNode struct {
	Index         int      `mapstructure:"index"`
	ParentIndex   int      `mapstructure:"parent_index"`
	ChildrenIndex []int    `mapstructure:"children_index"`
	Level         int      `mapstructure:"level"`
	Frequency     int      `mapstructure:"frequency"`
	KeyID         string   `mapstructure:"keyid"`
	Code          *string  `mapstructure:"ir_zip_key"`
	CodeReverse   string   `mapstructure:"ir_zip_key_r"`
	KeysetIDs     []string `mapstructure:"keysetids"`
}

// IsRoot reports whether the node is the root of the tree.
func (n TreeNode) IsRoot() bool {
	return n.ParentIndex == -1
}

// OtherModel is a self-contained legacy model record.
type OtherModel struct {
	ID        string            `mapstructure:"_id"`
	Source    string            `mapstructure:"source"`
	Frequency int               `mapstructure:"frequency"`
	Keys      map[string]string `mapstructure:"key"`
}

// LogicalModel is the normalized unit produced from either section of a document.
type LogicalModel struct {
	Frequency int
	// ModelID is the "others" _id as a single element, or the tree node keyset ids.
	ModelID []string
	// Source is the vendor tag. Empty for tree nodes.
	Source  string
	Buttons []ButtonDescriptor
}

// ButtonDescriptor is one encrypted button code.
type ButtonDescriptor struct {
	Name        string
	Blob        string
	ReverseBlob string
}

// HasReverse reports whether the button carries a reverse code.
func (b ButtonDescriptor) HasReverse() bool {
	return b.ReverseBlob != ""
}
