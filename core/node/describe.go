package node

import (
	"fmt"
	"strings"

	"github.com/xlab/treeprint"
)

// Describe renders the tree, one line per node and filter:
//
//	series
//	└── leaf
//	    ├── GaussianNoise [mean std]
//	    └── Clip
func Describe(root Node) string {
	tree := treeprint.NewWithRoot(root.Name())
	describeInto(tree, root)
	return tree.String()
}

func describeInto(branch treeprint.Tree, n Node) {
	if leaf, ok := n.(*Leaf); ok {
		for _, f := range leaf.filters {
			label := f.Name()
			if keys := f.Keys(); len(keys) > 0 {
				label += " [" + strings.Join(keys, " ") + "]"
			}
			if f.InPlace() {
				label += " (in-place)"
			}
			branch.AddNode(label)
		}
		return
	}
	for _, c := range n.Children() {
		label := c.Name()
		if leaf, ok := c.(*Leaf); ok && leaf.reshape != nil {
			label = fmt.Sprintf("%s reshape=%v", label, leaf.reshape)
		}
		if len(c.Children()) == 0 {
			if leaf, ok := c.(*Leaf); !ok || len(leaf.filters) == 0 {
				branch.AddNode(label)
				continue
			}
		}
		describeInto(branch.AddBranch(label), c)
	}
}
