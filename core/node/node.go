// Package node implements the error-generation tree.
//
// A tree is built from four node variants. Leaf wraps one array and runs
// its filters over it. Series applies its child to every element along the
// primary axis. Tuple applies one child per position of a tuple, and
// TupleSeries walks a tuple of equally long sequences step by step. Nodes
// own their children exclusively: a node can be attached to one parent
// only, and cycles are rejected when they are built.
//
// GenerateError is the entry point. It is called on the root with a
// dataset and a parameter dictionary and returns a corrupted copy with the
// same structure, shape and dtype. Caller data is never modified.
package node

import (
	"fmt"

	"github.com/YuminosukeSato/dpemu/core/params"
	"github.com/YuminosukeSato/dpemu/core/tensor"
	"github.com/YuminosukeSato/dpemu/filters"
	"github.com/YuminosukeSato/dpemu/pkg/errors"
)

// Kind is the structural variant of a Node.
type Kind int

const (
	KindLeaf Kind = iota
	KindSeries
	KindTuple
	KindTupleSeries
)

func (k Kind) String() string {
	switch k {
	case KindLeaf:
		return "leaf"
	case KindSeries:
		return "series"
	case KindTuple:
		return "tuple"
	case KindTupleSeries:
		return "tuple_series"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Node is a tree node. The set of implementations is closed: Leaf, Series,
// Tuple and TupleSeries.
type Node interface {
	Kind() Kind
	Name() string
	Parent() Node
	Children() []Node

	// GenerateError runs the tree rooted at this node. It fails with a
	// StructureError when the node is not a root.
	GenerateError(data tensor.Dataset, p params.Params, opts ...Option) (tensor.Dataset, error)

	apply(data tensor.Dataset, env *filters.Env) (tensor.Dataset, error)
	expects(path string, data tensor.Dataset) error
	setParent(parent Node)
}

type base struct {
	name   string
	parent Node
}

func (b *base) Parent() Node          { return b.parent }
func (b *base) setParent(parent Node) { b.parent = parent }

// SetName sets the label used for the node in error paths and logs.
func (b *base) SetName(name string) { b.name = name }

func (b *base) label(k Kind) string {
	if b.name != "" {
		return b.name
	}
	return k.String()
}

// attach makes child owned by parent.
func attach(op string, parent, child Node) error {
	if child == nil {
		return errors.NewStructureError(op, parent.Name(), "child node is nil")
	}
	if child.Parent() != nil {
		return errors.NewStructureError(op, parent.Name(),
			fmt.Sprintf("node %q already belongs to %q", child.Name(), child.Parent().Name()))
	}
	for n := parent; n != nil; n = n.Parent() {
		if n == child {
			return errors.NewStructureError(op, parent.Name(),
				fmt.Sprintf("attaching %q would create a cycle", child.Name()))
		}
	}
	child.setParent(parent)
	return nil
}

// Must panics if err is non-nil. It keeps tree literals in tests and
// examples short.
func Must[T Node](n T, err error) T {
	if err != nil {
		panic(err)
	}
	return n
}

// Walk visits root and its descendants depth-first, passing the path of
// every node. Elements of a Series are shown as [*].
func Walk(root Node, fn func(path string, n Node) error) error {
	return walk(root, root.Name(), fn)
}

func walk(n Node, path string, fn func(string, Node) error) error {
	if err := fn(path, n); err != nil {
		return err
	}
	for i, c := range n.Children() {
		index := fmt.Sprint(i)
		if n.Kind() == KindSeries {
			index = "*"
		}
		if err := walk(c, fmt.Sprintf("%s/[%s]/%s", path, index, c.Name()), fn); err != nil {
			return err
		}
	}
	return nil
}

// run enters n's position in env and applies it.
func run(n Node, data tensor.Dataset, env *filters.Env) (tensor.Dataset, error) {
	env.Push(n.Name())
	defer env.Pop()
	if err := n.expects(env.Path(), data); err != nil {
		return nil, err
	}
	out, err := n.apply(data, env)
	if err != nil {
		return nil, err
	}
	if out == nil || out.Kind() != data.Kind() {
		return nil, errors.NewStructureError("node.apply", env.Path(), "node changed the dataset structure")
	}
	return out, nil
}
