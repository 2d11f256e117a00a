package tensor

import (
	"fmt"
	"sort"

	"github.com/YuminosukeSato/dpemu/pkg/errors"
)

// Kind identifies the structural shape of a Dataset.
type Kind int

const (
	KindArray Kind = iota
	KindTuple
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindArray:
		return "array"
	case KindTuple:
		return "tuple"
	case KindList:
		return "list"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Dataset is an array or a nested container of arrays.
type Dataset interface {
	Kind() Kind
	DeepCopy() Dataset
}

// Tuple is a fixed-length heterogeneous sequence, e.g. (images, labels).
type Tuple []Dataset

// Kind implements Dataset.
func (t Tuple) Kind() Kind { return KindTuple }

// DeepCopy implements Dataset.
func (t Tuple) DeepCopy() Dataset {
	out := make(Tuple, len(t))
	for i, d := range t {
		if d != nil {
			out[i] = d.DeepCopy()
		}
	}
	return out
}

// List is an ordered sequence whose elements may differ in shape, such as
// a collection of variable-length documents or images.
type List []Dataset

// Kind implements Dataset.
func (l List) Kind() Kind { return KindList }

// DeepCopy implements Dataset.
func (l List) DeepCopy() Dataset {
	out := make(List, len(l))
	for i, d := range l {
		if d != nil {
			out[i] = d.DeepCopy()
		}
	}
	return out
}

// NamedTuple turns a mapping of named series into a Tuple ordered by name.
// The returned names give the position of every entry, so a tree built for
// the tuple addresses the series deterministically.
func NamedTuple(m map[string]Dataset) ([]string, Tuple) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	t := make(Tuple, len(names))
	for i, name := range names {
		t[i] = m[name]
	}
	return names, t
}

// ToMap is the inverse of NamedTuple.
func (t Tuple) ToMap(names []string) (map[string]Dataset, error) {
	if len(names) != len(t) {
		return nil, errors.NewArityError("tensor.Tuple.ToMap", "", len(names), len(t))
	}
	m := make(map[string]Dataset, len(t))
	for i, name := range names {
		m[name] = t[i]
	}
	return m, nil
}

// Equal reports whether two datasets have the same structure and elements.
func Equal(a, b Dataset) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch x := a.(type) {
	case *Array:
		return x.Equal(b.(*Array))
	case Tuple:
		return equalSeq(x, b.(Tuple))
	case List:
		return equalSeq(x, b.(List))
	}
	return false
}

func equalSeq(a, b []Dataset) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// Describe returns a compact structural summary such as
// "tuple(array[10 28 28] uint8, array[10] float64)".
func Describe(d Dataset) string {
	switch x := d.(type) {
	case *Array:
		return fmt.Sprintf("array%v %s", x.shape, x.dtype)
	case Tuple:
		return "tuple(" + describeSeq(x) + ")"
	case List:
		return "list(" + describeSeq(x) + ")"
	case nil:
		return "nil"
	}
	return fmt.Sprintf("%T", d)
}

func describeSeq(items []Dataset) string {
	s := ""
	for i, d := range items {
		if i > 0 {
			s += ", "
		}
		if i == 8 {
			s += fmt.Sprintf("... %d more", len(items)-i)
			break
		}
		s += Describe(d)
	}
	return s
}
