package syntax

import (
	"fmt"
	"strings"
)

// NodeKind tags an AST node.
type NodeKind uint8

const (
	NodeRoot NodeKind = iota
	NodeAlternation
	NodeConcat
	NodeLiteral
	NodeDot
	NodeClass
	NodeGroup
	NodeNonCapGroup
	NodeAtomicGroup
	NodeQuantifier
	NodeBackref
	NodeAnchorStart
	NodeAnchorEnd
	NodeInputStart
	NodeInputEnd
	NodeWordBoundary
	NodeNotWordBoundary
	NodeLookahead
	NodeLookbehind
	NodeBackrefReset
	NodeAnyBreak
)

var nodeKindNames = [...]string{
	NodeRoot:            "Root",
	NodeAlternation:     "Alternation",
	NodeConcat:          "Concat",
	NodeLiteral:         "Literal",
	NodeDot:             "Dot",
	NodeClass:           "Class",
	NodeGroup:           "Group",
	NodeNonCapGroup:     "NonCapGroup",
	NodeAtomicGroup:     "AtomicGroup",
	NodeQuantifier:      "Quantifier",
	NodeBackref:         "Backref",
	NodeAnchorStart:     "AnchorStart",
	NodeAnchorEnd:       "AnchorEnd",
	NodeInputStart:      "InputStart",
	NodeInputEnd:        "InputEnd",
	NodeWordBoundary:    "WordBoundary",
	NodeNotWordBoundary: "NotWordBoundary",
	NodeLookahead:       "Lookahead",
	NodeLookbehind:      "Lookbehind",
	NodeBackrefReset:    "BackrefReset",
	NodeAnyBreak:        "AnyBreak",
}

// String returns the kind's name.
func (k NodeKind) String() string {
	if int(k) < len(nodeKindNames) {
		return nodeKindNames[k]
	}
	return fmt.Sprintf("NodeKind(%d)", uint8(k))
}

// Node is one AST vertex. The parent pointer is a non-owning
// back-reference for upward queries; ownership flows strictly downward
// through Children, which preserve source order.
type Node struct {
	Kind NodeKind

	// Pos is the byte offset of the construct in the pattern.
	Pos int

	// Byte is the literal byte of a NodeLiteral.
	Byte byte

	// Class is the parsed membership bitmap of a NodeClass.
	Class ClassSet

	// Name is the group name of a named NodeGroup, or the name a
	// NodeBackref was written with (already resolved into Index).
	Name string

	// Index is the capturing-group index of a NodeGroup (0 for
	// non-capturing is never stored; those are NodeNonCapGroup), or the
	// target group of a NodeBackref.
	Index int

	// Quantifier bounds; Max < 0 means unbounded.
	Min, Max           int
	Greedy, Possessive bool

	// Negated marks negative lookarounds and \Z (input end that also
	// matches before a final line break).
	Negated bool

	// Flags is the effective flag set at this node, after inline
	// options.
	Flags Flags

	Parent   *Node
	Children []*Node
}

// NewNode constructs a node of the given kind at pos.
func NewNode(kind NodeKind, pos int) *Node {
	return &Node{Kind: kind, Pos: pos}
}

// AddChild appends child and fixes its parent link.
func (n *Node) AddChild(child *Node) {
	child.Parent = n
	n.Children = append(n.Children, child)
}

// Ancestor reports whether n lies on the parent chain of other (or is
// other itself).
func (n *Node) Ancestor(other *Node) bool {
	for p := other; p != nil; p = p.Parent {
		if p == n {
			return true
		}
	}
	return false
}

// Walk visits the node and its subtree in depth-first pre-order,
// stopping early when fn returns false.
func (n *Node) Walk(fn func(*Node) bool) bool {
	if !fn(n) {
		return false
	}
	for _, c := range n.Children {
		if !c.Walk(fn) {
			return false
		}
	}
	return true
}

// String renders a one-line summary of the node.
func (n *Node) String() string {
	switch n.Kind {
	case NodeLiteral:
		return fmt.Sprintf("Literal(%q)", n.Byte)
	case NodeClass:
		return fmt.Sprintf("Class(%d bytes)", n.Class.Count())
	case NodeGroup:
		if n.Name != "" {
			return fmt.Sprintf("Group(%d %q)", n.Index, n.Name)
		}
		return fmt.Sprintf("Group(%d)", n.Index)
	case NodeBackref:
		if n.Name != "" {
			return fmt.Sprintf("Backref(%d %q)", n.Index, n.Name)
		}
		return fmt.Sprintf("Backref(%d)", n.Index)
	case NodeQuantifier:
		suffix := ""
		if !n.Greedy {
			suffix = " lazy"
		}
		if n.Possessive {
			suffix = " possessive"
		}
		return fmt.Sprintf("Quantifier{%d,%d%s}", n.Min, n.Max, suffix)
	case NodeLookahead, NodeLookbehind:
		if n.Negated {
			return "Negative" + n.Kind.String()
		}
		return n.Kind.String()
	default:
		return n.Kind.String()
	}
}

// Dump renders the subtree as an indented listing, one node per line.
func (n *Node) Dump() string {
	var b strings.Builder
	n.dump(&b, 0)
	return b.String()
}

func (n *Node) dump(b *strings.Builder, depth int) {
	for i := 0; i < depth; i++ {
		b.WriteString("  ")
	}
	b.WriteString(n.String())
	b.WriteByte('\n')
	for _, c := range n.Children {
		c.dump(b, depth+1)
	}
}

// Tree is the parser's output: the root node plus pattern-wide
// bookkeeping recorded during the parse.
type Tree struct {
	// Root has kind NodeRoot and exactly one child.
	Root *Node

	// GroupCount is the number of capturing groups; indices run 1..GroupCount.
	GroupCount int

	// Names maps each capturing index to its name, "" when unnamed.
	// Index 0 is always "".
	Names []string

	// NameIndex maps a group name to its indices in ascending order.
	// Without DupNames every slice has length 1.
	NameIndex map[string][]int

	// Flags is the top-level flag set after leading inline options and
	// any rift-quote modifier suffix.
	Flags Flags
}

// NameToIndex resolves a group name to its lowest index, the target used
// by named backreferences.
func (tr *Tree) NameToIndex(name string) (int, bool) {
	idxs := tr.NameIndex[name]
	if len(idxs) == 0 {
		return 0, false
	}
	return idxs[0], true
}
