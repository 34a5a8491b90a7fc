package syntax

// widthCap saturates width arithmetic so pathological nesting cannot
// overflow. Any width at the cap is still "bounded" for lookbehind
// purposes; the compiler treats it like any other finite window.
const widthCap = 1 << 30

func addW(a, b int) int {
	if a+b > widthCap {
		return widthCap
	}
	return a + b
}

func mulW(a, b int) int {
	if a == 0 || b == 0 {
		return 0
	}
	if a > widthCap/b {
		return widthCap
	}
	return a * b
}

// MinWidth returns the fewest input bytes the subtree can consume.
func (n *Node) MinWidth() int {
	switch n.Kind {
	case NodeLiteral, NodeClass, NodeDot, NodeAnyBreak:
		return 1

	case NodeAnchorStart, NodeAnchorEnd, NodeInputStart, NodeInputEnd,
		NodeWordBoundary, NodeNotWordBoundary, NodeBackrefReset,
		NodeLookahead, NodeLookbehind:
		return 0

	case NodeBackref:
		// The referenced group may have captured the empty string.
		return 0

	case NodeConcat:
		w := 0
		for _, c := range n.Children {
			w = addW(w, c.MinWidth())
		}
		return w

	case NodeAlternation:
		w := widthCap
		for _, c := range n.Children {
			if cw := c.MinWidth(); cw < w {
				w = cw
			}
		}
		return w

	case NodeQuantifier:
		return mulW(n.Min, n.Children[0].MinWidth())

	case NodeRoot, NodeGroup, NodeNonCapGroup, NodeAtomicGroup:
		if len(n.Children) == 0 {
			return 0
		}
		return n.Children[0].MinWidth()
	}
	return 0
}

// MaxWidth returns the most input bytes the subtree can consume and
// whether that bound is finite. Lookbehind requires a finite bound.
func (n *Node) MaxWidth() (w int, bounded bool) {
	switch n.Kind {
	case NodeLiteral, NodeClass:
		return 1, true

	case NodeDot:
		if n.Flags.Has(UTF8) {
			// A dot consumes one rune, up to four bytes.
			return 4, true
		}
		return 1, true

	case NodeAnyBreak:
		return 2, true

	case NodeAnchorStart, NodeAnchorEnd, NodeInputStart, NodeInputEnd,
		NodeWordBoundary, NodeNotWordBoundary, NodeBackrefReset,
		NodeLookahead, NodeLookbehind:
		return 0, true

	case NodeBackref:
		// Width depends on what the group captured at run time.
		return 0, false

	case NodeConcat:
		total := 0
		for _, c := range n.Children {
			cw, ok := c.MaxWidth()
			if !ok {
				return 0, false
			}
			total = addW(total, cw)
		}
		return total, true

	case NodeAlternation:
		max := 0
		for _, c := range n.Children {
			cw, ok := c.MaxWidth()
			if !ok {
				return 0, false
			}
			if cw > max {
				max = cw
			}
		}
		return max, true

	case NodeQuantifier:
		cw, ok := n.Children[0].MaxWidth()
		if !ok {
			return 0, false
		}
		if cw == 0 {
			return 0, true
		}
		if n.Max < 0 {
			return 0, false
		}
		return mulW(n.Max, cw), true

	case NodeRoot, NodeGroup, NodeNonCapGroup, NodeAtomicGroup:
		if len(n.Children) == 0 {
			return 0, true
		}
		return n.Children[0].MaxWidth()
	}
	return 0, true
}
