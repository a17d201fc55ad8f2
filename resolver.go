package statechart

// ancestors returns id and its ancestors below the root, root-most first
func (g *Graph) ancestors(id StateID) []StateID {
	var chain []StateID
	for s := id; s != NoState && s != Root; s = g.nodes[s].parent {
		chain = append(chain, s)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// lcaIndex returns the first index of the ancestor lists that lies below the
// least common ancestor. A self transition exits and re-enters its state; when
// one list is a prefix of the other the shallower endpoint stays active.
func lcaIndex(exitChain, entryChain []StateID, same bool) int {
	m := len(exitChain)
	if len(entryChain) < m {
		m = len(entryChain)
	}
	if same {
		return m - 1
	}
	for i := 0; i < m; i++ {
		if exitChain[i] != entryChain[i] {
			return i
		}
	}
	return m
}

// scope returns the lcaIndex of a transition from source to target. A source
// inside a region never leaves its region alone: the enclosing concurrent
// state is exited and re-entered with it.
func (g *Graph) scope(d, a []StateID, same bool) int {
	lca := lcaIndex(d, a, same)
	if lca > 0 && lca < len(d) && g.nodes[d[lca-1]].kind == KindConcurrent {
		lca--
	}
	return lca
}

// resolve computes the exit set, deepest first, and the entry set, shallowest
// first, of a transition from source to target
func (g *Graph) resolve(source, target StateID) (exit, entry []StateID) {
	d := g.ancestors(source)
	a := g.ancestors(target)
	lca := g.scope(d, a, source == target)

	exit = make([]StateID, 0, len(d)-lca)
	for j := len(d) - 1; j >= lca; j-- {
		exit = append(exit, d[j])
	}
	entry = append(make([]StateID, 0, len(a)-lca), a[lca:]...)

	return exit, entry
}

// LeastCommonAncestor returns the deepest context enclosing both states and
// left untouched by a transition between them
func (g *Graph) LeastCommonAncestor(source, target StateID) StateID {
	if !g.valid(source) || !g.valid(target) || source == Root || target == Root {
		return Root
	}
	d := g.ancestors(source)
	lca := g.scope(d, g.ancestors(target), source == target)
	if lca == 0 {
		return Root
	}
	return d[lca-1]
}
