// Package blocktree maintains the in-memory forest of non-finalized
// headers: every known fork rooted at the last finalized block.
//
// The structure is an arena of nodes indexed by hash; parent and child
// links are hashes, not pointers, which keeps the forest acyclic and makes
// pruning an O(subtree) sweep over map entries. The tree is not safe for
// concurrent use: callers serialize mutation behind a single writer.
package blocktree

import (
	"fmt"

	"github.com/arclight-network/arclight/types"
	"github.com/arclight-network/arclight/verifier"
)

type node struct {
	header *types.Header
	meta   *verifier.BlockMeta

	parent   types.Hash
	children []types.Hash
}

// Tree is the forest of retained headers rooted at the last finalized
// block. Exactly one root exists at any time; the root's own ancestors are
// not retained.
type Tree struct {
	root     types.Hash
	nodes    map[types.Hash]*node
	leaves   map[types.Hash]struct{}
	maxDepth uint64
}

// New creates a tree whose root is the given finalized header, typically
// genesis or a warp-sync target. maxDepth bounds the retained non-finalized
// depth; zero means unbounded.
func New(root *types.Header, rootMeta *verifier.BlockMeta, maxDepth uint64) *Tree {
	rootHash := root.Hash()
	t := &Tree{
		root:     rootHash,
		nodes:    make(map[types.Hash]*node),
		leaves:   map[types.Hash]struct{}{rootHash: {}},
		maxDepth: maxDepth,
	}
	t.nodes[rootHash] = &node{header: root, meta: rootMeta}
	return t
}

// Insert adds a verified header to the tree. The parent must already be
// present (types.ErrAwaitingParent otherwise); re-inserting a retained
// header is reported with types.ErrAlreadyInTree and mutates nothing.
func (t *Tree) Insert(hdr *types.Header, meta *verifier.BlockMeta) error {
	hash := hdr.Hash()
	if _, ok := t.nodes[hash]; ok {
		return types.ErrAlreadyInTree
	}

	rootNumber := t.nodes[t.root].header.Number
	if hdr.Number <= rootNumber {
		return types.ErrBelowFinalized
	}

	if t.maxDepth > 0 && hdr.Number-rootNumber > t.maxDepth {
		return types.ErrCapacityExceeded
	}

	parent, ok := t.nodes[hdr.ParentHash]
	if !ok {
		return types.ErrAwaitingParent
	}

	t.nodes[hash] = &node{
		header: hdr,
		meta:   meta,
		parent: hdr.ParentHash,
	}
	parent.children = append(parent.children, hash)
	delete(t.leaves, hdr.ParentHash)
	t.leaves[hash] = struct{}{}
	return nil
}

// Contains reports whether hash is retained (the finalized root counts).
func (t *Tree) Contains(hash types.Hash) bool {
	_, ok := t.nodes[hash]
	return ok
}

// HeaderByHash returns the retained header with the given hash.
func (t *Tree) HeaderByHash(hash types.Hash) (*types.Header, bool) {
	n, ok := t.nodes[hash]
	if !ok {
		return nil, false
	}
	return n.header, true
}

// MetaByHash returns the verified context of the retained header with the
// given hash.
func (t *Tree) MetaByHash(hash types.Hash) (*verifier.BlockMeta, bool) {
	n, ok := t.nodes[hash]
	if !ok {
		return nil, false
	}
	return n.meta, true
}

// FinalizedRoot returns the tree's finalized root.
func (t *Tree) FinalizedRoot() (types.Hash, *types.Header) {
	return t.root, t.nodes[t.root].header
}

// BestChainHead selects the tip with the greatest cumulative weight. Ties
// break to the lexicographically smallest hash so every node reaches the
// same verdict on the same forks.
func (t *Tree) BestChainHead() (types.Hash, *types.Header) {
	var (
		bestHash   types.Hash
		bestWeight uint64
		found      bool
	)
	for leaf := range t.leaves {
		w := t.nodes[leaf].meta.Weight
		switch {
		case !found, w > bestWeight:
			bestHash, bestWeight, found = leaf, w, true
		case w == bestWeight && leaf.Less(bestHash):
			bestHash = leaf
		}
	}
	if !found {
		panic("blocktree: tree has no leaves")
	}
	return bestHash, t.nodes[bestHash].header
}

// Leaves returns the hashes of all retained tips.
func (t *Tree) Leaves() []types.Hash {
	out := make([]types.Hash, 0, len(t.leaves))
	for leaf := range t.leaves {
		out = append(out, leaf)
	}
	return out
}

// IsDescendant reports whether desc is equal to or a descendant of anc.
// Both must be retained.
func (t *Tree) IsDescendant(anc, desc types.Hash) (bool, error) {
	if _, ok := t.nodes[anc]; !ok {
		return false, types.ErrUnknownBlock
	}
	n, ok := t.nodes[desc]
	if !ok {
		return false, types.ErrUnknownBlock
	}

	for {
		if desc == anc {
			return true, nil
		}
		if desc == t.root {
			return false, nil
		}
		desc = n.parent
		n, ok = t.nodes[desc]
		if !ok {
			panic(fmt.Sprintf("blocktree: dangling parent reference %s", desc.ShortString()))
		}
	}
}

// Finalize makes hash the tree's new root. The hash must be retained; the
// newly finalized chain segment (oldest first, excluding the previous
// root) is returned. Every branch not passing through hash is pruned, as
// are the new root's strict ancestors.
func (t *Tree) Finalize(hash types.Hash) ([]*types.Header, error) {
	if _, ok := t.nodes[hash]; !ok {
		return nil, types.ErrUnknownBlock
	}
	if hash == t.root {
		return nil, nil
	}

	// Collect the path root..hash. Every retained node descends from the
	// root, so the walk must reach it.
	var segment []*types.Header
	for cur := hash; cur != t.root; {
		n, ok := t.nodes[cur]
		if !ok {
			panic(fmt.Sprintf("blocktree: dangling parent reference %s", cur.ShortString()))
		}
		segment = append(segment, n.header)
		cur = n.parent
	}
	// reverse to oldest-first
	for i, j := 0, len(segment)-1; i < j; i, j = i+1, j-1 {
		segment[i], segment[j] = segment[j], segment[i]
	}

	// Sweep: keep hash and its descendants, drop everything else.
	retain := make(map[types.Hash]struct{}, len(t.nodes))
	t.markSubtree(hash, retain)
	for h := range t.nodes {
		if _, keep := retain[h]; !keep {
			delete(t.nodes, h)
			delete(t.leaves, h)
		}
	}

	newRoot := t.nodes[hash]
	newRoot.parent = types.Hash{}
	t.root = hash
	if len(newRoot.children) == 0 {
		t.leaves[hash] = struct{}{}
	}

	t.assertConsistent()
	return segment, nil
}

// PruneCompeting discards branches whose tips are at or below
// finalizedNumber: they can never accumulate enough weight to overtake a
// chain already finalized at that height. Returns the pruned tips.
func (t *Tree) PruneCompeting(finalizedNumber uint64) []types.Hash {
	var pruned []types.Hash
	for {
		var victim types.Hash
		found := false
		for leaf := range t.leaves {
			if leaf == t.root {
				continue
			}
			if t.nodes[leaf].header.Number <= finalizedNumber {
				victim, found = leaf, true
				break
			}
		}
		if !found {
			return pruned
		}

		pruned = append(pruned, victim)
		t.dropLeaf(victim)
	}
}

// Depth returns the number of blocks between the root and the deepest tip.
func (t *Tree) Depth() uint64 {
	rootNumber := t.nodes[t.root].header.Number
	depth := uint64(0)
	for leaf := range t.leaves {
		if d := t.nodes[leaf].header.Number - rootNumber; d > depth {
			depth = d
		}
	}
	return depth
}

// Size returns the number of retained headers, root included.
func (t *Tree) Size() int {
	return len(t.nodes)
}

func (t *Tree) markSubtree(hash types.Hash, marked map[types.Hash]struct{}) {
	marked[hash] = struct{}{}
	for _, child := range t.nodes[hash].children {
		t.markSubtree(child, marked)
	}
}

// dropLeaf removes a tip and then its newly childless ancestors, stopping
// at the first branch point or the root.
func (t *Tree) dropLeaf(leaf types.Hash) {
	for leaf != t.root {
		n := t.nodes[leaf]
		if len(n.children) > 0 {
			return
		}
		delete(t.nodes, leaf)
		delete(t.leaves, leaf)

		parent := t.nodes[n.parent]
		if parent == nil {
			panic(fmt.Sprintf("blocktree: dangling parent reference %s", n.parent.ShortString()))
		}
		parent.children = removeHash(parent.children, leaf)
		if len(parent.children) == 0 {
			t.leaves[n.parent] = struct{}{}
		}
		leaf = n.parent
	}
}

// assertConsistent panics if pruning left a node that cannot reach the
// root. A violation is a bug in the tree, not bad input.
func (t *Tree) assertConsistent() {
	for h, n := range t.nodes {
		cur, cn := h, n
		for cur != t.root {
			next, ok := t.nodes[cn.parent]
			if !ok {
				panic(fmt.Sprintf("blocktree: node %s cannot reach finalized root", h.ShortString()))
			}
			cur, cn = cn.parent, next
		}
	}
}

func removeHash(hashes []types.Hash, h types.Hash) []types.Hash {
	for i := range hashes {
		if hashes[i] == h {
			return append(hashes[:i], hashes[i+1:]...)
		}
	}
	return hashes
}
