// Copyright (c) 2021 The mpcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mpc

import (
	"fmt"

	"gitlab.com/mpcsuite/mpc/types/commithash"
)

// treeNode is a single entry of a block cross-section: either a concealed
// subtree represented by its hash, or a revealed leaf carrying a protocol's
// plaintext commitment. Entries tile the leaf row left to right.
type treeNode struct {
	leaf       bool
	depth      uint8           // distance from the root, concealed nodes only
	hash       commithash.Hash // concealed nodes only
	protocolID ProtocolId
	message    Message
}

func concealedNode(depth uint8, hash commithash.Hash) treeNode {
	return treeNode{depth: depth, hash: hash}
}

func commitmentLeaf(pid ProtocolId, msg Message) treeNode {
	return treeNode{leaf: true, protocolID: pid, message: msg}
}

// depthOr returns the node depth, which for a leaf is the full tree depth.
func (n treeNode) depthOr(treeDepth uint8) uint8 {
	if n.leaf {
		return treeDepth
	}
	return n.depth
}

// span is the number of leaf slots the node subsumes.
func (n treeNode) span(treeDepth uint8) uint32 {
	return 1 << uint(treeDepth-n.depthOr(treeDepth))
}

// merkleHash returns the hash the node contributes to its parent.
func (n treeNode) merkleHash(method Method) commithash.Hash {
	if n.leaf {
		return InhabitedLeaf(n.protocolID, n.message).Hash(method)
	}
	return n.hash
}

// MerkleBlock is a partially concealed projection of a merkle tree, the
// artifact shared with parties who should learn some leaves but not
// others. It starts fully concealed and only ever gains detail: reveal
// operations subdivide concealed subtrees, never the other way around.
//
// A block derived from a tree keeps a reference to it and can reveal any
// protocol the tree holds. A detached block, one reconstructed from a proof
// or from its serialized form, carries no tree; it gains leaves only by
// merging other blocks over the same commitment.
type MerkleBlock struct {
	method   Method
	depth    uint8
	cofactor uint16
	entropy  *uint64

	crossSection []treeNode

	// root is the merkle root every mutation of the block must preserve.
	root commithash.Hash

	source *MerkleTree
}

// NewMerkleBlock projects a tree into the most compact concealed block: a
// cross-section of a single concealed node carrying the root.
func NewMerkleBlock(tree *MerkleTree) *MerkleBlock {
	entropy := tree.Entropy()
	return &MerkleBlock{
		method:       tree.Method(),
		depth:        tree.Depth(),
		cofactor:     tree.Cofactor(),
		entropy:      &entropy,
		crossSection: []treeNode{concealedNode(0, tree.Root())},
		root:         tree.Root(),
		source:       tree,
	}
}

// MerkleBlockFromProof reconstructs the minimal block provable from a
// single inclusion proof: the revealed leaf plus one concealed sibling
// subtree per tree level. The resulting block is detached, it carries
// neither entropy nor a source tree.
func MerkleBlockFromProof(proof *MerkleProof, pid ProtocolId, msg Message) (*MerkleBlock, error) {
	if err := proof.validate(); err != nil {
		return nil, err
	}

	depth := proof.Depth()
	pos := proof.pos

	crossSection := make([]treeNode, 0, int(depth)+1)
	for i := int(depth) - 1; i >= 0; i-- {
		if pos>>uint(i)&1 == 1 {
			crossSection = append(crossSection, concealedNode(depth-uint8(i), proof.path[i]))
		}
	}
	crossSection = append(crossSection, commitmentLeaf(pid, msg))
	for i := 0; i < int(depth); i++ {
		if pos>>uint(i)&1 == 0 {
			crossSection = append(crossSection, concealedNode(depth-uint8(i), proof.path[i]))
		}
	}

	block := &MerkleBlock{
		method:       proof.method,
		depth:        depth,
		cofactor:     proof.cofactor,
		crossSection: crossSection,
	}
	root, err := block.foldRoot()
	if err != nil {
		return nil, err
	}
	block.root = root
	return block, nil
}

// Method returns the digest function of the underlying tree.
func (b *MerkleBlock) Method() Method { return b.method }

// Depth returns the depth of the underlying tree.
func (b *MerkleBlock) Depth() uint8 { return b.depth }

// Width returns the number of slots in the leaf row.
func (b *MerkleBlock) Width() uint32 { return 1 << uint(b.depth) }

// Cofactor returns the placement cofactor of the underlying tree.
func (b *MerkleBlock) Cofactor() uint16 { return b.cofactor }

// Entropy returns the filler-leaf entropy and whether the block knows it.
// Detached blocks built from proofs never do.
func (b *MerkleBlock) Entropy() (uint64, bool) {
	if b.entropy == nil {
		return 0, false
	}
	return *b.entropy, true
}

// KnownMessages collects every revealed leaf into a message map.
func (b *MerkleBlock) KnownMessages() MessageMap {
	msgs := make(MessageMap)
	for _, node := range b.crossSection {
		if node.leaf {
			msgs[node.protocolID] = node.message
		}
	}
	return msgs
}

// Conceal reduces the block to the header bound by the commitment. The
// reduction re-folds the cross-section, so a corrupted block errors here
// rather than producing a wrong commitment.
func (b *MerkleBlock) Conceal() (MerkleConcealed, error) {
	root, err := b.foldRoot()
	if err != nil {
		return MerkleConcealed{}, err
	}
	return MerkleConcealed{Depth: b.depth, Cofactor: b.cofactor, Root: root}, nil
}

// Commitment computes the multi-protocol commitment the block belongs to.
// It is identical to the commitment of the tree the block was derived from.
func (b *MerkleBlock) Commitment() (Commitment, error) {
	concealed, err := b.Conceal()
	if err != nil {
		return Commitment{}, err
	}
	return concealed.Commitment(b.method), nil
}

// foldRoot re-hashes the cross-section in order back into the tree root.
func (b *MerkleBlock) foldRoot() (commithash.Hash, error) {
	root, rest, err := foldNodes(b.method, b.depth, b.crossSection, 0)
	if err != nil {
		return commithash.Hash{}, err
	}
	if len(rest) != 0 {
		return commithash.Hash{}, fmt.Errorf("%w: %d trailing entries", ErrInvalidEntrySpan, len(rest))
	}
	return root, nil
}

// foldNodes consumes the prefix of nodes forming one complete subtree
// rooted at the given depth and returns its hash along with the unconsumed
// remainder.
func foldNodes(method Method, treeDepth uint8, nodes []treeNode, depth uint8) (commithash.Hash, []treeNode, error) {
	if len(nodes) == 0 {
		return commithash.Hash{}, nil, fmt.Errorf("%w: truncated cross-section", ErrInvalidEntrySpan)
	}
	node := nodes[0]
	nodeDepth := node.depthOr(treeDepth)
	switch {
	case nodeDepth == depth:
		// Leaves always sit at treeDepth via depthOr, so this case covers
		// both a revealed leaf on the leaf row and a concealed subtree root.
		return node.merkleHash(method), nodes[1:], nil
	case nodeDepth > depth:
		left, rest, err := foldNodes(method, treeDepth, nodes, depth+1)
		if err != nil {
			return commithash.Hash{}, nil, err
		}
		right, rest, err := foldNodes(method, treeDepth, rest, depth+1)
		if err != nil {
			return commithash.Hash{}, nil, err
		}
		return merkleNodeHash(method, treeDepth-depth, left, right), rest, nil
	default:
		return commithash.Hash{}, nil, fmt.Errorf("%w: entry crosses a subtree boundary", ErrInvalidEntrySpan)
	}
}

// leafPos scans the cross-section for a revealed leaf under pid, returning
// its entry index and absolute slot position.
func (b *MerkleBlock) leafPos(pid ProtocolId) (int, uint32, bool) {
	var offset uint32
	for i, node := range b.crossSection {
		if node.leaf && node.protocolID == pid {
			return i, offset, true
		}
		offset += node.span(b.depth)
	}
	return 0, 0, false
}

// coveringEntry returns the index and starting slot of the cross-section
// entry whose span contains pos.
func (b *MerkleBlock) coveringEntry(pos uint32) (int, uint32) {
	var offset uint32
	for i, node := range b.crossSection {
		span := node.span(b.depth)
		if pos < offset+span {
			return i, offset
		}
		offset += span
	}
	// The cross-section tiles the whole leaf row, so a position inside the
	// tree width is always covered.
	panic("mpc: cross-section does not cover the leaf row")
}

// Reveal discloses the leaves committed under the given protocols,
// subdividing concealed subtrees until each target slot stands alone.
// Revealing an already revealed protocol is a no-op, so reveals are
// monotonic and commute. The block must be backed by its source tree;
// detached blocks gain leaves only through MergeReveal.
func (b *MerkleBlock) Reveal(pids ...ProtocolId) error {
	for _, pid := range pids {
		if err := b.revealOne(pid); err != nil {
			return err
		}
	}
	if err := b.checkRoot(); err != nil {
		return err
	}
	log.Trace().Int("revealed", len(pids)).Int("entries", len(b.crossSection)).
		Msg("revealed protocols in merkle block")
	return nil
}

// RevealAll discloses every protocol of the source tree.
func (b *MerkleBlock) RevealAll() error {
	if b.source == nil {
		return ErrDetachedBlock
	}
	return b.Reveal(b.source.messages.Protocols()...)
}

func (b *MerkleBlock) revealOne(pid ProtocolId) error {
	if _, _, ok := b.leafPos(pid); ok {
		return nil
	}
	if b.source == nil {
		return fmt.Errorf("%w: can not reveal protocol %s", ErrDetachedBlock, pid)
	}
	pos, ok := b.source.ProtocolPos(pid)
	if !ok {
		return fmt.Errorf("%w: protocol %s", ErrLeafNotFound, pid)
	}

	for {
		idx, start := b.coveringEntry(pos)
		node := b.crossSection[idx]
		nodeDepth := node.depthOr(b.depth)
		if nodeDepth == b.depth {
			b.crossSection[idx] = commitmentLeaf(pid, b.source.messages[pid])
			return nil
		}

		// Split the concealed subtree into its two children.
		height := uint(b.depth - nodeDepth - 1)
		leftIndex := start >> height
		left := concealedNode(nodeDepth+1, b.source.subtreeHashAt(nodeDepth+1, leftIndex))
		right := concealedNode(nodeDepth+1, b.source.subtreeHashAt(nodeDepth+1, leftIndex+1))

		b.crossSection = append(b.crossSection, treeNode{})
		copy(b.crossSection[idx+2:], b.crossSection[idx+1:])
		b.crossSection[idx] = left
		b.crossSection[idx+1] = right
	}
}

// checkRoot verifies the structural integrity invariant: folding the
// cross-section reproduces the root the block was created with.
func (b *MerkleBlock) checkRoot() error {
	root, err := b.foldRoot()
	if err != nil {
		return err
	}
	if root != b.root {
		return fmt.Errorf("%w: cross-section no longer folds to the original root", ErrInvalidEntrySpan)
	}
	return nil
}

// MergeReveal joins the revealed leaves of another block over the same
// commitment into this one. Merging a block reconstructed from a proof is
// how a verifier accumulates disclosures from multiple parties without
// ever holding the tree.
func (b *MerkleBlock) MergeReveal(other *MerkleBlock) error {
	if b.method != other.method || b.depth != other.depth ||
		b.cofactor != other.cofactor || b.root != other.root {
		return ErrUnrelatedBlocks
	}

	merged := make([]treeNode, 0, len(b.crossSection)+len(other.crossSection))
	a, c := b.crossSection, other.crossSection

	for len(a) > 0 && len(c) > 0 {
		n1, n2 := a[0], c[0]
		d1, d2 := n1.depthOr(b.depth), n2.depthOr(b.depth)
		switch {
		case d1 == d2 && n1 == n2:
			merged = append(merged, n1)
			a, c = a[1:], c[1:]

		case d1 == d2:
			switch {
			case n1.leaf && !n2.leaf:
				merged = append(merged, n1)
			case !n1.leaf && n2.leaf:
				merged = append(merged, n2)
			case !n1.leaf && !n2.leaf:
				return fmt.Errorf("%w: conflicting subtree hashes at depth %d", ErrInvalidEntrySpan, d1)
			default:
				return fmt.Errorf("%w: conflicting leaves at one position", ErrInvalidEntrySpan)
			}
			a, c = a[1:], c[1:]

		case d1 < d2:
			// The other block is more detailed here: copy its entries
			// until they have tiled the subtree our single entry covers.
			run, rest := consumeSubtree(b.depth, c, d1)
			merged = append(merged, run...)
			c = rest
			a = a[1:]

		default:
			run, rest := consumeSubtree(b.depth, a, d2)
			merged = append(merged, run...)
			a = rest
			c = c[1:]
		}
	}
	merged = append(merged, a...)
	merged = append(merged, c...)

	var total uint32
	for _, node := range merged {
		total += node.span(b.depth)
	}
	if total != b.Width() {
		return fmt.Errorf("%w: merged entries span %d of %d slots", ErrInvalidEntrySpan, total, b.Width())
	}

	prev := b.crossSection
	b.crossSection = merged
	if err := b.checkRoot(); err != nil {
		b.crossSection = prev
		return err
	}

	if b.entropy == nil && other.entropy != nil {
		entropy := *other.entropy
		b.entropy = &entropy
	}
	if b.source == nil {
		b.source = other.source
	}
	return nil
}

// consumeSubtree splits off the run of entries which together tile one
// complete subtree at the given depth, returning the run and the
// remainder.
func consumeSubtree(treeDepth uint8, nodes []treeNode, depth uint8) ([]treeNode, []treeNode) {
	buoy := newMerkleBuoy(nodes[0].depthOr(treeDepth))
	consumed := 1
	for buoy.level() > depth && consumed < len(nodes) {
		buoy.push(nodes[consumed].depthOr(treeDepth))
		consumed++
	}
	return nodes[:consumed], nodes[consumed:]
}

// ExtractProof produces the inclusion proof for the protocol's leaf. The
// leaf must be revealed in the block, or the block must still be backed by
// its source tree.
func (b *MerkleBlock) ExtractProof(pid ProtocolId) (*MerkleProof, error) {
	_, pos, ok := b.leafPos(pid)
	if !ok {
		if b.source != nil {
			return b.source.ExtractProof(pid)
		}
		return nil, fmt.Errorf("%w: protocol %s", ErrLeafNotFound, pid)
	}

	path := make([]commithash.Hash, b.depth)
	for i := uint8(0); i < b.depth; i++ {
		sibling := (pos >> uint(i)) ^ 1
		hash, err := b.subtreeHash(b.depth-i, sibling)
		if err != nil {
			return nil, err
		}
		path[i] = hash
	}
	return &MerkleProof{
		method:   b.method,
		pos:      pos,
		cofactor: b.cofactor,
		path:     path,
	}, nil
}

// subtreeHash computes the hash of the subtree at the given depth and
// horizontal index from the cross-section, falling back to the source tree
// when the subtree lies inside a larger concealed entry.
func (b *MerkleBlock) subtreeHash(depth uint8, index uint32) (commithash.Hash, error) {
	height := uint(b.depth - depth)
	start := index << height

	idx, entryStart := b.coveringEntry(start)
	if entryStart != start || b.crossSection[idx].span(b.depth) > 1<<height {
		if b.source != nil {
			return b.source.subtreeHashAt(depth, index), nil
		}
		return commithash.Hash{}, fmt.Errorf("%w: subtree concealed above the requested level", ErrInvalidEntrySpan)
	}
	hash, _, err := foldNodes(b.method, b.depth, b.crossSection[idx:], depth)
	return hash, err
}
