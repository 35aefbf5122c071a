// Copyright (c) 2021 The mpcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mpc

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/aead/siphash"

	"gitlab.com/mpcsuite/mpc/types/commithash"
)

// MerkleTree is the complete, never-shared form of a multi-protocol
// commitment: the full message set together with the placement parameters
// that won the slot search. The tree is immutable once built; everything
// that leaves the committer's machine is derived from it through
// NewMerkleBlock or ExtractProof.
type MerkleTree struct {
	method   Method
	depth    uint8
	entropy  uint64
	cofactor uint16
	messages MessageMap

	// assignment maps occupied leaf positions to their protocols. It is
	// fully determined by (entropy, cofactor, depth) and the protocol set,
	// and is rebuilt rather than stored when a tree is deserialized.
	assignment map[uint32]ProtocolId

	// root caches the merklized leaf row after the first computation.
	root *commithash.Hash
}

// protocolPos computes the leaf slot of a protocol inside a tree of the
// given width. The slot is keyed by both the entropy and the cofactor, so
// every placement attempt reshuffles all protocols at once.
func protocolPos(pid ProtocolId, entropy uint64, cofactor uint16, width uint32) uint32 {
	var key [16]byte
	binary.LittleEndian.PutUint64(key[0:8], entropy)
	binary.LittleEndian.PutUint16(key[8:10], cofactor)
	return uint32(siphash.Sum64(pid[:], &key) % uint64(width))
}

// minDepthFor returns the smallest depth whose leaf row keeps the load
// factor at or below one half for count messages.
func minDepthFor(count int) uint8 {
	var depth uint8
	for 1<<uint(depth) < 2*count {
		depth++
	}
	return depth
}

// BuildTree searches for a placement of the source message set into a
// sparse merkle tree and assembles the tree around the first collision-free
// assignment it finds.
//
// The search starts at the smallest depth that keeps the leaf row at most
// half occupied (or at source.MinDepth if that is larger) and tries a
// bounded number of (entropy, cofactor) pairs at each depth before growing
// the tree one level. It fails with ErrDepthOverflow if MaxTreeDepth is
// exhausted, which for honestly random protocol ids is vanishingly
// unlikely.
//
// An empty message set is valid and produces a depth-zero tree whose single
// slot carries entropy; it still commits, it just commits to nothing.
func BuildTree(source MultiSource) (*MerkleTree, error) {
	if !source.Method.valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMethod, source.Method)
	}

	count := len(source.Messages)
	if count > 1<<(MaxTreeDepth-1) {
		return nil, fmt.Errorf("%w: %d messages", ErrTooManyMessages, count)
	}
	if source.MinDepth > MaxTreeDepth {
		return nil, fmt.Errorf("%w: minimum depth %d", ErrDepthOverflow, source.MinDepth)
	}

	attempts := source.CofactorAttempts
	if attempts <= 0 {
		attempts = DefaultCofactorAttempts
	}
	entropySource := source.Rand
	if entropySource == nil {
		entropySource = rand.Reader
	}

	pids := source.Messages.Protocols()

	depth := minDepthFor(count)
	if depth < source.MinDepth {
		depth = source.MinDepth
	}

	assignment := make(map[uint32]ProtocolId, count)
	for ; depth <= MaxTreeDepth; depth++ {
		width := uint32(1) << uint(depth)
		for attempt := 0; attempt < attempts; attempt++ {
			cofactor := uint16(attempt)
			entropy, err := sampleEntropy(source, entropySource)
			if err != nil {
				return nil, err
			}

			collided := false
			for _, pid := range pids {
				pos := protocolPos(pid, entropy, cofactor, width)
				if _, occupied := assignment[pos]; occupied {
					collided = true
					break
				}
				assignment[pos] = pid
			}
			if !collided {
				log.Debug().
					Int("messages", count).
					Uint8("depth", depth).
					Uint16("cofactor", cofactor).
					Msg("placed message set")
				return &MerkleTree{
					method:     source.Method,
					depth:      depth,
					entropy:    entropy,
					cofactor:   cofactor,
					messages:   source.Messages,
					assignment: assignment,
				}, nil
			}
			for pos := range assignment {
				delete(assignment, pos)
			}
		}
		log.Trace().Uint8("depth", depth).Msg("placement attempts exhausted, growing tree")
	}

	return nil, fmt.Errorf("%w: %d messages", ErrDepthOverflow, count)
}

func sampleEntropy(source MultiSource, r io.Reader) (uint64, error) {
	if source.StaticEntropy != nil {
		return *source.StaticEntropy, nil
	}
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, fmt.Errorf("sampling placement entropy: %w", err)
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// Method returns the digest function the tree was built with.
func (t *MerkleTree) Method() Method { return t.method }

// Depth returns the tree depth.
func (t *MerkleTree) Depth() uint8 { return t.depth }

// Width returns the number of slots in the leaf row.
func (t *MerkleTree) Width() uint32 { return 1 << uint(t.depth) }

// Entropy returns the entropy filling unoccupied slots.
func (t *MerkleTree) Entropy() uint64 { return t.entropy }

// Cofactor returns the placement cofactor.
func (t *MerkleTree) Cofactor() uint16 { return t.cofactor }

// Messages returns a copy of the committed message set.
func (t *MerkleTree) Messages() MessageMap {
	msgs := make(MessageMap, len(t.messages))
	for pid, msg := range t.messages {
		msgs[pid] = msg
	}
	return msgs
}

// ProtocolPos returns the leaf position of the protocol and whether the
// protocol participates in the tree at all.
func (t *MerkleTree) ProtocolPos(pid ProtocolId) (uint32, bool) {
	if _, ok := t.messages[pid]; !ok {
		return 0, false
	}
	return protocolPos(pid, t.entropy, t.cofactor, t.Width()), true
}

// Leaf returns the leaf occupying the given position.
func (t *MerkleTree) Leaf(pos uint32) Leaf {
	if pid, ok := t.assignment[pos]; ok {
		return InhabitedLeaf(pid, t.messages[pid])
	}
	return EntropyLeaf(t.entropy, pos)
}

// subtreeHashAt computes the hash of the subtree rooted at the given depth
// and horizontal index, folding the leaf slots it subsumes.
func (t *MerkleTree) subtreeHashAt(depth uint8, index uint32) commithash.Hash {
	height := uint(t.depth - depth)
	first := index << height
	row := make([]commithash.Hash, 1<<height)
	for i := range row {
		row[i] = t.Leaf(first + uint32(i)).Hash(t.method)
	}
	return merklizeRow(t.method, row)
}

// Root returns the merkle root over the full leaf row. The first call
// computes it, later calls return the cached value.
func (t *MerkleTree) Root() commithash.Hash {
	if t.root == nil {
		root := t.subtreeHashAt(0, 0)
		t.root = &root
	}
	return *t.root
}

// Conceal reduces the tree to the header bound by the commitment.
func (t *MerkleTree) Conceal() MerkleConcealed {
	return MerkleConcealed{
		Depth:    t.depth,
		Cofactor: t.cofactor,
		Root:     t.Root(),
	}
}

// Commitment computes the multi-protocol commitment over the tree.
func (t *MerkleTree) Commitment() Commitment {
	return t.Conceal().Commitment(t.method)
}

// ExtractProof produces the inclusion proof for the message committed under
// pid, or ErrLeafNotFound if the protocol is not part of the tree.
func (t *MerkleTree) ExtractProof(pid ProtocolId) (*MerkleProof, error) {
	pos, ok := t.ProtocolPos(pid)
	if !ok {
		return nil, fmt.Errorf("%w: protocol %s", ErrLeafNotFound, pid)
	}

	path := make([]commithash.Hash, t.depth)
	for i := uint8(0); i < t.depth; i++ {
		sibling := (pos >> uint(i)) ^ 1
		path[i] = t.subtreeHashAt(t.depth-i, sibling)
	}
	return &MerkleProof{
		method:   t.method,
		pos:      pos,
		cofactor: t.cofactor,
		path:     path,
	}, nil
}
