// Copyright (c) 2021 The mpcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mpc

import (
	"encoding/binary"

	"gitlab.com/mpcsuite/mpc/types/commithash"
	"gitlab.com/mpcsuite/mpc/types/wire"
)

// Branching discriminants of a hashed merkle node. Only the branch variant
// ever reaches a preimage: trees built here always have a power-of-two leaf
// row, so every inner node joins two inhabited subtrees, and a depth-0 tree
// has no inner node at all, its root is the lone leaf hash itself. The void
// and single discriminants are reserved by the preimage layout for forests
// with odd widths; emitting them here would change every commitment, so the
// depth-0 case deliberately stays un-wrapped.
const (
	nodeBranchingVoid   uint8 = 0x00
	nodeBranchingSingle uint8 = 0x01
	nodeBranchingBranch uint8 = 0x02
)

// merkleNodeHash computes the tagged digest of an inner node joining two
// subtrees. The height above the leaf row and the node width, the number of
// leaf slots the node subsumes, are both bound into the preimage so nodes
// from different tree levels can never be confused.
func merkleNodeHash(method Method, height uint8, node1, node2 commithash.Hash) commithash.Hash {
	var width [32]byte
	binary.LittleEndian.PutUint64(width[:8], 1<<uint(height))

	engine := method.newTagged(nodeTag)
	wire.WriteElements(engine, nodeBranchingBranch, height)
	engine.Write(width[:])
	wire.WriteElements(engine, &node1, &node2)
	return commithash.Sum(engine)
}

// merklizeRow folds a full leaf row of 2^depth hashes into the tree root.
// A single-element row is its own root.
func merklizeRow(method Method, row []commithash.Hash) commithash.Hash {
	var height uint8
	for len(row) > 1 {
		height++
		next := row[:len(row)/2]
		for i := 0; i < len(row); i += 2 {
			next[i/2] = merkleNodeHash(method, height, row[i], row[i+1])
		}
		row = next
	}
	return row[0]
}

// merkleBuoy tracks the depth of a cursor walking a tree cross-section left
// to right. Every push records one complete subtree at the given depth; the
// buoy rises one level each time two sibling subtrees at its level have
// been consumed. push reports whether the buoy surfaced above its starting
// level, meaning the subtree it was watching is now fully covered.
type merkleBuoy struct {
	buoy  uint8
	stack *merkleBuoy
}

func newMerkleBuoy(top uint8) *merkleBuoy {
	return &merkleBuoy{buoy: top}
}

// level returns the depth the buoy currently floats at.
func (b *merkleBuoy) level() uint8 {
	if b.stack != nil {
		return b.stack.level()
	}
	return b.buoy
}

func (b *merkleBuoy) push(depth uint8) bool {
	if depth == 0 {
		return false
	}
	if b.stack == nil {
		if depth == b.buoy {
			b.buoy--
			return true
		}
		b.stack = newMerkleBuoy(depth)
		return false
	}
	surfaced := b.stack.push(depth)
	level := b.stack.level()
	if surfaced {
		b.stack = nil
		return b.push(level)
	}
	return false
}
