// Copyright (c) 2021 The mpcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package mpcdb persists commitment trees and partially revealed blocks
// keyed by the commitment they belong to. A committer keeps its trees here
// between building a commitment and serving reveal requests; a verifier
// keeps merged blocks accumulated from received proofs.
package mpcdb

import (
	"errors"

	"gitlab.com/mpcsuite/mpc/types/mpc"
)

// ErrNotFound is returned when no record exists under the commitment.
var ErrNotFound = errors.New("no record for the commitment")

// Store is the persistence surface. Both backends serialize values through
// the canonical binary form, so trees loaded back are detached from any
// in-memory state but otherwise fully equivalent.
type Store interface {
	// PutTree saves the tree under its own commitment.
	PutTree(tree *mpc.MerkleTree) error

	// Tree loads the tree committed to by the given commitment.
	Tree(commitment mpc.Commitment) (*mpc.MerkleTree, error)

	// PutBlock saves the block under the commitment it belongs to,
	// replacing any earlier, less revealed copy.
	PutBlock(block *mpc.MerkleBlock) error

	// Block loads the block belonging to the given commitment.
	Block(commitment mpc.Commitment) (*mpc.MerkleBlock, error)

	// Close releases the backing resources.
	Close() error
}
