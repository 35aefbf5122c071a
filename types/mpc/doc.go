// Copyright (c) 2021 The mpcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package mpc implements multi-protocol commitments: many independent
// parties each commit to their own 32-byte message, and all of the
// commitments are bound into a single 32-byte value through a sparse Merkle
// tree with randomized slot placement.
//
// The lifecycle is: BuildTree places every (protocol id, message) pair into
// a collision-free slot and derives the Commitment; NewMerkleBlock projects
// the tree into a fully concealed block; Reveal selectively discloses
// leaves; ExtractProof produces a portable single-leaf inclusion proof and
// Verify checks one against a published Commitment.
//
// All operations are synchronous in-memory computations. A MerkleTree is
// immutable once built. A MerkleBlock mutates only through monotonic reveal
// operations and must be serialized by the caller if shared between
// goroutines.
package mpc
