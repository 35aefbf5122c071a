// Copyright (c) 2021 The mpcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mpc

import "errors"

var (
	// ErrDepthOverflow means no collision-free slot placement was found for
	// the message set within the maximum tree depth.
	ErrDepthOverflow = errors.New("no collision-free placement up to the maximum tree depth")

	// ErrTooManyMessages means the message set can not fit the address space
	// at the required load factor even at the maximum depth.
	ErrTooManyMessages = errors.New("message count exceeds the tree capacity")

	// ErrDuplicateProtocol means the same protocol id occurred twice in
	// supposedly unique-keyed input.
	ErrDuplicateProtocol = errors.New("duplicate protocol id")

	// ErrLeafNotFound means the requested protocol id is not present as a
	// plaintext leaf in the given tree or block.
	ErrLeafNotFound = errors.New("no plaintext leaf for the protocol id")

	// ErrInvalidMethod means an unknown digest method byte was supplied or
	// decoded.
	ErrInvalidMethod = errors.New("unknown digest method")

	// ErrMalformedProof means a proof's declared geometry is inconsistent:
	// the path is longer than the maximum depth, the position lies outside
	// the tree width, or the digest method is unknown.
	ErrMalformedProof = errors.New("malformed merkle proof")

	// ErrUnrelatedBlocks means an attempt to merge two blocks which commit
	// to different merkle roots.
	ErrUnrelatedBlocks = errors.New("merkle blocks commit to different roots")

	// ErrDetachedBlock means a reveal was requested on a block that carries
	// no backing tree, so concealed subtrees can not be subdivided.
	ErrDetachedBlock = errors.New("block carries no source tree to reveal from")

	// ErrCorruptedData means serialized bytes decoded into a structurally
	// impossible value.
	ErrCorruptedData = errors.New("serialized data is inconsistent")

	// ErrInvalidEntrySpan means a block cross-section does not tile the leaf
	// row exactly. It indicates corrupted input or a broken internal
	// invariant.
	ErrInvalidEntrySpan = errors.New("cross-section does not tile the leaf row")
)
