// Copyright (c) 2021 The mpcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mpc

import (
	"fmt"

	"gitlab.com/mpcsuite/mpc/types/commithash"
)

// MerkleProof is a portable proof that one message was committed under one
// protocol inside a published commitment. It carries a single leaf's
// sibling path and nothing about any other leaf.
type MerkleProof struct {
	method   Method
	pos      uint32
	cofactor uint16

	// path lists the sibling subtree hashes bottom-up: path[0] partners
	// the leaf itself, the last entry partners a child of the root. Bit i
	// of pos gives the chirality at level i: a set bit means the sibling
	// hashes on the left.
	path []commithash.Hash
}

// Method returns the digest function of the tree the proof was extracted
// from.
func (p *MerkleProof) Method() Method { return p.method }

// Pos returns the absolute leaf slot the proof attests to.
func (p *MerkleProof) Pos() uint32 { return p.pos }

// Cofactor returns the placement cofactor of the tree.
func (p *MerkleProof) Cofactor() uint16 { return p.cofactor }

// Depth returns the depth of the tree, the length of the sibling path.
func (p *MerkleProof) Depth() uint8 { return uint8(len(p.path)) }

// Width returns the leaf row width of the tree.
func (p *MerkleProof) Width() uint32 { return 1 << uint(p.Depth()) }

// Path returns a copy of the bottom-up sibling path.
func (p *MerkleProof) Path() []commithash.Hash {
	path := make([]commithash.Hash, len(p.path))
	copy(path, p.path)
	return path
}

// validate rejects geometrically impossible proofs before any hashing.
func (p *MerkleProof) validate() error {
	if !p.method.valid() {
		return fmt.Errorf("%w: %s", ErrInvalidMethod, p.method)
	}
	if len(p.path) > MaxTreeDepth {
		return fmt.Errorf("%w: path of %d exceeds the maximum depth", ErrMalformedProof, len(p.path))
	}
	if p.pos >= p.Width() {
		return fmt.Errorf("%w: position %d outside a width-%d tree", ErrMalformedProof, p.pos, p.Width())
	}
	return nil
}

// Convolve folds the claimed (protocol id, message) leaf through the
// sibling path into the commitment the proof implies. The result is only
// meaningful when compared against an independently trusted commitment.
func (p *MerkleProof) Convolve(pid ProtocolId, msg Message) (Commitment, error) {
	if err := p.validate(); err != nil {
		return Commitment{}, err
	}

	node := InhabitedLeaf(pid, msg).Hash(p.method)
	for i, sibling := range p.path {
		if p.pos>>uint(i)&1 == 1 {
			node = merkleNodeHash(p.method, uint8(i)+1, sibling, node)
		} else {
			node = merkleNodeHash(p.method, uint8(i)+1, node, sibling)
		}
	}

	concealed := MerkleConcealed{
		Depth:    p.Depth(),
		Cofactor: p.cofactor,
		Root:     node,
	}
	return concealed.Commitment(p.method), nil
}

// Verify checks the proof against a published commitment. A false return
// with a nil error is the normal negative outcome: the proof is well
// formed but does not authenticate the claimed message. Errors are
// reserved for proofs that are malformed in themselves.
func (p *MerkleProof) Verify(pid ProtocolId, msg Message, commitment Commitment) (bool, error) {
	candidate, err := p.Convolve(pid, msg)
	if err != nil {
		return false, err
	}
	return candidate == commitment, nil
}
