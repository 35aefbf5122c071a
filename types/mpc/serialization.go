// Copyright (c) 2021 The mpcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mpc

import (
	"fmt"
	"io"

	"gitlab.com/mpcsuite/mpc/types/commithash"
	"gitlab.com/mpcsuite/mpc/types/wire"
)

// maxDecodePrealloc bounds how much room decoders reserve up front for a
// count declared in an untrusted header. Anything past it is grown
// incrementally as entry bytes actually arrive, which helps protect
// against memory exhaustion from a forged count.
const maxDecodePrealloc = 4096

func decodePrealloc(count uint32) uint32 {
	if count > maxDecodePrealloc {
		return maxDecodePrealloc
	}
	return count
}

// Serialize writes the tree in its canonical binary form: header fields
// followed by the committed protocol pairs in ascending protocol id order.
// The slot assignment is not written, it is a pure function of the header
// and is rebuilt on decode.
func (t *MerkleTree) Serialize(w io.Writer) error {
	err := wire.WriteElements(w, uint8(t.method), t.depth, t.entropy, t.cofactor,
		uint32(len(t.messages)))
	if err != nil {
		return err
	}
	for _, pid := range t.messages.Protocols() {
		msg := t.messages[pid]
		err = wire.WriteElements(w, commithash.Hash(pid), commithash.Hash(msg))
		if err != nil {
			return err
		}
	}
	return nil
}

// DeserializeTree reads a tree written by Serialize, rebuilding and
// revalidating the slot assignment.
func DeserializeTree(r io.Reader) (*MerkleTree, error) {
	var (
		method   uint8
		depth    uint8
		entropy  uint64
		cofactor uint16
		count    uint32
	)
	err := wire.ReadElements(r, &method, &depth, &entropy, &cofactor, &count)
	if err != nil {
		return nil, err
	}
	if !Method(method).valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMethod, Method(method))
	}
	if depth > MaxTreeDepth {
		return nil, fmt.Errorf("%w: tree depth %d", ErrCorruptedData, depth)
	}
	width := uint32(1) << uint(depth)
	if uint64(count) > uint64(width) {
		return nil, fmt.Errorf("%w: %d messages in a width-%d tree", ErrCorruptedData, count, width)
	}

	tree := &MerkleTree{
		method:     Method(method),
		depth:      depth,
		entropy:    entropy,
		cofactor:   cofactor,
		messages:   make(MessageMap, decodePrealloc(count)),
		assignment: make(map[uint32]ProtocolId, decodePrealloc(count)),
	}
	for i := uint32(0); i < count; i++ {
		var pid, msg commithash.Hash
		if err := wire.ReadElements(r, &pid, &msg); err != nil {
			return nil, err
		}
		protocol := ProtocolId(pid)
		if _, dup := tree.messages[protocol]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateProtocol, protocol)
		}
		tree.messages[protocol] = Message(msg)

		pos := protocolPos(protocol, entropy, cofactor, width)
		if _, occupied := tree.assignment[pos]; occupied {
			return nil, fmt.Errorf("%w: two protocols place at slot %d", ErrCorruptedData, pos)
		}
		tree.assignment[pos] = protocol
	}
	return tree, nil
}

// Cross-section entry kinds on the wire.
const (
	entryConcealed uint8 = 0x00
	entryLeaf      uint8 = 0x01
)

// Serialize writes the block in its canonical binary form. The source tree
// reference is not part of the encoding: a deserialized block is always
// detached.
func (b *MerkleBlock) Serialize(w io.Writer) error {
	hasEntropy := b.entropy != nil
	err := wire.WriteElements(w, uint8(b.method), b.depth, b.cofactor, hasEntropy)
	if err != nil {
		return err
	}
	if hasEntropy {
		if err := wire.WriteElement(w, *b.entropy); err != nil {
			return err
		}
	}
	if err := wire.WriteElement(w, uint32(len(b.crossSection))); err != nil {
		return err
	}
	for _, node := range b.crossSection {
		if node.leaf {
			err = wire.WriteElements(w, entryLeaf,
				commithash.Hash(node.protocolID), commithash.Hash(node.message))
		} else {
			err = wire.WriteElements(w, entryConcealed, node.depth, &node.hash)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// DeserializeBlock reads a block written by Serialize. The cross-section is
// re-folded to recover the root, which also proves the entries tile the
// leaf row.
func DeserializeBlock(r io.Reader) (*MerkleBlock, error) {
	var (
		method     uint8
		depth      uint8
		cofactor   uint16
		hasEntropy bool
	)
	err := wire.ReadElements(r, &method, &depth, &cofactor, &hasEntropy)
	if err != nil {
		return nil, err
	}
	if !Method(method).valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMethod, Method(method))
	}
	if depth > MaxTreeDepth {
		return nil, fmt.Errorf("%w: tree depth %d", ErrCorruptedData, depth)
	}

	block := &MerkleBlock{
		method:   Method(method),
		depth:    depth,
		cofactor: cofactor,
	}
	if hasEntropy {
		var entropy uint64
		if err := wire.ReadElement(r, &entropy); err != nil {
			return nil, err
		}
		block.entropy = &entropy
	}

	var count uint32
	if err := wire.ReadElement(r, &count); err != nil {
		return nil, err
	}
	if uint64(count) > uint64(block.Width()) {
		return nil, fmt.Errorf("%w: %d entries in a width-%d tree", ErrCorruptedData, count, block.Width())
	}

	block.crossSection = make([]treeNode, 0, decodePrealloc(count))
	for i := uint32(0); i < count; i++ {
		var kind uint8
		if err := wire.ReadElement(r, &kind); err != nil {
			return nil, err
		}
		switch kind {
		case entryConcealed:
			var (
				nodeDepth uint8
				hash      commithash.Hash
			)
			if err := wire.ReadElements(r, &nodeDepth, &hash); err != nil {
				return nil, err
			}
			if nodeDepth > depth {
				return nil, fmt.Errorf("%w: entry below the leaf row", ErrCorruptedData)
			}
			block.crossSection = append(block.crossSection, concealedNode(nodeDepth, hash))

		case entryLeaf:
			var pid, msg commithash.Hash
			if err := wire.ReadElements(r, &pid, &msg); err != nil {
				return nil, err
			}
			block.crossSection = append(block.crossSection,
				commitmentLeaf(ProtocolId(pid), Message(msg)))

		default:
			return nil, fmt.Errorf("%w: unknown entry kind %#02x", ErrCorruptedData, kind)
		}
	}

	root, err := block.foldRoot()
	if err != nil {
		return nil, err
	}
	block.root = root
	return block, nil
}

// Serialize writes the proof in its canonical binary form.
func (p *MerkleProof) Serialize(w io.Writer) error {
	err := wire.WriteElements(w, uint8(p.method), p.pos, p.cofactor, uint8(len(p.path)))
	if err != nil {
		return err
	}
	for i := range p.path {
		if err := wire.WriteElement(w, &p.path[i]); err != nil {
			return err
		}
	}
	return nil
}

// DeserializeProof reads a proof written by Serialize.
func DeserializeProof(r io.Reader) (*MerkleProof, error) {
	var (
		method   uint8
		pos      uint32
		cofactor uint16
		pathLen  uint8
	)
	err := wire.ReadElements(r, &method, &pos, &cofactor, &pathLen)
	if err != nil {
		return nil, err
	}
	if pathLen > MaxTreeDepth {
		return nil, fmt.Errorf("%w: path of %d exceeds the maximum depth", ErrMalformedProof, pathLen)
	}

	proof := &MerkleProof{
		method:   Method(method),
		pos:      pos,
		cofactor: cofactor,
		path:     make([]commithash.Hash, pathLen),
	}
	for i := range proof.path {
		if err := wire.ReadElement(r, &proof.path[i]); err != nil {
			return nil, err
		}
	}
	if err := proof.validate(); err != nil {
		return nil, err
	}
	return proof, nil
}
