// Copyright (c) 2021 The mpcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mpc

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"sort"

	"gitlab.com/mpcsuite/mpc/types/commithash"
	"gitlab.com/mpcsuite/mpc/types/wire"
)

const (
	// MaxTreeDepth is the deepest tree the engine will build or accept. A
	// depth-31 tree has 2^31 leaf slots, enough for over a billion
	// protocols at the mandated load factor.
	MaxTreeDepth = 31

	// DefaultCofactorAttempts is how many (entropy, cofactor) pairs are
	// tried at each depth before the tree is grown one level.
	DefaultCofactorAttempts = 500
)

// Domain separation tags for the three hashing contexts. Changing any of
// them changes every commitment ever produced.
const (
	leafTag       = "urn:ubideco:mpc:leaf#2024-01-31"
	nodeTag       = "urn:ubideco:merkle:node#2024-01-31"
	commitmentTag = "urn:ubideco:mpc:commitment#2024-01-31"
)

// Method enumerates the digest functions a tree may be built with. The
// method is fixed at build time and travels inside every serialized proof
// and block, so mixed-method artifacts can never be confused.
type Method uint8

const (
	// Sha256t is BIP-340 style tagged sha256.
	Sha256t Method = 0x00

	// Blake3 is BLAKE3 in derive-key mode with the tag as context.
	Blake3 Method = 0x01
)

// String returns the method name for logging.
func (m Method) String() string {
	switch m {
	case Sha256t:
		return "sha256t"
	case Blake3:
		return "blake3"
	default:
		return fmt.Sprintf("unknown(%#02x)", uint8(m))
	}
}

// valid reports whether m names a known digest function.
func (m Method) valid() bool {
	return m == Sha256t || m == Blake3
}

// newTagged returns a fresh engine for the method seeded with tag.
func (m Method) newTagged(tag string) commithash.Digest {
	if m == Blake3 {
		return commithash.NewTaggedBlake3(tag)
	}
	return commithash.NewTaggedSha256(tag)
}

// ProtocolId identifies a protocol participating in a multi-protocol
// commitment. Ids are opaque 32-byte strings; protocols are expected to
// derive them from a hash of a protocol-specific tag.
type ProtocolId [32]byte

// String returns the protocol id as a hexadecimal string.
func (pid ProtocolId) String() string {
	return hex.EncodeToString(pid[:])
}

// Message is the 32-byte value a protocol commits to. Protocols with longer
// state commit to a hash of it.
type Message [32]byte

// String returns the message as a hexadecimal string.
func (m Message) String() string {
	return hex.EncodeToString(m[:])
}

// Commitment is the final 32-byte multi-protocol commitment, the tagged
// hash of the concealed tree header.
type Commitment [32]byte

// String returns the commitment as a hexadecimal string.
func (c Commitment) String() string {
	return hex.EncodeToString(c[:])
}

// MessageMap is the input to tree construction: one message per protocol.
type MessageMap map[ProtocolId]Message

// Protocols returns the protocol ids of the map sorted in ascending
// lexicographic order. Every iteration the engine performs runs over this
// ordering so that building twice from the same inputs is deterministic.
func (m MessageMap) Protocols() []ProtocolId {
	pids := make([]ProtocolId, 0, len(m))
	for pid := range m {
		pids = append(pids, pid)
	}
	sort.Slice(pids, func(i, j int) bool {
		return bytes.Compare(pids[i][:], pids[j][:]) < 0
	})
	return pids
}

// MultiSource bundles everything BuildTree needs. Zero values select the
// defaults: Sha256t digests, no minimum depth, crypto/rand entropy and
// DefaultCofactorAttempts placement attempts per depth.
type MultiSource struct {
	// Method selects the digest function for the whole tree.
	Method Method

	// MinDepth forces the tree to start at least this deep. Useful when a
	// protocol wants room for messages that will be merged in later.
	MinDepth uint8

	// Messages is the per-protocol message set. It may be empty, in which
	// case a depth-zero all-entropy tree is produced.
	Messages MessageMap

	// StaticEntropy, when non-nil, pins the entropy instead of sampling
	// it. Placement then depends on the cofactor search alone, which makes
	// runs reproducible. Tests use this; production callers should not.
	StaticEntropy *uint64

	// Rand is the entropy source, crypto/rand when nil.
	Rand io.Reader

	// CofactorAttempts bounds the placement search per depth,
	// DefaultCofactorAttempts when zero.
	CofactorAttempts int
}

// Leaf kind discriminants as they appear on the wire and inside the leaf
// hash preimage.
const (
	leafInhabited uint8 = 0x00
	leafEntropy   uint8 = 0x01
)

// Leaf is a single slot of the leaf row: either an inhabited slot carrying
// a protocol's message or an empty slot filled with position-bound entropy
// so that the tree width stays unprovable from a partial reveal.
type Leaf struct {
	kind       uint8
	protocolID ProtocolId
	message    Message
	entropy    uint64
	pos        uint32
}

// InhabitedLeaf returns a leaf carrying the message committed under pid.
func InhabitedLeaf(pid ProtocolId, msg Message) Leaf {
	return Leaf{kind: leafInhabited, protocolID: pid, message: msg}
}

// EntropyLeaf returns the filler leaf for an unoccupied slot at pos.
func EntropyLeaf(entropy uint64, pos uint32) Leaf {
	return Leaf{kind: leafEntropy, entropy: entropy, pos: pos}
}

// IsInhabited reports whether the leaf carries a protocol message.
func (l Leaf) IsInhabited() bool {
	return l.kind == leafInhabited
}

// ProtocolId returns the protocol id of an inhabited leaf and the zero id
// for entropy leaves.
func (l Leaf) ProtocolId() ProtocolId {
	return l.protocolID
}

// Message returns the message of an inhabited leaf and the zero message for
// entropy leaves.
func (l Leaf) Message() Message {
	return l.message
}

// Hash returns the tagged leaf digest. The preimage starts with the kind
// byte, so inhabited and entropy leaves can never collide.
func (l Leaf) Hash(method Method) commithash.Hash {
	engine := method.newTagged(leafTag)
	if l.kind == leafInhabited {
		engine.Write([]byte{leafInhabited})
		engine.Write(l.protocolID[:])
		engine.Write(l.message[:])
	} else {
		engine.Write([]byte{leafEntropy})
		wire.WriteElements(engine, l.entropy, l.pos)
	}
	return commithash.Sum(engine)
}

// MerkleConcealed is the fully concealed tree header: everything the
// commitment binds and nothing else.
type MerkleConcealed struct {
	// Depth of the tree, 0 through MaxTreeDepth.
	Depth uint8

	// Cofactor is the placement salt the winning slot assignment used.
	Cofactor uint16

	// Root is the merkle root over the leaf row.
	Root commithash.Hash
}

// Commitment computes the final commitment over the concealed header.
func (c MerkleConcealed) Commitment(method Method) Commitment {
	engine := method.newTagged(commitmentTag)
	wire.WriteElements(engine, c.Depth, c.Cofactor, &c.Root)
	return Commitment(commithash.Sum(engine))
}
