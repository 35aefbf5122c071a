// Copyright (c) 2021 The mpcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mpc

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/mpcsuite/mpc/types/commithash"
)

func blockCommitment(t *testing.T, b *MerkleBlock) Commitment {
	t.Helper()
	commitment, err := b.Commitment()
	require.NoError(t, err)
	return commitment
}

func TestBlockProjection(t *testing.T) {
	rnd := rand.New(rand.NewSource(10))
	msgs := makeMessages(rnd, 5)
	tree := makeTree(t, msgs, Sha256t)
	block := NewMerkleBlock(tree)

	// The fresh projection is the most compact concealed form.
	assert.Len(t, block.crossSection, 1)
	assert.Empty(t, block.KnownMessages())
	assert.Equal(t, tree.Commitment(), blockCommitment(t, block))

	entropy, ok := block.Entropy()
	require.True(t, ok)
	assert.Equal(t, tree.Entropy(), entropy)
}

func TestRevealConfluence(t *testing.T) {
	rnd := rand.New(rand.NewSource(11))
	msgs := makeMessages(rnd, 8)
	tree := makeTree(t, msgs, Sha256t)

	sequential := NewMerkleBlock(tree)
	for pid := range msgs {
		require.NoError(t, sequential.Reveal(pid))
	}

	batch := NewMerkleBlock(tree)
	require.NoError(t, batch.RevealAll())

	assert.Equal(t, MessageMap(msgs), sequential.KnownMessages())
	assert.Equal(t, MessageMap(msgs), batch.KnownMessages())
	assert.Equal(t, tree.Commitment(), blockCommitment(t, sequential))

	// One-by-one and batch reveal must converge to the same cross-section.
	var seqBuf, batchBuf bytes.Buffer
	require.NoError(t, sequential.Serialize(&seqBuf))
	require.NoError(t, batch.Serialize(&batchBuf))
	if !bytes.Equal(seqBuf.Bytes(), batchBuf.Bytes()) {
		t.Fatalf("reveal is not confluent:\nsequential: %sbatch: %s",
			spew.Sdump(seqBuf.Bytes()), spew.Sdump(batchBuf.Bytes()))
	}
}

func TestRevealMonotonic(t *testing.T) {
	rnd := rand.New(rand.NewSource(12))
	msgs := makeMessages(rnd, 4)
	tree := makeTree(t, msgs, Sha256t)
	block := NewMerkleBlock(tree)

	pids := msgs.Protocols()
	require.NoError(t, block.Reveal(pids[0]))
	entries := len(block.crossSection)

	// Revealing the same protocol again changes nothing.
	require.NoError(t, block.Reveal(pids[0]))
	assert.Len(t, block.crossSection, entries)

	require.NoError(t, block.Reveal(pids[1]))
	assert.Greater(t, len(block.crossSection), entries)
	assert.Len(t, block.KnownMessages(), 2)
}

func TestRevealUnknownProtocol(t *testing.T) {
	tree := makeTree(t, makeMessages(rand.New(rand.NewSource(13)), 2), Sha256t)
	block := NewMerkleBlock(tree)

	err := block.Reveal(ProtocolId{0xab})
	assert.True(t, errors.Is(err, ErrLeafNotFound))
}

func TestRevealDetachedBlock(t *testing.T) {
	tree := makeTree(t, makeMessages(rand.New(rand.NewSource(14)), 2), Sha256t)

	var buf bytes.Buffer
	require.NoError(t, NewMerkleBlock(tree).Serialize(&buf))
	detached, err := DeserializeBlock(&buf)
	require.NoError(t, err)

	err = detached.Reveal(tree.Messages().Protocols()[0])
	assert.True(t, errors.Is(err, ErrDetachedBlock))
}

func TestMergeReveal(t *testing.T) {
	for size := 2; size < 9; size++ {
		rnd := rand.New(rand.NewSource(int64(20 + size)))
		msgs := makeMessages(rnd, size)
		tree := makeTree(t, msgs, Sha256t)
		commitment := tree.Commitment()

		// Each party receives only its own proof and reconstructs a
		// detached single-leaf block from it.
		var merged *MerkleBlock
		for _, pid := range msgs.Protocols() {
			proof, err := tree.ExtractProof(pid)
			require.NoError(t, err)
			block, err := MerkleBlockFromProof(proof, pid, msgs[pid])
			require.NoError(t, err)
			require.Equal(t, commitment, blockCommitment(t, block))

			if merged == nil {
				merged = block
				continue
			}
			if err := merged.MergeReveal(block); err != nil {
				t.Fatalf("size %d: merge failed: %v\nbase: %smerged-in: %s",
					size, err, spew.Sdump(merged.crossSection), spew.Sdump(block.crossSection))
			}
		}

		assert.Equal(t, commitment, blockCommitment(t, merged), "size %d", size)
		assert.Equal(t, MessageMap(msgs), merged.KnownMessages(), "size %d", size)
	}
}

func TestMergeRevealWithTreeBlock(t *testing.T) {
	rnd := rand.New(rand.NewSource(30))
	msgs := makeMessages(rnd, 6)
	tree := makeTree(t, msgs, Sha256t)
	pids := msgs.Protocols()

	base := NewMerkleBlock(tree)
	require.NoError(t, base.Reveal(pids[0]))

	proof, err := tree.ExtractProof(pids[1])
	require.NoError(t, err)
	other, err := MerkleBlockFromProof(proof, pids[1], msgs[pids[1]])
	require.NoError(t, err)

	require.NoError(t, base.MergeReveal(other))
	known := base.KnownMessages()
	assert.Equal(t, msgs[pids[0]], known[pids[0]])
	assert.Equal(t, msgs[pids[1]], known[pids[1]])
	assert.Equal(t, tree.Commitment(), blockCommitment(t, base))
}

func TestMergeUnrelatedBlocks(t *testing.T) {
	rnd := rand.New(rand.NewSource(31))
	tree1 := makeTree(t, makeMessages(rnd, 3), Sha256t)
	tree2 := makeTree(t, makeMessages(rnd, 3), Sha256t)

	block1 := NewMerkleBlock(tree1)
	block2 := NewMerkleBlock(tree2)
	err := block1.MergeReveal(block2)
	assert.True(t, errors.Is(err, ErrUnrelatedBlocks))
}

func TestBlockExtractProof(t *testing.T) {
	rnd := rand.New(rand.NewSource(32))
	msgs := makeMessages(rnd, 5)
	tree := makeTree(t, msgs, Sha256t)
	commitment := tree.Commitment()
	pids := msgs.Protocols()

	block := NewMerkleBlock(tree)
	require.NoError(t, block.Reveal(pids[0], pids[1]))

	// From the revealed leaf itself.
	proof, err := block.ExtractProof(pids[0])
	require.NoError(t, err)
	ok, err := proof.Verify(pids[0], msgs[pids[0]], commitment)
	require.NoError(t, err)
	assert.True(t, ok)

	// Through the backing tree for a still-concealed leaf.
	proof, err = block.ExtractProof(pids[2])
	require.NoError(t, err)
	ok, err = proof.Verify(pids[2], msgs[pids[2]], commitment)
	require.NoError(t, err)
	assert.True(t, ok)

	// A detached block only serves proofs for what it has.
	detachedProof, err := tree.ExtractProof(pids[3])
	require.NoError(t, err)
	detached, err := MerkleBlockFromProof(detachedProof, pids[3], msgs[pids[3]])
	require.NoError(t, err)

	proof, err = detached.ExtractProof(pids[3])
	require.NoError(t, err)
	ok, err = proof.Verify(pids[3], msgs[pids[3]], commitment)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = detached.ExtractProof(pids[0])
	assert.True(t, errors.Is(err, ErrLeafNotFound))
}

func TestFullyRevealedFold(t *testing.T) {
	rnd := rand.New(rand.NewSource(33))
	msgs := makeMessages(rnd, 7)
	tree := makeTree(t, msgs, Sha256t)

	block := NewMerkleBlock(tree)
	require.NoError(t, block.RevealAll())

	concealed, err := block.Conceal()
	require.NoError(t, err)
	assert.Equal(t, tree.Root(), concealed.Root)
	assert.Equal(t, tree.Depth(), concealed.Depth)
	assert.Equal(t, tree.Cofactor(), concealed.Cofactor)
}

// TestFoldNodesCrossSections drives the fold directly: every entry at the
// requested depth contributes its hash, leaves included, and malformed
// tilings are rejected.
func TestFoldNodesCrossSections(t *testing.T) {
	leaf := commitmentLeaf(ProtocolId{0x11}, Message{0x22})
	sibling := concealedNode(1, commithash.Hash{0xab})

	want := merkleNodeHash(Sha256t, 1,
		leaf.merkleHash(Sha256t), sibling.merkleHash(Sha256t))
	root, rest, err := foldNodes(Sha256t, 1, []treeNode{leaf, sibling}, 0)
	require.NoError(t, err)
	assert.Empty(t, rest)
	assert.Equal(t, want, root)

	// An entry deeper than the subtree it has to close.
	_, _, err = foldNodes(Sha256t, 2, []treeNode{
		concealedNode(2, commithash.Hash{0x01}),
		concealedNode(1, commithash.Hash{0x02}),
	}, 0)
	assert.True(t, errors.Is(err, ErrInvalidEntrySpan))

	// A cross-section that runs out before the row is tiled.
	_, _, err = foldNodes(Sha256t, 1, []treeNode{leaf}, 0)
	assert.True(t, errors.Is(err, ErrInvalidEntrySpan))
}

func TestBlockEntropyDoesNotAffectCommitment(t *testing.T) {
	rnd := rand.New(rand.NewSource(34))
	msgs := makeMessages(rnd, 3)
	tree := makeTree(t, msgs, Sha256t)

	block := NewMerkleBlock(tree)
	withEntropy := blockCommitment(t, block)

	block.entropy = nil
	assert.Equal(t, withEntropy, blockCommitment(t, block))
}
