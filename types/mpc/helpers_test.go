// Copyright (c) 2021 The mpcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mpc

import (
	"math/rand"
	"testing"
)

// makeMessages produces a reproducible message set of the given size.
func makeMessages(rnd *rand.Rand, count int) MessageMap {
	msgs := make(MessageMap, count)
	for len(msgs) < count {
		var pid ProtocolId
		var msg Message
		rnd.Read(pid[:])
		rnd.Read(msg[:])
		msgs[pid] = msg
	}
	return msgs
}

// makeTree builds a tree with pinned entropy and a seeded randomness
// source, so every run of the suite places messages identically.
func makeTree(t *testing.T, msgs MessageMap, method Method) *MerkleTree {
	t.Helper()
	entropy := uint64(0xa1b2c3d4e5f60718)
	tree, err := BuildTree(MultiSource{
		Method:        method,
		Messages:      msgs,
		StaticEntropy: &entropy,
	})
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	return tree
}
