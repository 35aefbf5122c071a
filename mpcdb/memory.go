// Copyright (c) 2021 The mpcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mpcdb

import (
	"bytes"
	"sync"

	"gitlab.com/mpcsuite/mpc/types/mpc"
)

// memoryStore keeps serialized records in maps. Values are stored in their
// canonical binary form rather than as live pointers so that both backends
// hand out independent copies with identical semantics.
type memoryStore struct {
	mtx    sync.RWMutex
	trees  map[mpc.Commitment][]byte
	blocks map[mpc.Commitment][]byte
}

// NewMemoryStore returns an empty in-memory store. It is safe for
// concurrent use.
func NewMemoryStore() Store {
	return &memoryStore{
		trees:  make(map[mpc.Commitment][]byte),
		blocks: make(map[mpc.Commitment][]byte),
	}
}

func (s *memoryStore) PutTree(tree *mpc.MerkleTree) error {
	var buf bytes.Buffer
	if err := tree.Serialize(&buf); err != nil {
		return err
	}
	commitment := tree.Commitment()

	s.mtx.Lock()
	s.trees[commitment] = buf.Bytes()
	s.mtx.Unlock()
	return nil
}

func (s *memoryStore) Tree(commitment mpc.Commitment) (*mpc.MerkleTree, error) {
	s.mtx.RLock()
	data, ok := s.trees[commitment]
	s.mtx.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return mpc.DeserializeTree(bytes.NewReader(data))
}

func (s *memoryStore) PutBlock(block *mpc.MerkleBlock) error {
	commitment, err := block.Commitment()
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := block.Serialize(&buf); err != nil {
		return err
	}

	s.mtx.Lock()
	s.blocks[commitment] = buf.Bytes()
	s.mtx.Unlock()
	return nil
}

func (s *memoryStore) Block(commitment mpc.Commitment) (*mpc.MerkleBlock, error) {
	s.mtx.RLock()
	data, ok := s.blocks[commitment]
	s.mtx.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return mpc.DeserializeBlock(bytes.NewReader(data))
}

func (s *memoryStore) Close() error {
	return nil
}
