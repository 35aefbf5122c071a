// Copyright (c) 2021 The mpcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mpcdb

import (
	"bytes"

	badger "github.com/dgraph-io/badger"

	"gitlab.com/mpcsuite/mpc/types/mpc"
)

// Key prefixes separating record kinds inside one badger keyspace.
const (
	prefixTree  byte = 0x01
	prefixBlock byte = 0x02
)

type badgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (creating if needed) a badger-backed store at path.
func NewBadgerStore(path string) (Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("path", path).Msg("opened commitment store")
	return &badgerStore{db: db}, nil
}

func storeKey(prefix byte, commitment mpc.Commitment) []byte {
	key := make([]byte, 1+len(commitment))
	key[0] = prefix
	copy(key[1:], commitment[:])
	return key
}

func (s *badgerStore) put(key, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

func (s *badgerStore) get(key []byte) ([]byte, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, ErrNotFound
	}
	return value, err
}

func (s *badgerStore) PutTree(tree *mpc.MerkleTree) error {
	var buf bytes.Buffer
	if err := tree.Serialize(&buf); err != nil {
		return err
	}
	return s.put(storeKey(prefixTree, tree.Commitment()), buf.Bytes())
}

func (s *badgerStore) Tree(commitment mpc.Commitment) (*mpc.MerkleTree, error) {
	data, err := s.get(storeKey(prefixTree, commitment))
	if err != nil {
		return nil, err
	}
	return mpc.DeserializeTree(bytes.NewReader(data))
}

func (s *badgerStore) PutBlock(block *mpc.MerkleBlock) error {
	commitment, err := block.Commitment()
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := block.Serialize(&buf); err != nil {
		return err
	}
	return s.put(storeKey(prefixBlock, commitment), buf.Bytes())
}

func (s *badgerStore) Block(commitment mpc.Commitment) (*mpc.MerkleBlock, error) {
	data, err := s.get(storeKey(prefixBlock, commitment))
	if err != nil {
		return nil, err
	}
	return mpc.DeserializeBlock(bytes.NewReader(data))
}

func (s *badgerStore) Close() error {
	return s.db.Close()
}
