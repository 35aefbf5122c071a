// Copyright (c) 2021 The mpcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package commithash

import (
	"io"

	"github.com/minio/sha256-simd"
	"github.com/zeebo/blake3"
)

// Digest is the minimal surface a tagged hash engine exposes: payload bytes
// are streamed in and a final 32-byte sum is taken once.
type Digest interface {
	io.Writer
	Sum(b []byte) []byte
}

// NewTaggedSha256 returns a sha256 engine seeded with the BIP-340 style tag
// prefix: sha256(sha256(tag) || sha256(tag) || payload). The doubled tag
// digest keeps the prefix a whole compression-function block, so a tagged
// midstate can be cached by implementations that need it.
func NewTaggedSha256(tag string) Digest {
	tagHash := sha256.Sum256([]byte(tag))
	engine := sha256.New()
	engine.Write(tagHash[:])
	engine.Write(tagHash[:])
	return engine
}

// TaggedSha256 computes the tagged sha256 of the passed payload.
func TaggedSha256(tag string, payload []byte) Hash {
	engine := NewTaggedSha256(tag)
	engine.Write(payload)
	return Sum(engine)
}

// NewTaggedBlake3 returns a BLAKE3 engine in derive-key mode with the tag as
// the context string, which is that function's native domain separation
// mechanism.
func NewTaggedBlake3(tag string) Digest {
	return blake3.NewDeriveKey(tag)
}

// TaggedBlake3 computes the tagged BLAKE3 of the passed payload.
func TaggedBlake3(tag string, payload []byte) Hash {
	engine := NewTaggedBlake3(tag)
	engine.Write(payload)
	return Sum(engine)
}

// Sum finalizes a tagged engine into a Hash.
func Sum(engine Digest) Hash {
	var hash Hash
	copy(hash[:], engine.Sum(nil))
	return hash
}
