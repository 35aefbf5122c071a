// Copyright (c) 2021 The mpcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package commithash

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestTaggedSha256Scheme checks the tagged digest against an independent
// computation of sha256(sha256(tag) || sha256(tag) || payload).
func TestTaggedSha256Scheme(t *testing.T) {
	tag := "test:tag#2024"
	payload := []byte("some committed payload")

	tagHash := sha256.Sum256([]byte(tag))
	engine := sha256.New()
	engine.Write(tagHash[:])
	engine.Write(tagHash[:])
	engine.Write(payload)
	var want Hash
	copy(want[:], engine.Sum(nil))

	got := TaggedSha256(tag, payload)
	assert.Equal(t, want, got)
}

func TestTaggedDomainSeparation(t *testing.T) {
	payload := []byte("identical payload")

	h1 := TaggedSha256("tag:one", payload)
	h2 := TaggedSha256("tag:two", payload)
	assert.NotEqual(t, h1, h2, "different tags must never produce the same digest")

	b1 := TaggedBlake3("tag:one", payload)
	b2 := TaggedBlake3("tag:two", payload)
	assert.NotEqual(t, b1, b2)

	assert.NotEqual(t, h1, b1, "digest functions must not collide on the same tag")
}

func TestTaggedIncrementalMatchesOneShot(t *testing.T) {
	tag := "test:incremental"
	payload := []byte("0123456789abcdef0123456789abcdef")

	engine := NewTaggedSha256(tag)
	engine.Write(payload[:7])
	engine.Write(payload[7:])
	assert.Equal(t, TaggedSha256(tag, payload), Sum(engine))

	engine = NewTaggedBlake3(tag)
	engine.Write(payload[:19])
	engine.Write(payload[19:])
	assert.Equal(t, TaggedBlake3(tag, payload), Sum(engine))
}

func TestTaggedDeterminism(t *testing.T) {
	tag := "test:determinism"
	payload := []byte{0x01, 0x02, 0x03}

	assert.Equal(t, TaggedSha256(tag, payload), TaggedSha256(tag, payload))
	assert.Equal(t, TaggedBlake3(tag, payload), TaggedBlake3(tag, payload))
	assert.NotEqual(t, TaggedSha256(tag, payload), TaggedSha256(tag, []byte{0x01, 0x02}))
}
