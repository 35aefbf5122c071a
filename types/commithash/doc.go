// Copyright (c) 2021 The mpcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package commithash provides abstracted hash functionality.
//
// This package provides a generic 32-byte hash type together with tagged
// digest engines. A tagged engine folds a structure-specific domain
// separation tag into the hash state before any payload, so values of
// different kinds can never collide even when their encodings are
// byte-equal.

package commithash
