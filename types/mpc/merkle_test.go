// Copyright (c) 2021 The mpcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mpc

import (
	"testing"

	"gitlab.com/mpcsuite/mpc/types/commithash"
)

func TestMerklizeRowSingle(t *testing.T) {
	leaf := commithash.Hash{0x01}
	if got := merklizeRow(Sha256t, []commithash.Hash{leaf}); got != leaf {
		t.Fatalf("single-element row must be its own root, got %v", got)
	}
}

func TestMerkleNodeHashBindsGeometry(t *testing.T) {
	n1 := commithash.Hash{0x01}
	n2 := commithash.Hash{0x02}

	h1 := merkleNodeHash(Sha256t, 1, n1, n2)
	h2 := merkleNodeHash(Sha256t, 2, n1, n2)
	if h1 == h2 {
		t.Fatal("node hashes at different heights must differ")
	}

	swapped := merkleNodeHash(Sha256t, 1, n2, n1)
	if h1 == swapped {
		t.Fatal("node hash must depend on child ordering")
	}

	if merkleNodeHash(Blake3, 1, n1, n2) == h1 {
		t.Fatal("node hash must depend on the digest method")
	}
}

func TestMerklizeRowMatchesNodeHash(t *testing.T) {
	row := []commithash.Hash{{0x01}, {0x02}, {0x03}, {0x04}}

	left := merkleNodeHash(Sha256t, 1, row[0], row[1])
	right := merkleNodeHash(Sha256t, 1, row[2], row[3])
	want := merkleNodeHash(Sha256t, 2, left, right)

	rowCopy := make([]commithash.Hash, len(row))
	copy(rowCopy, row)
	if got := merklizeRow(Sha256t, rowCopy); got != want {
		t.Fatalf("row fold mismatch - got %v, want %v", got, want)
	}
}

func TestMerkleBuoy(t *testing.T) {
	tests := []struct {
		name      string
		top       uint8
		pushes    []uint8
		surfaced  []bool
		wantLevel uint8
	}{
		{
			name:      "sibling at the watched level",
			top:       3,
			pushes:    []uint8{3},
			surfaced:  []bool{true},
			wantLevel: 2,
		},
		{
			name:      "two deeper siblings collapse upward",
			top:       3,
			pushes:    []uint8{4, 4},
			surfaced:  []bool{false, true},
			wantLevel: 2,
		},
		{
			name:      "full subtree of depth-two nodes",
			top:       2,
			pushes:    []uint8{2, 1},
			surfaced:  []bool{true, true},
			wantLevel: 0,
		},
		{
			name:      "root level pushes are ignored",
			top:       1,
			pushes:    []uint8{0, 0},
			surfaced:  []bool{false, false},
			wantLevel: 1,
		},
		{
			name:      "uneven reveal sequence",
			top:       3,
			pushes:    []uint8{4, 5, 5},
			surfaced:  []bool{false, false, true},
			wantLevel: 2,
		},
	}

	for _, test := range tests {
		buoy := newMerkleBuoy(test.top)
		for i, depth := range test.pushes {
			if got := buoy.push(depth); got != test.surfaced[i] {
				t.Errorf("%s: push %d (depth %d) surfaced %v, want %v",
					test.name, i, depth, got, test.surfaced[i])
			}
		}
		if got := buoy.level(); got != test.wantLevel {
			t.Errorf("%s: final level %d, want %d", test.name, got, test.wantLevel)
		}
	}
}
