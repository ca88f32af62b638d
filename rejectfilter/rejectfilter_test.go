// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rejectfilter

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"
)

func mkHash(b byte) chainhash.Hash {
	var h chainhash.Hash
	h[0] = b
	return h
}

func TestInsertThenQuerySameTip(t *testing.T) {
	tip := mkHash(1)
	f := New(tip)

	txid := mkHash(2)
	require.False(t, f.Query(txid, tip))

	f.Insert(txid)
	require.True(t, f.Query(txid, tip))
}

func TestQueryTipChangeClearsFilter(t *testing.T) {
	tip := mkHash(1)
	f := New(tip)

	txid := mkHash(2)
	f.Insert(txid)
	require.True(t, f.Query(txid, tip))

	newTip := mkHash(3)
	require.False(t, f.Query(txid, newTip), "a tip change must forget every prior insert (property P2)")
	require.Equal(t, newTip, f.Tip())

	// The clear is persistent: a second query under the new tip, which
	// triggers no further reset, still does not find the old membership.
	require.False(t, f.Query(txid, newTip))
}

func TestReset(t *testing.T) {
	tip := mkHash(1)
	f := New(tip)

	txid := mkHash(2)
	f.Insert(txid)
	require.True(t, f.Query(txid, tip))

	newTip := mkHash(4)
	f.Reset(newTip)

	require.Equal(t, newTip, f.Tip())
	require.False(t, f.Query(txid, newTip), "Reset must forget prior inserts immediately, not just on the next tip change")
}

func TestResetIsIdempotentAcrossSameTipQueries(t *testing.T) {
	tip := mkHash(1)
	f := New(tip)
	f.Reset(tip)

	txid := mkHash(5)
	require.False(t, f.Query(txid, tip))
	f.Insert(txid)
	require.True(t, f.Query(txid, tip), "re-resetting to the same tip must not itself clear later inserts")
}
