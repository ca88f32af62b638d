// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package relaycache

import (
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/require"
)

func mkTx(b byte) (chainhash.Hash, *btcutil.Tx) {
	msgTx := wire.NewMsgTx(wire.TxVersion)
	msgTx.LockTime = uint32(b)
	tx := btcutil.NewTx(msgTx)
	return *tx.Hash(), tx
}

func TestPublishLookup(t *testing.T) {
	c := New()
	txid, tx := mkTx(1)
	now := time.Now()

	_, exists := c.Lookup(txid)
	require.False(t, exists)

	c.Publish(txid, tx, now)

	got, exists := c.Lookup(txid)
	require.True(t, exists, spew.Sdump(c))
	require.Equal(t, tx, got)
	require.Equal(t, 1, c.Len())
}

func TestPublishIsIdempotent(t *testing.T) {
	c := New()
	txid, tx := mkTx(2)
	now := time.Now()

	c.Publish(txid, tx, now)
	c.Publish(txid, tx, now.Add(time.Hour))

	require.Equal(t, 1, c.Len())
}

func TestExpire(t *testing.T) {
	c := New()
	now := time.Now()

	txid1, tx1 := mkTx(3)
	txid2, tx2 := mkTx(4)

	c.Publish(txid1, tx1, now)
	c.Publish(txid2, tx2, now.Add(time.Minute))

	// Nothing expired yet.
	require.Equal(t, 0, c.Expire(now.Add(TTL-time.Second)))
	require.Equal(t, 2, c.Len())

	// First entry expires, second (inserted a minute later) does not.
	expired := c.Expire(now.Add(TTL + time.Second))
	require.Equal(t, 1, expired)
	require.Equal(t, 1, c.Len())

	_, exists := c.Lookup(txid1)
	require.False(t, exists)
	_, exists = c.Lookup(txid2)
	require.True(t, exists)

	// Second entry now expires too.
	expired = c.Expire(now.Add(TTL + time.Minute + time.Second))
	require.Equal(t, 1, expired)
	require.Equal(t, 0, c.Len())
}
