// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package relaycache implements the relay cache: a time-expiring
// map from txid to the serialized transaction, so a peer that requested a
// transaction shortly after we advertised it still gets a deterministic
// answer even if the mempool has since evicted it.
package relaycache

import (
	"container/list"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// TTL is the fixed lifetime of a relay cache entry from the moment it is
// published.
const TTL = 15 * time.Minute

// entry is the value stored in the expiry queue.
type entry struct {
	expiry time.Time
	txid   chainhash.Hash
}

// Cache is the relay cache. The map and the FIFO
// expiry queue are kept in lock-step (invariant M1): every map entry has
// exactly one queue node, in strictly non-decreasing expiry order, and
// Expire is the only path that shrinks either of them.
//
// Cache is safe for concurrent use.
type Cache struct {
	mtx     sync.Mutex
	byTxid  map[chainhash.Hash]*btcutil.Tx
	queue   *list.List // of *entry, oldest expiry at the front
	nodeIdx map[chainhash.Hash]*list.Element
}

// New returns an empty relay cache.
func New() *Cache {
	return &Cache{
		byTxid:  make(map[chainhash.Hash]*btcutil.Tx),
		queue:   list.New(),
		nodeIdx: make(map[chainhash.Hash]*list.Element),
	}
}

// Publish inserts tx into the cache if its txid is not already present. A
// freshly published entry expires TTL after now. Re-publishing a txid that
// is already cached is a no-op; it does not refresh the expiry.
func (c *Cache) Publish(txid chainhash.Hash, tx *btcutil.Tx, now time.Time) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	if _, exists := c.byTxid[txid]; exists {
		return
	}

	c.byTxid[txid] = tx
	node := c.queue.PushBack(&entry{expiry: now.Add(TTL), txid: txid})
	c.nodeIdx[txid] = node
}

// Lookup returns the cached transaction for txid, if any.
func (c *Cache) Lookup(txid chainhash.Hash) (*btcutil.Tx, bool) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	tx, exists := c.byTxid[txid]
	return tx, exists
}

// Expire removes every entry whose expiry time is at or before now. Since
// the queue is maintained in strictly non-decreasing expiry order, this
// only ever needs to look at the front of the queue. Expire is the only
// shrinking path for the cache.
func (c *Cache) Expire(now time.Time) int {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	expired := 0
	for {
		front := c.queue.Front()
		if front == nil {
			break
		}
		e := front.Value.(*entry)
		if e.expiry.After(now) {
			break
		}

		c.queue.Remove(front)
		delete(c.nodeIdx, e.txid)
		delete(c.byTxid, e.txid)
		expired++
	}

	if expired > 0 {
		log.Debugf("Expired %d relay cache entries", expired)
	}
	return expired
}

// Len returns the number of entries currently cached, for tests and
// diagnostics.
func (c *Cache) Len() int {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	return len(c.byTxid)
}
