// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package core

import (
	"github.com/decred/dcrd/lru"
)

// knownInventoryLimit bounds the per-peer "already knows about this" shadow
// set. A noisy peer that spams orphans referencing many distinct parents
// can't grow this past a fixed ceiling.
const knownInventoryLimit = 25000

// knownInventory tracks which outpoints/txids we believe a given peer
// already knows about. The egress path skips advertising txids found here;
// the missing-inputs path records each parent txid it sees here but does
// not consult the set before requesting a parent. Backed by decred/dcrd/lru, which
// gives it bounded memory with LRU eviction for free.
type knownInventory struct {
	cache *lru.Cache
}

func newKnownInventory(limit uint) *knownInventory {
	return &knownInventory{cache: lru.NewCache(limit)}
}

// Add records that the peer is now known to be aware of txid.
func (k *knownInventory) Add(txid Txid) {
	k.cache.Add(txid)
}

// Contains reports whether the peer is believed to already know about txid.
func (k *knownInventory) Contains(txid Txid) bool {
	return k.cache.Contains(txid)
}
