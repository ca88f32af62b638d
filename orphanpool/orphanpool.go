// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package orphanpool implements the orphan pool: transactions
// whose inputs are not yet known, indexed by txid and by each outpoint they
// consume, bounded in size, and aged out.
//
// Per the design notes, entries live in an arena addressed by a
// stable integer handle; the secondary (by-outpoint) and tertiary (by-peer)
// indices store handles rather than owning references, so eviction is a
// matter of freeing one handle and cleaning up the indices that point at it.
package orphanpool

import (
	"crypto/rand"
	"math/big"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// PeerId identifies the peer that relayed an orphan.
// LocalPeerID is reserved for orphans that did not arrive over the network
// (e.g. local rebroadcast), so EraseForPeer never has to special-case a
// "no peer" value.
type PeerId uint64

// LocalPeerID is the reserved PeerId for orphans with no originating peer.
const LocalPeerID PeerId = 0

// handle is the stable arena address of an orphan entry.
type handle uint64

// Entry is an orphan transaction together with the metadata the pool keeps
// about it.
type Entry struct {
	Tx       *btcutil.Tx
	FromPeer PeerId
	AddedAt  time.Time
}

// Pool is the orphan pool.
//
// Invariant O1: byOutpoint[op] contains handle h iff the entry at h consumes
// op as an input. Invariant O2: len(byTxid) <= maxOrphanTx at all times
// observable outside Add.
//
// Pool is safe for concurrent use.
type Pool struct {
	mtx sync.Mutex

	maxOrphanTx int

	nextHandle handle
	arena      map[handle]*Entry
	byTxid     map[chainhash.Hash]handle
	byOutpoint map[wire.OutPoint]map[handle]struct{}
	byPeer     map[PeerId]map[handle]struct{}
}

// New returns an empty orphan pool bounded at maxOrphanTx entries.
func New(maxOrphanTx int) *Pool {
	return &Pool{
		maxOrphanTx: maxOrphanTx,
		arena:       make(map[handle]*Entry),
		byTxid:      make(map[chainhash.Hash]handle),
		byOutpoint:  make(map[wire.OutPoint]map[handle]struct{}),
		byPeer:      make(map[PeerId]map[handle]struct{}),
	}
}

// Len returns the number of orphans currently held.
func (p *Pool) Len() int {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	return len(p.arena)
}

// Contains reports whether txid is present in the pool.
func (p *Pool) Contains(txid chainhash.Hash) bool {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	_, exists := p.byTxid[txid]
	return exists
}

// Add inserts tx into the orphan pool, attributing it to fromPeer. It
// returns false without modifying the pool if txid is already present (a
// duplicate add is a no-op, not an error). After a
// successful insert, the size bound (O2) is enforced by evicting uniformly
// random entries; the entry just added is as likely to be picked as any
// other. Uniform (rather than age-weighted) eviction leaves no
// deterministic victim to grind toward.
func (p *Pool) Add(tx *btcutil.Tx, fromPeer PeerId, now time.Time) bool {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	txid := *tx.Hash()
	if _, exists := p.byTxid[txid]; exists {
		return false
	}

	h := p.nextHandle
	p.nextHandle++

	p.arena[h] = &Entry{Tx: tx, FromPeer: fromPeer, AddedAt: now}
	p.byTxid[txid] = h

	for _, txIn := range tx.MsgTx().TxIn {
		op := txIn.PreviousOutPoint
		if p.byOutpoint[op] == nil {
			p.byOutpoint[op] = make(map[handle]struct{})
		}
		p.byOutpoint[op][h] = struct{}{}
	}

	if p.byPeer[fromPeer] == nil {
		p.byPeer[fromPeer] = make(map[handle]struct{})
	}
	p.byPeer[fromPeer][h] = struct{}{}

	evicted := p.limit(p.maxOrphanTx)
	if evicted > 0 {
		log.Debugf("Evicted %d orphan(s) to stay within limit of %d",
			evicted, p.maxOrphanTx)
	}

	log.Debugf("Stored orphan transaction %v (total: %d)", txid, len(p.arena))
	return true
}

// erase removes the entry at handle h from every index. Caller must hold
// the lock.
func (p *Pool) erase(h handle) {
	e, exists := p.arena[h]
	if !exists {
		return
	}

	for _, txIn := range e.Tx.MsgTx().TxIn {
		op := txIn.PreviousOutPoint
		set := p.byOutpoint[op]
		delete(set, h)
		if len(set) == 0 {
			delete(p.byOutpoint, op)
		}
	}

	set := p.byPeer[e.FromPeer]
	delete(set, h)
	if len(set) == 0 {
		delete(p.byPeer, e.FromPeer)
	}

	delete(p.arena, h)
	delete(p.byTxid, *e.Tx.Hash())
}

// Erase removes the orphan identified by txid, if present, returning 1 if
// it was removed or 0 if it was not present.
func (p *Pool) Erase(txid chainhash.Hash) int {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	h, exists := p.byTxid[txid]
	if !exists {
		return 0
	}
	p.erase(h)
	return 1
}

// EraseForPeer removes every orphan attributed to peerID, returning the
// count removed.
func (p *Pool) EraseForPeer(peerID PeerId) int {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	handles := p.byPeer[peerID]
	count := len(handles)
	for h := range handles {
		p.erase(h)
	}
	return count
}

// FindChildren returns every orphan entry that consumes the given outpoint
// as an input. It is effectively zero-cost when no orphan depends on the
// outpoint (a single map lookup that returns nothing to iterate).
func (p *Pool) FindChildren(op wire.OutPoint) []Entry {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	handles := p.byOutpoint[op]
	if len(handles) == 0 {
		return nil
	}

	out := make([]Entry, 0, len(handles))
	for h := range handles {
		out = append(out, *p.arena[h])
	}
	return out
}

// limit evicts uniformly random entries until len(arena) <= max. Caller must
// hold the lock. Returns the number of entries evicted.
func (p *Pool) limit(max int) int {
	evicted := 0
	for len(p.arena) > max {
		victim, ok := p.randomHandle()
		if !ok {
			break
		}
		p.erase(victim)
		evicted++
	}
	return evicted
}

// Limit is the exported form of limit, used by callers (e.g. on a policy
// change that lowers max_orphan_tx at runtime) that need to re-enforce the
// bound outside of Add.
func (p *Pool) Limit(max int) int {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	return p.limit(max)
}

// randomHandle picks a uniformly random live handle using a cryptographic
// random index, so an adversary who can observe eviction decisions can't
// predict (and therefore can't grind toward) which of their orphans survives.
func (p *Pool) randomHandle() (handle, bool) {
	n := len(p.arena)
	if n == 0 {
		return 0, false
	}

	idx, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		// Fall back to the first handle seen; Go's map iteration order
		// is already randomized per-process, so this is still not a
		// deterministic victim.
		for h := range p.arena {
			return h, true
		}
		return 0, false
	}

	target := idx.Int64()
	var i int64
	for h := range p.arena {
		if i == target {
			return h, true
		}
		i++
	}
	return 0, false
}

// ExpireOlderThan removes every orphan added before cutoff, returning the
// count removed. This is age-based housekeeping alongside the count-only
// bound (O2); it does not change O1/O2.
func (p *Pool) ExpireOlderThan(cutoff time.Time) int {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	var stale []handle
	for h, e := range p.arena {
		if e.AddedAt.Before(cutoff) {
			stale = append(stale, h)
		}
	}
	for _, h := range stale {
		p.erase(h)
	}
	return len(stale)
}
