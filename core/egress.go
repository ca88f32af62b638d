// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package core

import (
	"sort"
	"time"

	"github.com/btcsuite/txreland/bloom"
)

// BuildInventoryOpts carries the per-call parameters of the egress pipeline.
// Two independent modes share one call:
//
//   - SendWholeMempool dumps every mempool entry that clears MinFeeRate and
//     BloomFilter, removing each dumped txid from ToSend so it is not
//     re-advertised in the pending drain below.
//   - The pending drain (triggered whenever ToSend is non-empty) walks
//     ToSend in depth-then-fee order, publishing each surviving entry into
//     the relay cache before advertising it.
type BuildInventoryOpts struct {
	SendWholeMempool bool
	MinFeeRate       int64
	BloomFilter      *bloom.Filter

	// ToSend is the caller's pending set. BuildInventory does not shrink
	// this slice; the pending set left after the call, without the entries
	// it advertised or dropped, is returned as BuildInventoryResult.ToSend.
	// The pending drain sorts the slice in place, so its element order may
	// change.
	ToSend []Txid
}

// BuildInventoryResult reports what BuildInventory actually advertised and
// the caller's updated pending set.
type BuildInventoryResult struct {
	HaveSent []Txid
	ToSend   []Txid
}

// passesFilter reports whether a candidate transaction clears the fee floor
// and optional bloom filter for this egress call.
func passesFilter(info TxInfo, minFeeRate int64, filter *bloom.Filter) bool {
	if info.FeeRate < minFeeRate {
		return false
	}
	if filter != nil && !filter.Matches(*info.Tx.Hash()) {
		return false
	}
	return true
}

// BuildInventory implements the egress pipeline. It dispatches
// to peer in batches of at most MaxInvSz entries per INV message.
func (c *Core) BuildInventory(peer *PeerCtx, opts BuildInventoryOpts) BuildInventoryResult {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	result := BuildInventoryResult{}
	batch := make([]Txid, 0, MaxInvSz)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		c.net.SendInv(peer.PeerID, batch)
		batch = make([]Txid, 0, MaxInvSz)
	}
	advertise := func(txid Txid) {
		if peer.KnownInventory.Contains(txid) {
			return
		}
		batch = append(batch, txid)
		peer.KnownInventory.Add(txid)
		result.HaveSent = append(result.HaveSent, txid)
		if len(batch) == MaxInvSz {
			flush()
		}
	}

	toSend := opts.ToSend
	if opts.SendWholeMempool {
		sent := make(map[Txid]bool)
		for _, info := range c.mempool.InfoAll() {
			txid := *info.Tx.Hash()
			if !passesFilter(info, opts.MinFeeRate, opts.BloomFilter) {
				continue
			}
			advertise(txid)
			sent[txid] = true
		}

		remaining := toSend[:0:0]
		for _, txid := range toSend {
			if !sent[txid] {
				remaining = append(remaining, txid)
			}
		}
		toSend = remaining
	}

	if len(toSend) > 0 {
		c.relayed.Expire(time.Now())

		sort.Slice(toSend, func(i, j int) bool {
			return c.mempool.CompareDepthAndScore(toSend[i], toSend[j])
		})

		relayed := 0
		var remaining []Txid
		for _, txid := range toSend {
			if c.cfg.InventoryBroadcastMax > 0 && relayed >= c.cfg.InventoryBroadcastMax {
				remaining = append(remaining, txid)
				continue
			}

			info, ok := c.mempool.Info(txid)
			if !ok || !passesFilter(info, opts.MinFeeRate, opts.BloomFilter) {
				continue
			}

			c.relayed.Publish(txid, info.Tx, time.Now())
			advertise(txid)
			relayed++
		}
		toSend = remaining
	}

	flush()
	result.ToSend = toSend
	return result
}

// ServeFetch answers an inbound GETDATA for txid: it returns the
// transaction to send back and whether peer
// should receive the witness-bearing serialization. lastMempoolReqTime
// gates the mempool fallback so a peer that hasn't recently requested the
// whole pool can't use per-tx GETDATA to infer admission timing.
func (c *Core) ServeFetch(peer *PeerCtx, txid Txid, lastMempoolReqTime time.Time) (TxRef, bool, bool) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	wantWitness := peer.Flags.Has(FlagWitnessPeer)

	if tx, ok := c.relayed.Lookup(txid); ok {
		return tx, wantWitness, true
	}
	if info, ok := c.mempool.Info(txid); ok && !info.Time.After(lastMempoolReqTime) {
		return info.Tx, wantWitness, true
	}
	return nil, false, false
}
