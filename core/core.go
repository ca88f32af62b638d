// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package core wires together the recent-rejects filter, relay cache, and
// orphan pool into the transaction ingress/egress pipeline. It holds no
// consensus logic itself — that lives behind the Mempool and ChainView
// collaborators — and instead implements the bookkeeping a full node's P2P
// layer needs around validation: what to ask for, what to relay, what to
// remember having already rejected, and what to do with transactions that
// arrive before their parents.
package core

import (
	"sync"
	"time"

	"github.com/btcsuite/btcd/wire"

	"github.com/btcsuite/txreland/orphanpool"
	"github.com/btcsuite/txreland/rejectfilter"
	"github.com/btcsuite/txreland/relaycache"
)

// Core is the single-writer, many-reader coordinator.
// All of its exported methods take mtx internally; callers never lock it
// directly. No method blocks on I/O while holding mtx — every call into a
// collaborator is either a pure computation or an enqueue onto NetOut.
type Core struct {
	mtx sync.Mutex

	cfg Config

	mempool   Mempool
	chain     ChainView
	net       NetOut
	extraPool ExtraPool

	rejects *rejectfilter.Filter
	relayed *relaycache.Cache
	orphans *orphanpool.Pool
}

// NewCore constructs a Core over the given collaborators. tip is the chain
// tip hash the recent-rejects filter should be seeded with.
func NewCore(cfg Config, mempool Mempool, chain ChainView, net NetOut, extraPool ExtraPool, tip Txid) *Core {
	return &Core{
		cfg:       cfg,
		mempool:   mempool,
		chain:     chain,
		net:       net,
		extraPool: extraPool,
		rejects:   rejectfilter.New(tip),
		relayed:   relaycache.New(),
		orphans:   orphanpool.New(cfg.MaxOrphanTx),
	}
}

// exists implements the existence oracle: a transaction is
// "known" if the mempool already has it, the orphan pool already has it,
// the recent-rejects filter recalls rejecting it, or the chain's UTXO
// cache holds its first output (already mined).
//
// Callers must hold mtx.
func (c *Core) exists(txid Txid, tip Txid, firstOut Outpoint) bool {
	if c.mempool.Exists(txid) {
		return true
	}
	if c.orphans.Contains(txid) {
		return true
	}
	if c.rejects.Query(txid, tip) {
		return true
	}
	return c.chain.HaveCoinInCache(firstOut)
}

// Exists is the exported, locked form of the existence oracle, for callers
// deciding whether to even request a transaction's bytes.
func (c *Core) Exists(txid Txid, firstOut Outpoint) bool {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	return c.exists(txid, c.chain.Tip(), firstOut)
}

// OnTx implements the ingress pipeline. tx arrived from peer (LocalPeerID
// for locally originated transactions).
func (c *Core) OnTx(peer *PeerCtx, tx TxRef) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	txid := *tx.Hash()
	tip := c.chain.Tip()

	// Step 1: admission-control gate. A peer with relay disabled and not
	// whitelisted-for-relay is not allowed to push transactions at all.
	if !peer.Flags.Has(FlagRelayTx) && !(c.cfg.WhitelistRelay && peer.Flags.Has(FlagWhitelisted)) {
		return
	}

	// Step 2: de-dup. An already-known transaction is not re-validated, but
	// it still passes through a whitelist force-relay gateway
	// (onAlreadyKnown), the counterpart of the one onRejected applies to a
	// fresh rejection, before this call returns.
	firstOut := Outpoint{Hash: txid}
	if c.exists(txid, tip, firstOut) {
		c.onAlreadyKnown(peer, tx)
		return
	}

	result := c.mempool.AcceptToMempool(tx, false)

	switch result.Outcome {
	case AcceptAccepted:
		c.onAccepted(peer, tx, result)

	case AcceptMissingInputs:
		c.onOrphan(peer, tx)

	case AcceptInvalid:
		c.onRejected(peer, tx, result)
	}
}

// onAccepted handles the accept branch: publishing to the relay cache,
// orphan-chain resolution, and evicted-transaction handling.
//
// Callers must hold mtx.
func (c *Core) onAccepted(peer *PeerCtx, tx TxRef, result AcceptResult) {
	txid := *tx.Hash()

	c.relayed.Publish(txid, tx, time.Now())
	c.queueInv(txid)
	peer.OutFlags.NewTransaction = true

	for _, removed := range result.Removed {
		c.forwardToExtraPool(removed)
	}

	c.resolveOrphans(tx)

	if err := c.mempool.Check(); err != nil {
		log.Warnf("mempool consistency check failed after accepting %v: %v", txid, err)
	}
}

// resolveOrphans walks the orphan pool for children spending txParent's
// outputs and attempts to admit each of them in turn, recursively chaining
// through any of those that themselves unblock further orphans. Children
// whose originating peer has already been scored this round are skipped
// outright (a per-round "misbehaving" set), so a single attacker-crafted
// orphan chain can't score its own author more than once per round.
//
// Callers must hold mtx.
func (c *Core) resolveOrphans(txParent TxRef) {
	parentID := *txParent.Hash()
	misbehaving := make(map[PeerId]bool)
	var toErase []Txid

	queue := []Txid{parentID}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		numOuts := 0
		if tx, ok := c.mempool.Info(cur); ok {
			numOuts = len(tx.Tx.MsgTx().TxOut)
		}

		for i := 0; i < numOuts || i == 0; i++ {
			children := c.orphans.FindChildren(wire.OutPoint{Hash: cur, Index: uint32(i)})
			for _, child := range children {
				if misbehaving[child.FromPeer] {
					continue
				}

				childID := *child.Tx.Hash()
				childResult := c.mempool.AcceptToMempool(child.Tx, true)

				switch childResult.Outcome {
				case AcceptAccepted:
					c.relayed.Publish(childID, child.Tx, time.Now())
					c.queueInv(childID)
					toErase = append(toErase, childID)

					for _, removed := range childResult.Removed {
						c.forwardToExtraPool(removed)
					}

					queue = append(queue, childID)

				case AcceptInvalid:
					toErase = append(toErase, childID)
					if NonMalleable(child.Tx, childResult.State) {
						c.rejects.Insert(childID)
					}
					if childResult.State.DoS > 0 {
						misbehaving[child.FromPeer] = true
						c.net.Misbehave(child.FromPeer, childResult.State.DoS)
					}
				}
			}
			if numOuts == 0 {
				break
			}
		}
	}

	for _, childID := range toErase {
		c.orphans.Erase(childID)
	}
}

// onOrphan handles the missing-inputs branch: if any input's
// parent is itself a known-rejected transaction, this transaction can never
// resolve, so it is inserted into the rejects filter instead of parked.
// Otherwise it is held in the orphan pool pending its parent(s), and its
// still-missing parents are requested from the originating peer.
//
// Callers must hold mtx.
func (c *Core) onOrphan(peer *PeerCtx, tx TxRef) {
	txid := *tx.Hash()
	tip := c.chain.Tip()

	for _, in := range tx.MsgTx().TxIn {
		if c.rejects.Query(in.PreviousOutPoint.Hash, tip) {
			c.rejects.Insert(txid)
			return
		}
	}

	if !c.orphans.Add(tx, peer.PeerID, time.Now()) {
		return
	}

	for _, in := range tx.MsgTx().TxIn {
		parentID := in.PreviousOutPoint.Hash
		peer.KnownInventory.Add(parentID)
		if c.exists(parentID, tip, Outpoint{Hash: parentID}) {
			continue
		}
		c.net.AskForTransaction(peer.PeerID, parentID, fetchFlagsFor(peer))
	}
}

// onAlreadyKnown handles a re-announced transaction we already know about:
// since no fresh ValidationState exists for a transaction we didn't just
// validate, "validation did not fail" holds vacuously, so the force-relay
// gateway reduces to whitelist status alone.
//
// Callers must hold mtx.
func (c *Core) onAlreadyKnown(peer *PeerCtx, tx TxRef) {
	if !c.cfg.WhitelistForceRelay || !peer.Flags.Has(FlagWhitelisted) {
		return
	}

	txid := *tx.Hash()
	c.relayed.Publish(txid, tx, time.Now())
	c.queueInv(txid)
}

// onRejected handles the non-malleable rule for the recent-rejects filter,
// force-relay for whitelisted peers, the compact-block extra pool handoff,
// and the DoS penalty.
//
// Callers must hold mtx.
func (c *Core) onRejected(peer *PeerCtx, tx TxRef, result AcceptResult) {
	txid := *tx.Hash()

	if NonMalleable(tx, result.State) {
		c.rejects.Insert(txid)
	}

	// Gateway semantics: force-relay a whitelisted
	// peer's transaction even though validation failed, but only when it
	// was a pure policy failure (dos == 0) — an actively malicious
	// transaction is never force-relayed regardless of whitelist status.
	if c.cfg.WhitelistForceRelay && peer.Flags.Has(FlagWhitelisted) && result.State.DoS == 0 {
		c.relayed.Publish(txid, tx, time.Now())
		c.queueInv(txid)
	}

	c.forwardToExtraPool(tx)

	if result.State.Code < RejectInternalThreshold {
		reason := result.State.Reason
		if len(reason) > MaxRejectMessageLength {
			reason = reason[:MaxRejectMessageLength]
		}
		c.net.SendReject(peer.PeerID, result.State.Code, reason, txid)
	}
	// Only the current peer's own score is touched directly here.
	// c.net.Misbehave is reserved for scoring a *different* peer — see
	// resolveOrphans, which uses it to penalize an orphan's originating
	// peer from inside the current peer's call stack.
	if result.State.DoS > 0 {
		peer.MisbehaviorScore.Increase(0, result.State.DoS)
	}
}

// forwardToExtraPool hands tx to the compact-block extra pool when it is
// small enough to be worth keeping around for block reconstruction.
//
// Callers must hold mtx.
func (c *Core) forwardToExtraPool(tx TxRef) {
	if tx.MsgTx().SerializeSize() >= CompactExtraCutoff {
		return
	}
	c.extraPool.Add(tx)
}

// queueInv announces txid to the network layer so every peer's next
// egress round picks it up into its own pending ("to_send") set. The
// pending set itself is caller-owned, not held here.
//
// Callers must hold mtx.
func (c *Core) queueInv(txid Txid) {
	c.net.Broadcast(txid)
}

// fetchFlagsFor sets the witness bit iff both our local services and the
// peer advertise witness support.
func fetchFlagsFor(peer *PeerCtx) FetchFlags {
	if peer.Flags.Has(FlagWitnessPeer) && peer.LocalServices.Has(FlagWitnessPeer) {
		return FetchWitness
	}
	return 0
}
