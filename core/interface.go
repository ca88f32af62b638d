// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package core

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/btcsuite/txreland/banscore"
)

// Mempool is the external, consensus-aware transaction pool this core
// drives admission through. This module implements it only as doubles —
// MockMempool for tests and the demo binary's non-validating stub;
// production callers wire in their own validated mempool.
type Mempool interface {
	// Exists reports whether txid is already held in the mempool.
	Exists(txid Txid) bool

	// Info returns the contextual metadata for a mempool entry.
	Info(txid Txid) (TxInfo, bool)

	// InfoAll returns metadata for every mempool entry, for the egress
	// mempool-dump path.
	InfoAll() []TxInfo

	// AcceptToMempool attempts to validate and admit tx. discardState, if
	// true, tells the mempool this call is being used only to probe an
	// orphan child's validity on behalf of a peer other than the one
	// that authored the parent — the caller will not honor any reject
	// message derived from the returned state.
	AcceptToMempool(tx TxRef, discardState bool) AcceptResult

	// Check re-validates mempool consistency against the current UTXO
	// view, e.g. after a transaction was just admitted.
	Check() error

	// CompareDepthAndScore implements the egress heap comparator: it
	// reports whether a should be advertised before b (deeper in the
	// mempool's dependency chain wins; ties break on higher fee rate).
	CompareDepthAndScore(a, b Txid) bool

	// Size returns the number of transactions currently held.
	Size() int

	// DynamicMemoryUsage estimates the live memory footprint of the pool,
	// for metrics/logging.
	DynamicMemoryUsage() int64
}

// ChainView exposes just enough of the active chain/UTXO state for this
// core's existence oracle and tip-tracking.
type ChainView interface {
	// Tip returns the active chain tip's block hash.
	Tip() chainhash.Hash

	// HaveCoinInCache reports whether the UTXO cache holds the given
	// output, used as a cheap "already confirmed" heuristic.
	HaveCoinInCache(op Outpoint) bool
}

// NetOut is the non-blocking network output surface this core enqueues onto.
// Every method is expected to return immediately; the core
// never suspends while holding the chain-state lock.
type NetOut interface {
	// SendTx sends the serialized transaction to peer, stripped of
	// witness data iff !wantWitness.
	SendTx(peer PeerId, tx TxRef, wantWitness bool)

	// SendReject sends a REJECT(command="tx", ...) message to peer.
	SendReject(peer PeerId, code RejectCode, reason string, txid Txid)

	// SendInv sends one batch (<= MaxInvSz entries) of transaction
	// inventory to peer.
	SendInv(peer PeerId, txids []Txid)

	// Broadcast announces txid to every connected peer's next egress
	// round.
	Broadcast(txid Txid)

	// AskForTransaction requests txid from peer with the given fetch
	// flags.
	AskForTransaction(peer PeerId, txid Txid, flags FetchFlags)

	// Misbehave reports a DoS score increment for peer.
	Misbehave(peer PeerId, score uint32)
}

// ExtraPool is the compact-block extra pool this core forwards near-miss
// transactions to. It is explicitly out of scope for this module and
// treated as an opaque collaborator.
type ExtraPool interface {
	Add(tx TxRef)
}

// Config carries the handful of policy knobs this core's caller configures.
type Config struct {
	// WhitelistRelay allows a relay-disabled, whitelisted peer through
	// the admission-control gate.
	WhitelistRelay bool

	// WhitelistForceRelay re-broadcasts transactions from whitelisted
	// peers even when validation didn't accept them outright.
	WhitelistForceRelay bool

	// MaxOrphanTx bounds the orphan pool.
	MaxOrphanTx int

	// InventoryBroadcastMax bounds how many transactions one egress
	// round will advertise from the pending set.
	InventoryBroadcastMax int

	// BanScoreParams tunes how a peer's MisbehaviorScore decays over
	// time. The zero value falls back to banscore.DefaultParams.
	// NewPeerCtx is the caller's hook for applying it per peer.
	BanScoreParams banscore.Params
}
