// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/btcsuite/txreland/core"
)

// stubMempool is a minimal, non-validating Mempool used by this demo binary
// in place of a real consensus-aware pool. It accepts anything it is handed
// and never reports missing inputs.
type stubMempool struct {
	mtx sync.Mutex
	txs map[core.Txid]core.TxInfo
}

func newStubMempool() *stubMempool {
	return &stubMempool{txs: make(map[core.Txid]core.TxInfo)}
}

func (m *stubMempool) Exists(txid core.Txid) bool {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	_, ok := m.txs[txid]
	return ok
}

func (m *stubMempool) Info(txid core.Txid) (core.TxInfo, bool) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	info, ok := m.txs[txid]
	return info, ok
}

func (m *stubMempool) InfoAll() []core.TxInfo {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	out := make([]core.TxInfo, 0, len(m.txs))
	for _, info := range m.txs {
		out = append(out, info)
	}
	return out
}

func (m *stubMempool) AcceptToMempool(tx core.TxRef, discardState bool) core.AcceptResult {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	txid := *tx.Hash()
	m.txs[txid] = core.TxInfo{Tx: tx}
	return core.AcceptResult{Outcome: core.AcceptAccepted}
}

func (m *stubMempool) Check() error { return nil }

func (m *stubMempool) CompareDepthAndScore(a, b core.Txid) bool {
	return a.String() < b.String()
}

func (m *stubMempool) Size() int {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	return len(m.txs)
}

func (m *stubMempool) DynamicMemoryUsage() int64 {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	return int64(len(m.txs)) * 512
}

// stubChainView is a ChainView that reports an empty UTXO cache and a
// fixed, zero-value tip.
type stubChainView struct{}

func newStubChainView() *stubChainView { return &stubChainView{} }

func (stubChainView) Tip() chainhash.Hash                { return chainhash.Hash{} }
func (stubChainView) HaveCoinInCache(core.Outpoint) bool { return false }

// loggingNetOut is a NetOut that just logs what it would have sent, useful
// for observing the pipeline's decisions without a real peer connection.
type loggingNetOut struct{}

func newLoggingNetOut() *loggingNetOut { return &loggingNetOut{} }

func (loggingNetOut) SendTx(peer core.PeerId, tx core.TxRef, wantWitness bool) {
	coreLog.Debugf("would send tx %v to peer %d (witness=%v)", tx.Hash(), peer, wantWitness)
}

func (loggingNetOut) SendReject(peer core.PeerId, code core.RejectCode, reason string, txid core.Txid) {
	coreLog.Debugf("would send reject(%v, %q) for %v to peer %d", code, reason, txid, peer)
}

func (loggingNetOut) SendInv(peer core.PeerId, txids []core.Txid) {
	coreLog.Debugf("would advertise %d tx(s) to peer %d", len(txids), peer)
}

func (loggingNetOut) Broadcast(txid core.Txid) {
	coreLog.Debugf("queued %v for broadcast", txid)
}

func (loggingNetOut) AskForTransaction(peer core.PeerId, txid core.Txid, flags core.FetchFlags) {
	coreLog.Debugf("would ask peer %d for %v (flags=%v)", peer, txid, flags)
}

func (loggingNetOut) Misbehave(peer core.PeerId, score uint32) {
	coreLog.Debugf("peer %d misbehavior +%d", peer, score)
}

// stubExtraPool discards everything handed to it.
type stubExtraPool struct{}

func newStubExtraPool() *stubExtraPool { return &stubExtraPool{} }

func (stubExtraPool) Add(core.TxRef) {}
