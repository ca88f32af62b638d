// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Command txreland is a small illustrative daemon that loads its
// configuration and logging, wires the txreland core package up to a stub
// network and mempool, and exits. It does not drive the ingress/egress
// pipeline itself.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/btcsuite/txreland/banscore"
	"github.com/btcsuite/txreland/core"
)

func txrelandMain() error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	initLogRotator(filepath.Join(cfg.LogDir, defaultLogFilename))
	setLogLevels(cfg.DebugLevel)

	coreCfg := core.Config{
		WhitelistRelay:        cfg.WhitelistRelay,
		WhitelistForceRelay:   cfg.WhitelistForceRelay,
		MaxOrphanTx:           cfg.MaxOrphanTx,
		InventoryBroadcastMax: cfg.InvBroadcastMax,
		BanScoreParams: banscore.Params{
			Halflife:     cfg.BanScoreHalflife,
			Lifetime:     cfg.BanScoreLifetime,
			BanThreshold: uint32(cfg.BanThreshold),
		},
	}

	mempool := newStubMempool()
	chain := newStubChainView()
	net := newLoggingNetOut()
	extraPool := newStubExtraPool()

	c := core.NewCore(coreCfg, mempool, chain, net, extraPool, chainhash.Hash{})
	_ = c

	coreLog.Infof("txreland started (max_orphan_tx=%d, inv_broadcast_max=%d)",
		coreCfg.MaxOrphanTx, coreCfg.InventoryBroadcastMax)

	// A real daemon would now accept peer connections and drive c.OnTx /
	// c.BuildInventory / c.ServeFetch from its wire-protocol handlers.
	// This demo binary exists to prove the wiring compiles and logs
	// cleanly; it intentionally does not open a listener.
	return nil
}

func main() {
	if err := txrelandMain(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
