// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	flags "github.com/jessevdk/go-flags"
)

const (
	defaultConfigFilename  = "txreland.conf"
	defaultLogFilename     = "txreland.log"
	defaultLogLevel        = "info"
	defaultMaxOrphanTx     = 100
	defaultInvBroadcastMax = 1000
)

var (
	defaultHomeDir    = txrelandHomeDir()
	defaultConfigFile = filepath.Join(defaultHomeDir, defaultConfigFilename)
	defaultLogFile    = filepath.Join(defaultHomeDir, "logs", defaultLogFilename)
)

// config defines the configuration options for the txreland demo daemon.
//
// See loadConfig for details on the configuration load process.
type config struct {
	ConfigFile string `short:"C" long:"configfile" description:"Path to configuration file"`
	LogDir     string `long:"logdir" description:"Directory to log output"`
	DebugLevel string `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- one level applies to every subsystem; <subsystem>=<level> pairs are not parsed"`

	WhitelistRelay      bool  `long:"whitelistrelay" description:"Accept transactions from whitelisted peers even when they have transaction relay disabled"`
	WhitelistForceRelay bool  `long:"whitelistforcerelay" description:"Force relay transactions from whitelisted peers even if the transactions were already rejected"`
	MaxOrphanTx         int   `long:"maxorphantx" description:"Max number of orphan transactions to keep in memory"`
	InvBroadcastMax     int   `long:"invbroadcastmax" description:"Max number of transactions to advertise per egress round"`
	BanScoreHalflife    int64 `long:"banscorehalflife" description:"Seconds for a peer's transient misbehavior score to decay by half"`
	BanScoreLifetime    int64 `long:"banscorelifetime" description:"Seconds after which a peer's transient misbehavior score is considered expired"`
	BanThreshold        uint  `long:"banthreshold" description:"Ban threshold stored in each peer's misbehavior-score parameters (this daemon does not ban peers itself)"`
}

// txrelandHomeDir returns an OS appropriate home directory for txreland.
func txrelandHomeDir() string {
	appData := os.Getenv("APPDATA")
	if appData != "" {
		return filepath.Join(appData, "txreland")
	}

	home := os.Getenv("HOME")
	if home != "" {
		return filepath.Join(home, ".txreland")
	}

	return "."
}

// loadConfig initializes and parses the config using a config file and
// command line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
func loadConfig() (*config, []string, error) {
	cfg := config{
		ConfigFile:      defaultConfigFile,
		LogDir:          filepath.Dir(defaultLogFile),
		DebugLevel:      defaultLogLevel,
		MaxOrphanTx:     defaultMaxOrphanTx,
		InvBroadcastMax: defaultInvBroadcastMax,
	}

	preCfg := cfg
	preParser := flags.NewParser(&preCfg, flags.Default)
	_, err := preParser.Parse()
	if err != nil {
		if e, ok := err.(*flags.Error); !ok || e.Type != flags.ErrHelp {
			fmt.Fprintln(os.Stderr, err)
		}
		return nil, nil, err
	}

	if preCfg.ConfigFile != defaultConfigFile {
		cfg.ConfigFile = preCfg.ConfigFile
	}

	parser := flags.NewParser(&cfg, flags.Default)
	if err := flags.NewIniParser(parser).ParseFile(cfg.ConfigFile); err != nil {
		if _, ok := err.(*os.PathError); !ok {
			fmt.Fprintln(os.Stderr, err)
			return nil, nil, err
		}
	}

	remainingArgs, err := parser.Parse()
	if err != nil {
		if e, ok := err.(*flags.Error); !ok || e.Type != flags.ErrHelp {
			fmt.Fprintln(os.Stderr, err)
		}
		return nil, nil, err
	}

	return &cfg, remainingArgs, nil
}
