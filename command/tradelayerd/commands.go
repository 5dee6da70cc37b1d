// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2020 TradeLayer
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/tradelayer/tradelayerd/activation"
)

const sampleConfiguration = `-- tradelayerd.conf  -*- mode: lua -*-

local M = {}

-- all other directories and files are relative to this one
M.data_directory = "."

-- one of: main, test, regtest
M.chain = "main"

-- transaction result index
M.database = {
    directory = "data",
}

-- ledger snapshot retention
M.snapshot = {
    directory = "snapshots",
    keep_recent = 10,
    keep_every = 100,
    checkpoint_every = 10,
}

-- host chain node; a transaction index is required
M.host_chain = {
    url = "http://127.0.0.1:8332",
    username = "rpcuser",
    password = "rpcpass",
}

M.logging = {
    directory = "log",
    file = "tradelayerd.log",
    size = 1048576,
    count = 10,
    levels = {
        DEFAULT = "error",
        main = "info",
        scanner = "info",
    },
}

return M
`

// setup command handler
//
// commands that run before any internal database or state is opened;
// they cannot access the configuration file
func processSetupCommand(program string, arguments []string) bool {

	command := "help"
	if len(arguments) > 0 {
		command = arguments[0]
	}

	switch command {

	case "sample-config":
		fmt.Print(sampleConfiguration)

	case "version":
		fmt.Printf("%s\n", version)
		fmt.Printf("consensus client version: %d\n", activation.ClientVersion)

	case "help", "h", "?":
		fmt.Printf("usage: %s [--help] [--verbose] [--quiet] --config-file=FILE [[command|help] arguments...]\n", program)
		fmt.Printf("supported commands:\n\n")
		fmt.Printf("  help    (h)       - display this message\n\n")
		fmt.Printf("  version (v)       - display version then exit\n\n")
		fmt.Printf("  sample-config     - display a sample configuration file then exit\n\n")
		fmt.Printf("  start             - just run the daemon (the default)\n\n")

	case "start", "run", "daemon":
		// continue into the main program
		return false

	default:
		fmt.Printf("unknown command: %q\n", command)
		fmt.Printf("run: %s help  for a command list\n", program)
	}

	// indicate processing complete and prevent continuation of main
	return true
}
