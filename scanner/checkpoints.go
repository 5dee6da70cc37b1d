// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2020 TradeLayer
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package scanner

import (
	"github.com/tradelayer/tradelayerd/chain"
)

// trusted consensus hashes: hex SHA3-256 of the whole ledger at
// specific heights; a node whose computed hash differs is not on
// protocol consensus and must stop rather than continue
//
// regtest has none: its history is locally generated
var trustedCheckpoints = map[string]map[uint64]string{
	chain.Main: {
		250000: "1c1e9a51b0b2986c21b8924e01c2928c3e0a5bdcdb4d7bd8c7b2b26a00a80a91",
		500000: "8a08dbdf4f427aaf500bea18616c04a65a9dfbda04dd1b4684d5fb56e0d51a02",
	},
	chain.Test: {
		100000: "7de3b31b1e4460d9da6a29c38ba4a49d8b1c6786de19c8d64f266a9ba0c91f3a",
	},
	chain.Regtest: {},
}
