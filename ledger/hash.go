// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2020 TradeLayer
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ledger

import (
	"fmt"
	"sort"

	"golang.org/x/crypto/sha3"
)

// ConsensusHash - deterministic digest of the whole ledger
//
// used to compare local state against trusted checkpoints; any
// divergence means the node is no longer on protocol consensus
func (l *Ledger) ConsensusHash() [32]byte {
	l.RLock()
	defer l.RUnlock()

	addresses := make([]string, 0, len(l.tallies))
	for address := range l.tallies {
		addresses = append(addresses, address)
	}
	sort.Strings(addresses)

	h := sha3.New256()
	for _, address := range addresses {
		properties := l.tallies[address]

		ids := make([]uint64, 0, len(properties))
		for propertyId := range properties {
			ids = append(ids, propertyId)
		}
		sort.Slice(ids, func(i int, j int) bool { return ids[i] < ids[j] })

		for _, propertyId := range ids {
			tally := properties[propertyId]
			fmt.Fprintf(h, "%s|%d", address, propertyId)
			for _, value := range tally {
				fmt.Fprintf(h, "|%d", value)
			}
			h.Write([]byte{'\n'})
		}
	}

	var digest [32]byte
	copy(digest[:], h.Sum(nil))
	return digest
}
