// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2020 TradeLayer
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ledger

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/tradelayer/tradelayerd/fault"
)

// Name - snapshot table name
func (l *Ledger) Name() string {
	return "balances"
}

// Save - write every non-zero tally as one delimited text line
//
// line format:  address=propertyId:v,v,v,v,v,v,v,v,v
// lines are emitted in sorted order so repeated saves of identical
// state are byte identical
func (l *Ledger) Save(w io.Writer) error {
	l.RLock()
	defer l.RUnlock()

	addresses := make([]string, 0, len(l.tallies))
	for address := range l.tallies {
		addresses = append(addresses, address)
	}
	sort.Strings(addresses)

	for _, address := range addresses {
		properties := l.tallies[address]

		ids := make([]uint64, 0, len(properties))
		for propertyId := range properties {
			ids = append(ids, propertyId)
		}
		sort.Slice(ids, func(i int, j int) bool { return ids[i] < ids[j] })

		for _, propertyId := range ids {
			tally := properties[propertyId]

			values := make([]string, BalanceTypeCount)
			for i, value := range tally {
				values[i] = strconv.FormatInt(value, 10)
			}

			_, err := fmt.Fprintf(w, "%s=%d:%s\n", address, propertyId, strings.Join(values, ","))
			if nil != err {
				return err
			}
		}
	}
	return nil
}

// Restore - replace ledger content from saved lines
func (l *Ledger) Restore(r io.Reader) error {
	l.Lock()
	defer l.Unlock()

	l.tallies = make(map[string]map[uint64]*Tally)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if "" == line {
			continue
		}

		eq := strings.IndexByte(line, '=')
		colon := strings.IndexByte(line, ':')
		if eq <= 0 || colon <= eq {
			return fault.PersistenceCorruption
		}

		address := line[:eq]
		propertyId, err := strconv.ParseUint(line[eq+1:colon], 10, 64)
		if nil != err {
			return fault.PersistenceCorruption
		}

		values := strings.Split(line[colon+1:], ",")
		if int(BalanceTypeCount) != len(values) {
			return fault.PersistenceCorruption
		}

		tally := new(Tally)
		for i, value := range values {
			tally[i], err = strconv.ParseInt(value, 10, 64)
			if nil != err {
				return fault.PersistenceCorruption
			}
		}
		if tally.isZero() {
			continue
		}

		properties, ok := l.tallies[address]
		if !ok {
			properties = make(map[uint64]*Tally)
			l.tallies[address] = properties
		}
		properties[propertyId] = tally
	}
	return scanner.Err()
}

// Reset - drop all ledger content
func (l *Ledger) Reset() {
	l.Lock()
	l.tallies = make(map[string]map[uint64]*Tally)
	l.Unlock()
}
