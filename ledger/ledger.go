// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2020 TradeLayer
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ledger

import (
	"math"
	"sort"
	"sync"

	"github.com/bitmark-inc/logger"

	"github.com/tradelayer/tradelayerd/fault"
)

// BalanceType - the kind of balance within one ledger entry
type BalanceType int

// all balance types of a tally
// the order is part of the snapshot format and must not change
const (
	Balance BalanceType = iota
	SellOfferReserve
	AcceptReserve
	Pending
	MetadexReserve
	ContractdexReserve
	Unvested
	PositivePosition
	NegativePosition
	BalanceTypeCount
)

// String - balance type represented as a string
func (t BalanceType) String() string {
	switch t {
	case Balance:
		return "balance"
	case SellOfferReserve:
		return "sell-offer-reserve"
	case AcceptReserve:
		return "accept-reserve"
	case Pending:
		return "pending"
	case MetadexReserve:
		return "metadex-reserve"
	case ContractdexReserve:
		return "contractdex-reserve"
	case Unvested:
		return "unvested"
	case PositivePosition:
		return "positive-position"
	case NegativePosition:
		return "negative-position"
	default:
		return "*unknown*"
	}
}

// signed balance types may legitimately go below zero
func (t BalanceType) signed() bool {
	switch t {
	case Pending, PositivePosition, NegativePosition:
		return true
	default:
		return false
	}
}

// Tally - the per-property balances of one address
type Tally [BalanceTypeCount]int64

// an all-zero tally is not stored and not persisted
func (tally *Tally) isZero() bool {
	for _, value := range tally {
		if 0 != value {
			return false
		}
	}
	return true
}

// Ledger - address → property → balance-type store
//
// all mutation is serialized behind the embedded mutex; block order and
// in-block transaction order are semantically significant so callers
// must never interleave read-modify-write sequences across transactions
type Ledger struct {
	sync.RWMutex

	log     *logger.L
	tallies map[string]map[uint64]*Tally
}

// New - create an empty ledger
func New() *Ledger {
	return &Ledger{
		log:     logger.New("ledger"),
		tallies: make(map[string]map[uint64]*Tally),
	}
}

// GetBalance - fetch one balance; missing entries are zero
func (l *Ledger) GetBalance(address string, propertyId uint64, t BalanceType) int64 {
	if t < 0 || t >= BalanceTypeCount {
		return 0
	}

	l.RLock()
	defer l.RUnlock()

	properties, ok := l.tallies[address]
	if !ok {
		return 0
	}
	tally, ok := properties[propertyId]
	if !ok {
		return 0
	}
	return tally[t]
}

// Update - apply a single delta to one balance
//
// a zero delta is a caller error, not a silent no-op
func (l *Ledger) Update(address string, propertyId uint64, delta int64, t BalanceType) error {
	l.Lock()
	defer l.Unlock()
	return l.update(address, propertyId, delta, t)
}

// internal: must hold lock
func (l *Ledger) update(address string, propertyId uint64, delta int64, t BalanceType) error {
	if t < 0 || t >= BalanceTypeCount {
		return fault.InvalidReference
	}
	if 0 == delta {
		return fault.ZeroDeltaUpdate
	}

	current := int64(0)
	properties, ok := l.tallies[address]
	if ok {
		if tally, ok := properties[propertyId]; ok {
			current = tally[t]
		}
	}

	// 64 bit overflow/underflow
	if delta > 0 && current > math.MaxInt64-delta {
		return fault.BalanceOverflow
	}
	if delta < 0 && current < math.MinInt64-delta {
		return fault.BalanceOverflow
	}

	result := current + delta
	if result < 0 && !t.signed() {
		return fault.BalanceWouldGoNegative
	}

	if nil == properties {
		properties = make(map[uint64]*Tally)
		l.tallies[address] = properties
	}
	tally, ok := properties[propertyId]
	if !ok {
		tally = new(Tally)
		properties[propertyId] = tally
	}
	tally[t] = result

	// zero valued rows are not retained
	if tally.isZero() {
		delete(properties, propertyId)
		if 0 == len(properties) {
			delete(l.tallies, address)
		}
	}

	return nil
}

// Transfer - move an amount between two addresses for one (property, type)
//
// both legs are checked before either is applied so a failure leaves
// the ledger untouched; the two legs sum to zero by construction
func (l *Ledger) Transfer(from string, to string, propertyId uint64, amount int64, t BalanceType) error {
	if amount <= 0 {
		return fault.ZeroDeltaUpdate
	}

	l.Lock()
	defer l.Unlock()

	if l.balance(from, propertyId, t) < amount {
		return fault.InsufficientFunds
	}

	// transfer to self is a valid no-op on the stored values
	if from == to {
		return nil
	}

	err := l.update(from, propertyId, -amount, t)
	if nil != err {
		return err
	}
	err = l.update(to, propertyId, amount, t)
	if nil != err {
		// cannot happen short of 64 bit overflow on the credit leg;
		// restore the debit so the ledger stays conserved
		restoreError := l.update(from, propertyId, amount, t)
		if nil != restoreError {
			logger.Panicf("ledger: transfer rollback failed: %s", restoreError)
		}
		return err
	}
	return nil
}

// Move - shift an amount between two balance types of one address
// used for reserve and release operations
func (l *Ledger) Move(address string, propertyId uint64, amount int64, from BalanceType, to BalanceType) error {
	if amount <= 0 {
		return fault.ZeroDeltaUpdate
	}

	l.Lock()
	defer l.Unlock()

	if l.balance(address, propertyId, from) < amount {
		return fault.InsufficientFunds
	}

	err := l.update(address, propertyId, -amount, from)
	if nil != err {
		return err
	}
	err = l.update(address, propertyId, amount, to)
	if nil != err {
		restoreError := l.update(address, propertyId, amount, from)
		if nil != restoreError {
			logger.Panicf("ledger: move rollback failed: %s", restoreError)
		}
		return err
	}
	return nil
}

// internal: must hold lock
func (l *Ledger) balance(address string, propertyId uint64, t BalanceType) int64 {
	properties, ok := l.tallies[address]
	if !ok {
		return 0
	}
	tally, ok := properties[propertyId]
	if !ok {
		return 0
	}
	return tally[t]
}

// PropertiesOwned - sorted list of property ids for which the address
// holds a non-zero available balance
func (l *Ledger) PropertiesOwned(address string) []uint64 {
	l.RLock()
	defer l.RUnlock()

	properties, ok := l.tallies[address]
	if !ok {
		return nil
	}

	ids := make([]uint64, 0, len(properties))
	for propertyId, tally := range properties {
		if tally[Balance] > 0 {
			ids = append(ids, propertyId)
		}
	}
	sort.Slice(ids, func(i int, j int) bool { return ids[i] < ids[j] })
	return ids
}

// CirculatingSupply - sum of every balance type across all addresses
// used for elastic supply properties; fixed supply properties report
// the value recorded by the property registry at creation
func (l *Ledger) CirculatingSupply(propertyId uint64) int64 {
	l.RLock()
	defer l.RUnlock()

	total := int64(0)
	for _, properties := range l.tallies {
		if tally, ok := properties[propertyId]; ok {
			for _, value := range tally {
				total += value
			}
		}
	}
	return total
}
