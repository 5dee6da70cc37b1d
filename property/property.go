// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2020 TradeLayer
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package property

import (
	"sync"

	"github.com/bitmark-inc/logger"

	"github.com/tradelayer/tradelayerd/fault"
	"github.com/tradelayer/tradelayerd/message"
)

// pre-mined native tokens and the allocation bases of the two ecosystems
const (
	NativeMain uint64 = 1 // ALL
	NativeTest uint64 = 2 // TALL

	firstMainId uint64 = 3
	firstTestId uint64 = (1 << 31) + 3
)

// Class - how a property issues supply
type Class int

const (
	Native Class = iota
	Fixed
	Managed
	Crowdsale
	Contract
	Pegged
)

// String - class represented as a string
func (c Class) String() string {
	switch c {
	case Native:
		return "native"
	case Fixed:
		return "fixed"
	case Managed:
		return "managed"
	case Crowdsale:
		return "crowdsale"
	case Contract:
		return "contract"
	case Pegged:
		return "pegged"
	default:
		return "*unknown*"
	}
}

// Record - one registered property
type Record struct {
	Id                 uint64
	Issuer             string
	Ecosystem          uint64
	PropertyType       uint64
	PreviousPropertyId uint64
	Category           string
	Subcategory        string
	Name               string
	URL                string
	Data               string
	Class              Class
	FixedSupply        int64
	CreationBlock      uint64
	CreationTxId       string

	// contract terms, zero unless Class == Contract
	ExpiryBlocks       uint64
	NotionalSize       uint64
	CollateralCurrency uint64
	MarginRequirement  uint64

	// backing contract, zero unless Class == Pegged
	ContractId uint64
}

// IsDivisible - whether amounts are interpreted with 8 decimal places
func (r *Record) IsDivisible() bool {
	return 2 == r.PropertyType
}

// IsManageable - whether grant/revoke/change-issuer apply
func (r *Record) IsManageable() bool {
	return Managed == r.Class
}

// CrowdsaleRecord - open variable-supply issuance
type CrowdsaleRecord struct {
	PropertyId       uint64
	DesiredProperty  uint64
	TokensPerUnit    uint64
	Deadline         uint64
	EarlyBonus       uint64
	IssuerPercentage uint64
	AmountRaised     int64
	Active           bool
}

// Registry - all registered properties of both ecosystems
//
// id allocation is sequential per ecosystem; a creation can be undone
// by popping every registration of its block, so counters stay in step
// with the records during reorg rollback
type Registry struct {
	sync.RWMutex

	log        *logger.L
	properties map[uint64]*Record
	crowdsales map[uint64]*CrowdsaleRecord
	nextMain   uint64
	nextTest   uint64
}

// NewRegistry - create a registry holding only the native tokens
func NewRegistry() *Registry {
	r := &Registry{
		log: logger.New("property"),
	}
	r.reset()
	return r
}

// internal: must hold lock
func (r *Registry) reset() {
	r.properties = map[uint64]*Record{
		NativeMain: {
			Id:           NativeMain,
			Ecosystem:    message.EcosystemMain,
			PropertyType: 2,
			Name:         "ALL",
			Class:        Native,
		},
		NativeTest: {
			Id:           NativeTest,
			Ecosystem:    message.EcosystemTest,
			PropertyType: 2,
			Name:         "TALL",
			Class:        Native,
		},
	}
	r.crowdsales = make(map[uint64]*CrowdsaleRecord)
	r.nextMain = firstMainId
	r.nextTest = firstTestId
}

// EcosystemOf - which ecosystem an id belongs to
func EcosystemOf(propertyId uint64) uint64 {
	if NativeTest == propertyId || propertyId >= firstTestId-2 {
		return message.EcosystemTest
	}
	return message.EcosystemMain
}

// Create - register a new property and return its allocated id
//
// the record's Id, CreationBlock and CreationTxId fields are assigned
// here; the caller fills in everything else
func (r *Registry) Create(record Record, height uint64, txId string) (uint64, error) {
	r.Lock()
	defer r.Unlock()

	var id uint64
	switch record.Ecosystem {
	case message.EcosystemMain:
		id = r.nextMain
	case message.EcosystemTest:
		id = r.nextTest
	default:
		return 0, fault.InvalidEcosystem
	}

	record.Id = id
	record.CreationBlock = height
	record.CreationTxId = txId
	r.properties[id] = &record

	if message.EcosystemMain == record.Ecosystem {
		r.nextMain += 1
	} else {
		r.nextTest += 1
	}

	r.log.Infof("created property: %d %q class: %s block: %d", id, record.Name, record.Class, height)
	return id, nil
}

// Get - fetch a copy of one property record
func (r *Registry) Get(propertyId uint64) (Record, error) {
	r.RLock()
	defer r.RUnlock()

	record, ok := r.properties[propertyId]
	if !ok {
		return Record{}, fault.InvalidReference
	}
	return *record, nil
}

// IsValid - whether an id refers to a registered property
func (r *Registry) IsValid(propertyId uint64) bool {
	r.RLock()
	_, ok := r.properties[propertyId]
	r.RUnlock()
	return ok
}

// ChangeIssuer - reassign issuance control of one property
func (r *Registry) ChangeIssuer(propertyId uint64, currentIssuer string, newIssuer string) error {
	r.Lock()
	defer r.Unlock()

	record, ok := r.properties[propertyId]
	if !ok {
		return fault.InvalidReference
	}
	if currentIssuer != record.Issuer {
		return fault.AuthorizationFailure
	}
	record.Issuer = newIssuer
	return nil
}

// OpenCrowdsale - attach an active crowdsale to a property
func (r *Registry) OpenCrowdsale(crowdsale CrowdsaleRecord) error {
	r.Lock()
	defer r.Unlock()

	if _, ok := r.properties[crowdsale.PropertyId]; !ok {
		return fault.InvalidReference
	}
	if existing, ok := r.crowdsales[crowdsale.PropertyId]; ok && existing.Active {
		return fault.CrowdsaleNotOpen
	}
	crowdsale.Active = true
	r.crowdsales[crowdsale.PropertyId] = &crowdsale
	return nil
}

// GetCrowdsale - fetch a copy of one crowdsale record
func (r *Registry) GetCrowdsale(propertyId uint64) (CrowdsaleRecord, error) {
	r.RLock()
	defer r.RUnlock()

	crowdsale, ok := r.crowdsales[propertyId]
	if !ok {
		return CrowdsaleRecord{}, fault.InvalidReference
	}
	return *crowdsale, nil
}

// FindCrowdsale - locate the open crowdsale of an issuer funded by the
// given property; a send of that property to the issuer participates
func (r *Registry) FindCrowdsale(issuer string, desiredProperty uint64) (uint64, bool) {
	r.RLock()
	defer r.RUnlock()

	for propertyId, crowdsale := range r.crowdsales {
		if !crowdsale.Active || desiredProperty != crowdsale.DesiredProperty {
			continue
		}
		record, ok := r.properties[propertyId]
		if ok && issuer == record.Issuer {
			return propertyId, true
		}
	}
	return 0, false
}

// CloseCrowdsale - deactivate an open crowdsale
func (r *Registry) CloseCrowdsale(propertyId uint64) error {
	r.Lock()
	defer r.Unlock()

	crowdsale, ok := r.crowdsales[propertyId]
	if !ok || !crowdsale.Active {
		return fault.CrowdsaleNotOpen
	}
	crowdsale.Active = false
	return nil
}

// AddRaised - accumulate participation into an open crowdsale
func (r *Registry) AddRaised(propertyId uint64, amount int64) error {
	r.Lock()
	defer r.Unlock()

	crowdsale, ok := r.crowdsales[propertyId]
	if !ok || !crowdsale.Active {
		return fault.CrowdsaleNotOpen
	}
	crowdsale.AmountRaised += amount
	return nil
}

// PopBlock - undo every registration made in one block
//
// the allocation counters step back with the removed records so a
// partially rolled back registry stays internally consistent
func (r *Registry) PopBlock(height uint64) []uint64 {
	r.Lock()
	defer r.Unlock()

	removed := []uint64(nil)
	for id, record := range r.properties {
		if Native != record.Class && height == record.CreationBlock {
			removed = append(removed, id)
		}
	}
	for _, id := range removed {
		delete(r.properties, id)
		delete(r.crowdsales, id)
	}

	r.nextMain = firstMainId
	r.nextTest = firstTestId
	for id, record := range r.properties {
		if Native == record.Class {
			continue
		}
		if message.EcosystemMain == record.Ecosystem && id >= r.nextMain {
			r.nextMain = id + 1
		}
		if message.EcosystemTest == record.Ecosystem && id >= r.nextTest {
			r.nextTest = id + 1
		}
	}

	if 0 != len(removed) {
		r.log.Infof("popped %d registrations of block: %d", len(removed), height)
	}
	return removed
}

// NextId - the id the next creation in an ecosystem would receive
func (r *Registry) NextId(ecosystem uint64) uint64 {
	r.RLock()
	defer r.RUnlock()

	if message.EcosystemTest == ecosystem {
		return r.nextTest
	}
	return r.nextMain
}

// Count - number of registered properties including the native tokens
func (r *Registry) Count() int {
	r.RLock()
	n := len(r.properties)
	r.RUnlock()
	return n
}
