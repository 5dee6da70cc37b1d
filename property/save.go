// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2020 TradeLayer
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package property

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/tradelayer/tradelayerd/fault"
)

// field count of one serialized property record
const recordFields = 19

// Name - snapshot table name
func (r *Registry) Name() string {
	return "properties"
}

// Save - write counters then every non-native record, sorted by id
//
// user supplied strings are hex encoded so the field separator can
// never occur inside them
func (r *Registry) Save(w io.Writer) error {
	r.RLock()
	defer r.RUnlock()

	_, err := fmt.Fprintf(w, "*=%d,%d\n", r.nextMain, r.nextTest)
	if nil != err {
		return err
	}

	ids := make([]uint64, 0, len(r.properties))
	for id, record := range r.properties {
		if Native != record.Class {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i int, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		p := r.properties[id]
		_, err = fmt.Fprintf(w, "%d|%d|%d|%d|%d|%d|%d|%d|%d|%d|%d|%d|%s|%s|%s|%s|%s|%s|%s\n",
			p.Id, p.Class, p.Ecosystem, p.PropertyType, p.PreviousPropertyId,
			p.FixedSupply, p.CreationBlock,
			p.ExpiryBlocks, p.NotionalSize, p.CollateralCurrency, p.MarginRequirement,
			p.ContractId, p.Issuer, p.CreationTxId,
			hex.EncodeToString([]byte(p.Category)),
			hex.EncodeToString([]byte(p.Subcategory)),
			hex.EncodeToString([]byte(p.Name)),
			hex.EncodeToString([]byte(p.URL)),
			hex.EncodeToString([]byte(p.Data)),
		)
		if nil != err {
			return err
		}
	}
	return nil
}

// Restore - replace registry content from saved lines
func (r *Registry) Restore(reader io.Reader) error {
	r.Lock()
	defer r.Unlock()

	r.reset()

	scanner := bufio.NewScanner(reader)
	sawCounters := false
	for scanner.Scan() {
		line := scanner.Text()
		if "" == line {
			continue
		}

		if strings.HasPrefix(line, "*=") {
			counters := strings.Split(line[2:], ",")
			if 2 != len(counters) {
				return fault.PersistenceCorruption
			}
			var err error
			r.nextMain, err = strconv.ParseUint(counters[0], 10, 64)
			if nil != err {
				return fault.PersistenceCorruption
			}
			r.nextTest, err = strconv.ParseUint(counters[1], 10, 64)
			if nil != err {
				return fault.PersistenceCorruption
			}
			sawCounters = true
			continue
		}

		record, err := parseRecord(line)
		if nil != err {
			return err
		}
		r.properties[record.Id] = record
	}
	if nil != scanner.Err() {
		return scanner.Err()
	}
	if !sawCounters {
		return fault.PersistenceCorruption
	}
	return nil
}

func parseRecord(line string) (*Record, error) {
	fields := strings.Split(line, "|")
	if recordFields != len(fields) {
		return nil, fault.PersistenceCorruption
	}

	numbers := make([]uint64, 12)
	for i := 0; i < 12; i += 1 {
		n, err := strconv.ParseUint(fields[i], 10, 64)
		if nil != err {
			return nil, fault.PersistenceCorruption
		}
		numbers[i] = n
	}

	strs := make([]string, 5)
	for i := 0; i < 5; i += 1 {
		decoded, err := hex.DecodeString(fields[14+i])
		if nil != err {
			return nil, fault.PersistenceCorruption
		}
		strs[i] = string(decoded)
	}

	return &Record{
		Id:                 numbers[0],
		Class:              Class(numbers[1]),
		Ecosystem:          numbers[2],
		PropertyType:       numbers[3],
		PreviousPropertyId: numbers[4],
		FixedSupply:        int64(numbers[5]),
		CreationBlock:      numbers[6],
		ExpiryBlocks:       numbers[7],
		NotionalSize:       numbers[8],
		CollateralCurrency: numbers[9],
		MarginRequirement:  numbers[10],
		ContractId:         numbers[11],
		Issuer:             fields[12],
		CreationTxId:       fields[13],
		Category:           strs[0],
		Subcategory:        strs[1],
		Name:               strs[2],
		URL:                strs[3],
		Data:               strs[4],
	}, nil
}

// Reset - drop all registrations, keeping only the native tokens
func (r *Registry) Reset() {
	r.Lock()
	r.reset()
	r.Unlock()
}

// CrowdsaleTable - snapshot table view of the registry's crowdsales
type CrowdsaleTable struct {
	Registry *Registry
}

// Name - snapshot table name
func (t CrowdsaleTable) Name() string {
	return "crowdsales"
}

// Save - one line per crowdsale, sorted by property id
func (t CrowdsaleTable) Save(w io.Writer) error {
	r := t.Registry
	r.RLock()
	defer r.RUnlock()

	ids := make([]uint64, 0, len(r.crowdsales))
	for id := range r.crowdsales {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i int, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		c := r.crowdsales[id]
		active := 0
		if c.Active {
			active = 1
		}
		_, err := fmt.Fprintf(w, "%d|%d|%d|%d|%d|%d|%d|%d\n",
			c.PropertyId, c.DesiredProperty, c.TokensPerUnit, c.Deadline,
			c.EarlyBonus, c.IssuerPercentage, c.AmountRaised, active)
		if nil != err {
			return err
		}
	}
	return nil
}

// Restore - replace crowdsale content from saved lines
func (t CrowdsaleTable) Restore(reader io.Reader) error {
	r := t.Registry
	r.Lock()
	defer r.Unlock()

	r.crowdsales = make(map[uint64]*CrowdsaleRecord)

	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		line := scanner.Text()
		if "" == line {
			continue
		}
		fields := strings.Split(line, "|")
		if 8 != len(fields) {
			return fault.PersistenceCorruption
		}
		numbers := make([]uint64, 8)
		for i, field := range fields {
			n, err := strconv.ParseUint(field, 10, 64)
			if nil != err {
				return fault.PersistenceCorruption
			}
			numbers[i] = n
		}
		r.crowdsales[numbers[0]] = &CrowdsaleRecord{
			PropertyId:       numbers[0],
			DesiredProperty:  numbers[1],
			TokensPerUnit:    numbers[2],
			Deadline:         numbers[3],
			EarlyBonus:       numbers[4],
			IssuerPercentage: numbers[5],
			AmountRaised:     int64(numbers[6]),
			Active:           1 == numbers[7],
		}
	}
	return scanner.Err()
}

// Reset - drop all crowdsales
func (t CrowdsaleTable) Reset() {
	r := t.Registry
	r.Lock()
	r.crowdsales = make(map[uint64]*CrowdsaleRecord)
	r.Unlock()
}
