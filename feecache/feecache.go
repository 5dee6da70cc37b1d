// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2020 TradeLayer
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package feecache - accumulated trading fees per property
//
// fees are part of consensus state: they are collected into the cache
// as trades apply and the cache is persisted with every snapshot
package feecache

import (
	"bufio"
	"bytes"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/bitmark-inc/logger"

	"github.com/tradelayer/tradelayerd/fault"
)

// Cache - per property fee accumulator
type Cache struct {
	sync.RWMutex

	log  *logger.L
	fees map[uint64]int64
}

// New - create an empty fee cache
func New() *Cache {
	return &Cache{
		log:  logger.New("feecache"),
		fees: make(map[uint64]int64),
	}
}

// Record - accumulate a collected fee
func (c *Cache) Record(propertyId uint64, amount int64) {
	if amount <= 0 {
		return
	}
	c.Lock()
	c.fees[propertyId] += amount
	c.Unlock()
	c.log.Debugf("property %d fee %d", propertyId, amount)
}

// Balance - accumulated fees of one property
func (c *Cache) Balance(propertyId uint64) int64 {
	c.RLock()
	defer c.RUnlock()
	return c.fees[propertyId]
}

// Name - snapshot table name
func (c *Cache) Name() string {
	return "fees"
}

// Save - write all fee balances, one line per property
func (c *Cache) Save(w io.Writer) error {
	c.RLock()
	defer c.RUnlock()

	ids := make([]uint64, 0, len(c.fees))
	for propertyId := range c.fees {
		ids = append(ids, propertyId)
	}
	sort.Slice(ids, func(i int, j int) bool { return ids[i] < ids[j] })

	buffer := &bytes.Buffer{}
	for _, propertyId := range ids {
		buffer.WriteString(strconv.FormatUint(propertyId, 10))
		buffer.WriteByte('=')
		buffer.WriteString(strconv.FormatInt(c.fees[propertyId], 10))
		buffer.WriteByte('\n')
	}
	_, err := w.Write(buffer.Bytes())
	return err
}

// Restore - replace the cache contents from a snapshot
func (c *Cache) Restore(r io.Reader) error {
	c.Lock()
	defer c.Unlock()

	c.fees = make(map[uint64]int64)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if "" == line {
			continue
		}
		eq := strings.IndexByte(line, '=')
		if eq <= 0 {
			return fault.PersistenceCorruption
		}
		propertyId, err := strconv.ParseUint(line[:eq], 10, 64)
		if nil != err {
			return fault.PersistenceCorruption
		}
		amount, err := strconv.ParseInt(line[eq+1:], 10, 64)
		if nil != err || amount <= 0 {
			return fault.PersistenceCorruption
		}
		c.fees[propertyId] = amount
	}
	return scanner.Err()
}

// Reset - drop all accumulated fees
func (c *Cache) Reset() {
	c.Lock()
	c.fees = make(map[uint64]int64)
	c.Unlock()
}
