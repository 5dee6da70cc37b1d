// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2020 TradeLayer
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package activation

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
func (g *Gate) Name() string {
	return "features"
}

// Save - one line per scheduled or live feature, sorted by id, then a
// tombstone line per emergency deactivation
//
// the default rule table is rebuilt from code on restore; only the
// on-chain mutations need to persist, and a deactivation is a mutation
// too: without its tombstone a restore would resurrect default-live
// message types the network has switched off
func (g *Gate) Save(w io.Writer) error {
	g.RLock()
	defer g.RUnlock()

	ids := make([]uint64, 0, len(g.features))
	for id := range g.features {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i int, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		feature := g.features[id]
		_, err := fmt.Fprintf(w, "%d|%d|%d\n", feature.FeatureId, feature.ActivationHeight, feature.MinClientVersion)
		if nil != err {
			return err
		}
	}

	dead := make([]uint64, 0, len(g.deactivated))
	for id := range g.deactivated {
		dead = append(dead, id)
	}
	sort.Slice(dead, func(i int, j int) bool { return dead[i] < dead[j] })

	for _, id := range dead {
		_, err := fmt.Fprintf(w, "%d|deactivated\n", id)
		if nil != err {
			return err
		}
	}
	return nil
}

// Restore - rebuild features and their rule adjustments from saved lines
func (g *Gate) Restore(reader io.Reader) error {
	g.Lock()
	defer g.Unlock()

	g.resetLocked()

	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		line := scanner.Text()
		if "" == line {
			continue
		}
		fields := strings.Split(line, "|")

		// a tombstone switches the feature's message types back off
		if 2 == len(fields) && "deactivated" == fields[1] {
			id, err := strconv.ParseUint(fields[0], 10, 64)
			if nil != err {
				return fault.PersistenceCorruption
			}
			tags, ok := featureTags[id]
			if !ok {
				return fault.PersistenceCorruption
			}
			delete(g.features, id)
			g.deactivated[id] = true
			for _, tag := range tags {
				delete(g.rules, ruleKey{tag, 0})
			}
			continue
		}

		if 3 != len(fields) {
			return fault.PersistenceCorruption
		}
		numbers := make([]uint64, 3)
		for i, field := range fields {
			n, err := strconv.ParseUint(field, 10, 64)
			if nil != err {
				return fault.PersistenceCorruption
			}
			numbers[i] = n
		}

		tags, ok := featureTags[numbers[0]]
		if !ok {
			return fault.PersistenceCorruption
		}

		g.features[numbers[0]] = &Feature{
			FeatureId:        numbers[0],
			ActivationHeight: numbers[1],
			MinClientVersion: numbers[2],
		}
		for _, tag := range tags {
			key := ruleKey{tag, 0}
			rule := g.rules[key]
			rule.ActivationHeight = numbers[1]
			g.rules[key] = rule
		}
	}
	return scanner.Err()
}

// Reset - drop all feature mutations, restoring the default table
func (g *Gate) Reset() {
	g.Lock()
	g.resetLocked()
	g.Unlock()
}

func (g *Gate) resetLocked() {
	defaults := defaultRules[g.chain]
	g.rules = make(map[ruleKey]Rule, len(defaults))
	for key, rule := range defaults {
		g.rules[key] = rule
	}
	g.features = make(map[uint64]*Feature)
	g.deactivated = make(map[uint64]bool)
}
