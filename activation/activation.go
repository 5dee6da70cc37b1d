// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2020 TradeLayer
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package activation - the consensus gate
//
// every message type/version pair has a per-chain activation height;
// features move those heights through on-chain activation messages
// sent by an authorized address
package activation

import (
	"sync"

	"github.com/bitmark-inc/logger"

	"github.com/tradelayer/tradelayerd/fault"
	"github.com/tradelayer/tradelayerd/message"
)

type ruleKey struct {
	tag     message.TagType
	version uint64
}

// Rule - activation state of one (type, version) pair
type Rule struct {
	AllowZeroProperty bool
	ActivationHeight  uint64
}

// Feature - one scheduled or live feature activation
type Feature struct {
	FeatureId        uint64
	ActivationHeight uint64
	MinClientVersion uint64
}

// Gate - the consensus rule table of one chain profile
type Gate struct {
	sync.RWMutex

	log         *logger.L
	chain       string
	window      noticeWindow
	rules       map[ruleKey]Rule
	features    map[uint64]*Feature
	deactivated map[uint64]bool
	shutdown    func(activationHeight uint64)
}

// NewGate - build the gate for one chain profile
func NewGate(chainName string) (*Gate, error) {
	defaults, ok := defaultRules[chainName]
	if !ok {
		return nil, fault.InvalidChain
	}

	g := &Gate{
		log:         logger.New("activation"),
		chain:       chainName,
		window:      noticeWindows[chainName],
		rules:       make(map[ruleKey]Rule, len(defaults)),
		features:    make(map[uint64]*Feature),
		deactivated: make(map[uint64]bool),
	}
	for key, rule := range defaults {
		g.rules[key] = rule
	}
	return g, nil
}

// SetShutdownHandler - callback invoked when an activation demands a
// newer client than this build; receives the activation height at
// which the node must stop
func (g *Gate) SetShutdownHandler(f func(activationHeight uint64)) {
	g.Lock()
	g.shutdown = f
	g.Unlock()
}

// IsAllowed - whether a (type, version) pair is live at a height
func (g *Gate) IsAllowed(height uint64, tag message.TagType, version uint64) bool {
	g.RLock()
	rule, ok := g.rules[ruleKey{tag, version}]
	g.RUnlock()
	return ok && rule.ActivationHeight <= height
}

// AllowsZeroProperty - whether a live pair may omit the property id
func (g *Gate) AllowsZeroProperty(tag message.TagType, version uint64) bool {
	g.RLock()
	rule, ok := g.rules[ruleKey{tag, version}]
	g.RUnlock()
	return ok && rule.AllowZeroProperty
}

// IsFeatureActive - whether a feature is live at a height
func (g *Gate) IsFeatureActive(featureId uint64, height uint64) bool {
	g.RLock()
	feature, ok := g.features[featureId]
	g.RUnlock()
	return ok && feature.ActivationHeight <= height
}

// IsAuthorized - whether an address may send activation/alert messages
func (g *Gate) IsAuthorized(sender string) bool {
	for _, authorized := range authorizedSenders[g.chain] {
		if "*" == authorized || sender == authorized {
			return true
		}
	}
	return false
}

// ActivateFeature - schedule a feature to go live
//
// the activation height must give the network notice within the
// chain's window, except when replaying already confirmed history; a
// declared minimum client version above this build only warns and
// schedules a stop at the activation height, the activation itself is
// always recorded
func (g *Gate) ActivateFeature(featureId uint64, activationHeight uint64, minClientVersion uint64, currentHeight uint64, replaying bool) error {
	tags, ok := featureTags[featureId]
	if !ok {
		return fault.FeatureUnknown
	}

	g.Lock()
	defer g.Unlock()

	if feature, ok := g.features[featureId]; ok && feature.ActivationHeight <= currentHeight {
		return fault.FeatureAlreadyActive
	}

	if !replaying {
		if activationHeight < currentHeight+g.window.min {
			return fault.NoticePeriodTooShort
		}
		if activationHeight > currentHeight+g.window.max {
			return fault.NoticePeriodTooLong
		}
	}

	delete(g.deactivated, featureId)
	g.features[featureId] = &Feature{
		FeatureId:        featureId,
		ActivationHeight: activationHeight,
		MinClientVersion: minClientVersion,
	}
	for _, tag := range tags {
		key := ruleKey{tag, 0}
		rule := g.rules[key]
		rule.ActivationHeight = activationHeight
		g.rules[key] = rule
	}

	g.log.Warnf("feature %d activates at height %d (min client %d)", featureId, activationHeight, minClientVersion)

	if minClientVersion > ClientVersion && nil != g.shutdown {
		g.log.Criticalf("feature %d requires client %d, this build is %d: shutdown scheduled at height %d",
			featureId, minClientVersion, ClientVersion, activationHeight)
		g.shutdown(activationHeight)
	}
	return nil
}

// DeactivateFeature - emergency disable, immediate and without notice
func (g *Gate) DeactivateFeature(featureId uint64, currentHeight uint64) error {
	tags, ok := featureTags[featureId]
	if !ok {
		return fault.FeatureUnknown
	}

	g.Lock()
	defer g.Unlock()

	feature, ok := g.features[featureId]
	if !ok || feature.ActivationHeight > currentHeight {
		return fault.FeatureNotActive
	}

	delete(g.features, featureId)
	g.deactivated[featureId] = true
	for _, tag := range tags {
		delete(g.rules, ruleKey{tag, 0})
	}

	g.log.Criticalf("feature %d deactivated at height %d", featureId, currentHeight)
	return nil
}
