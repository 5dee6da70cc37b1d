// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2020 TradeLayer
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package notify - operator visible event sink
//
// events are fanned out to registered listeners; repeated identical
// events inside the dedup window are dropped so a replayed alert or a
// re-announced activation does not spam the operator
package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/bitmark-inc/logger"
)

// EventKind - classification of one event
type EventKind int

const (
	AlertEvent EventKind = iota
	FeatureActivatedEvent
	CheckpointEvent
	ConsensusFailureEvent
)

// String - event kind represented as a string
func (k EventKind) String() string {
	switch k {
	case AlertEvent:
		return "alert"
	case FeatureActivatedEvent:
		return "feature-activated"
	case CheckpointEvent:
		return "checkpoint"
	case ConsensusFailureEvent:
		return "consensus-failure"
	default:
		return "*unknown*"
	}
}

// Event - one notification
type Event struct {
	Kind   EventKind
	Height uint64
	Value  uint64
	Text   string
}

// Listener - receives every non-duplicate event
type Listener func(event Event)

const (
	dedupWindow  = 10 * time.Minute
	sweepEvery   = time.Minute
	alertedUntil = cache.DefaultExpiration
)

// Sink - deduplicating event dispatcher
type Sink struct {
	sync.Mutex

	log       *logger.L
	seen      *cache.Cache
	listeners []Listener
}

// NewSink - create an empty sink
func NewSink() *Sink {
	return &Sink{
		log:  logger.New("notify"),
		seen: cache.New(dedupWindow, sweepEvery),
	}
}

// Subscribe - add a listener for all future events
func (s *Sink) Subscribe(listener Listener) {
	s.Lock()
	s.listeners = append(s.listeners, listener)
	s.Unlock()
}

// dispatch unless an identical event fired inside the window
func (s *Sink) publish(event Event) {
	key := fmt.Sprintf("%d|%d|%d|%s", event.Kind, event.Height, event.Value, event.Text)
	if _, duplicate := s.seen.Get(key); duplicate {
		return
	}
	s.seen.Set(key, struct{}{}, alertedUntil)

	s.Lock()
	listeners := s.listeners
	s.Unlock()

	s.log.Infof("%s: height: %d value: %d %s", event.Kind, event.Height, event.Value, event.Text)
	for _, listener := range listeners {
		listener(event)
	}
}

// Alert - an on-chain alert message
func (s *Sink) Alert(alertType uint64, expiryValue uint64, text string) {
	s.publish(Event{
		Kind:  AlertEvent,
		Value: expiryValue,
		Text:  text,
	})
}

// FeatureActivated - a consensus feature was scheduled
func (s *Sink) FeatureActivated(featureId uint64, activationHeight uint64) {
	s.publish(Event{
		Kind:   FeatureActivatedEvent,
		Height: activationHeight,
		Value:  featureId,
	})
}

// Checkpoint - a snapshot was written
func (s *Sink) Checkpoint(height uint64, blockHash string) {
	s.publish(Event{
		Kind:   CheckpointEvent,
		Height: height,
		Text:   blockHash,
	})
}

// ConsensusFailure - the ledger disagrees with a trusted checkpoint
func (s *Sink) ConsensusFailure(height uint64, detail string) {
	s.publish(Event{
		Kind:   ConsensusFailureEvent,
		Height: height,
		Text:   detail,
	})
}
