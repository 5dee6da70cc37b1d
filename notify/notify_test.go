// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2020 TradeLayer
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package notify_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tradelayer/tradelayerd/fixtures"
	"github.com/tradelayer/tradelayerd/notify"
)

func TestMain(m *testing.M) {
	fixtures.SetupTestLogger()
	rc := m.Run()
	fixtures.TeardownTestLogger()
	os.Exit(rc)
}

func TestDeduplication(t *testing.T) {
	s := notify.NewSink()

	received := []notify.Event(nil)
	s.Subscribe(func(event notify.Event) {
		received = append(received, event)
	})

	s.Alert(1, 300000, "update required")
	s.Alert(1, 300000, "update required")
	s.Alert(1, 300000, "update required")
	assert.Equal(t, 1, len(received), "duplicate alerts delivered")

	// a different alert passes
	s.Alert(1, 300001, "something else")
	assert.Equal(t, 2, len(received), "distinct alert dropped")
}

func TestEventKinds(t *testing.T) {
	s := notify.NewSink()

	received := []notify.Event(nil)
	s.Subscribe(func(event notify.Event) {
		received = append(received, event)
	})

	s.FeatureActivated(3, 504096)
	s.Checkpoint(120, "00aa")
	s.ConsensusFailure(130, "hash mismatch")

	assert.Equal(t, 3, len(received), "missing events")
	assert.Equal(t, notify.FeatureActivatedEvent, received[0].Kind, "kind")
	assert.Equal(t, uint64(504096), received[0].Height, "height")
	assert.Equal(t, notify.CheckpointEvent, received[1].Kind, "kind")
	assert.Equal(t, notify.ConsensusFailureEvent, received[2].Kind, "kind")
}

func TestMultipleListeners(t *testing.T) {
	s := notify.NewSink()

	first := 0
	second := 0
	s.Subscribe(func(event notify.Event) { first += 1 })
	s.Subscribe(func(event notify.Event) { second += 1 })

	s.Checkpoint(100, "00ff")
	assert.Equal(t, 1, first, "first listener")
	assert.Equal(t, 1, second, "second listener")
}
