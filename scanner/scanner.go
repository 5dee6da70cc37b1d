// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2020 TradeLayer
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package scanner - drive host chain blocks through the interpreter
//
// blocks are processed strictly in height order; a snapshot is only
// written after every transaction of its block has been applied, and
// a chain reorganization rolls the state back to the newest snapshot
// still on the active chain before replaying forward
package scanner

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/bitmark-inc/logger"

	"github.com/tradelayer/tradelayerd/fault"
	"github.com/tradelayer/tradelayerd/interpreter"
	"github.com/tradelayer/tradelayerd/ledger"
	"github.com/tradelayer/tradelayerd/message"
	"github.com/tradelayer/tradelayerd/mode"
	"github.com/tradelayer/tradelayerd/snapshot"
)

// Block - one host chain block with its tagged transactions
type Block struct {
	Height       uint64
	Hash         string
	Time         int64
	Transactions []message.Envelope
}

// ChainClient - host chain access
type ChainClient interface {
	BestHeight() (uint64, error)
	BlockAt(height uint64) (*Block, error)
	IsActive(height uint64, blockHash string) bool
}

// Notifier - sink for checkpoint and failure events
type Notifier interface {
	Checkpoint(height uint64, blockHash string)
	ConsensusFailure(height uint64, detail string)
}

// default number of blocks between snapshots
const DefaultCheckpointEvery = 10

// polling interval when the tip has been reached
const idlePoll = 5 * time.Second

// Scanner - the block processing loop
type Scanner struct {
	log         *logger.L
	client      ChainClient
	interpreter *interpreter.Interpreter
	ledger      *ledger.Ledger
	snapshots   *snapshot.Manager
	notifier    Notifier
	checkpoints map[uint64]string
	every       uint64

	nextHeight  uint64
	lastHash    string
	replayUntil uint64
	stopHeight  uint64
	fatalError  error
}

// New - build a scanner over the processing pipeline
//
// trusted checkpoints default to the built-in table of the active
// chain; notifier may be nil
func New(client ChainClient, interp *interpreter.Interpreter, l *ledger.Ledger, snapshots *snapshot.Manager, notifier Notifier, checkpointEvery uint64) *Scanner {
	if 0 == checkpointEvery {
		checkpointEvery = DefaultCheckpointEvery
	}
	return &Scanner{
		log:         logger.New("scanner"),
		client:      client,
		interpreter: interp,
		ledger:      l,
		snapshots:   snapshots,
		notifier:    notifier,
		checkpoints: trustedCheckpoints[mode.ChainName()],
		every:       checkpointEvery,
	}
}

// SetTrustedCheckpoints - replace the built-in checkpoint table
func (s *Scanner) SetTrustedCheckpoints(checkpoints map[uint64]string) {
	s.checkpoints = checkpoints
}

// ScheduleStop - arrange a halt before the given height is processed
//
// used when a feature activation requires a newer client version:
// scanning continues up to the activation boundary and stops there
func (s *Scanner) ScheduleStop(height uint64) {
	s.stopHeight = height
	s.log.Criticalf("shutdown scheduled before height: %d", height)
}

// FatalError - the error that stopped the scanner, if any
func (s *Scanner) FatalError() error {
	return s.fatalError
}

// NextHeight - the height the scanner will process next
func (s *Scanner) NextHeight() uint64 {
	return s.nextHeight
}

// Recover - restore the newest usable snapshot and arm a replay
//
// used at startup and on a reorg notification; on success scanning
// resumes from the block after the restored one, on SnapshotNotFound
// the whole history is replayed from genesis
func (s *Scanner) Recover() error {
	mode.Set(mode.RecoveringFromReorg)

	height, blockHash, err := s.snapshots.Load(s.client.IsActive)
	switch err {
	case nil:
		s.nextHeight = height + 1
		s.lastHash = blockHash
		s.log.Warnf("recovered snapshot at height: %d, replaying forward", height)
	case fault.SnapshotNotFound:
		s.nextHeight = 0
		s.lastHash = ""
		s.log.Warn("no usable snapshot, full replay from genesis")
	default:
		mode.Set(mode.Stopped)
		return err
	}

	best, err := s.client.BestHeight()
	if nil != err {
		mode.Set(mode.Stopped)
		return err
	}
	s.replayUntil = best
	s.interpreter.SetReplaying(true)

	mode.Set(mode.Scanning)
	return nil
}

// Sync - process blocks until the current tip or a shutdown request
//
// safe to call repeatedly; returns without error when the tip is
// reached, with CheckpointMismatch when the node must stop
func (s *Scanner) Sync(shutdown <-chan struct{}) error {
	best, err := s.client.BestHeight()
	if nil != err {
		return err
	}

	for s.nextHeight <= best {
		// cooperative shutdown between blocks
		select {
		case <-shutdown:
			return nil
		default:
		}

		if 0 != s.stopHeight && s.nextHeight >= s.stopHeight {
			s.log.Criticalf("stopping before height: %d, client upgrade required", s.stopHeight)
			s.fatalError = fault.ShuttingDown
			mode.Set(mode.Stopped)
			return fault.ShuttingDown
		}

		// a vanished ancestor means the chain reorganized under us
		if "" != s.lastHash && !s.client.IsActive(s.nextHeight-1, s.lastHash) {
			s.log.Warnf("reorg detected above height: %d", s.nextHeight-1)
			err = s.Recover()
			if nil != err {
				return err
			}
			best, err = s.client.BestHeight()
			if nil != err {
				return err
			}
			continue
		}

		block, err := s.client.BlockAt(s.nextHeight)
		if nil != err {
			return err
		}

		err = s.processBlock(block, shutdown)
		if nil != err {
			return err
		}

		if s.nextHeight > s.replayUntil {
			s.interpreter.SetReplaying(false)
		}
	}
	return nil
}

// apply one block then run the checkpoint policy
func (s *Scanner) processBlock(block *Block, shutdown <-chan struct{}) error {
	for t := range block.Transactions {
		// cooperative shutdown between transactions too; the partly
		// applied block is abandoned, a snapshot only happens below
		// once every transaction is in
		select {
		case <-shutdown:
			s.log.Warnf("shutdown inside block: %d", block.Height)
			return nil
		default:
		}

		env := &block.Transactions[t]

		// only marker tagged payloads belong to this protocol
		if !bytes.HasPrefix(env.Payload, message.PayloadMarker) {
			continue
		}
		stripped := *env
		stripped.Payload = env.Payload[len(message.PayloadMarker):]
		stripped.Height = block.Height
		stripped.BlockTime = block.Time

		// rejections are recorded by the interpreter and do not
		// stop the block
		_ = s.interpreter.Process(&stripped)
	}

	s.nextHeight = block.Height + 1
	s.lastHash = block.Hash

	if trusted, ok := s.checkpoints[block.Height]; ok {
		digest := s.ledger.ConsensusHash()
		computed := hex.EncodeToString(digest[:])
		if computed != trusted {
			detail := fmt.Sprintf("height %d computed %s expected %s", block.Height, computed, trusted)
			s.log.Criticalf("consensus checkpoint mismatch: %s", detail)
			if nil != s.notifier {
				s.notifier.ConsensusFailure(block.Height, detail)
			}
			s.fatalError = fault.CheckpointMismatch
			mode.Set(mode.Stopped)
			return fault.CheckpointMismatch
		}
		s.log.Infof("consensus checkpoint verified at height: %d", block.Height)
	}

	if 0 == block.Height%s.every {
		err := s.snapshots.Save(block.Height, block.Hash)
		if nil != err {
			return err
		}
		if nil != s.notifier {
			s.notifier.Checkpoint(block.Height, block.Hash)
		}
	}
	return nil
}

// Run - background process loop
func (s *Scanner) Run(args interface{}, shutdown <-chan struct{}) {
	s.log.Info("starting…")

loop:
	for {
		select {
		case <-shutdown:
			break loop
		case <-time.After(idlePoll):
		}
		if mode.Is(mode.Stopped) {
			break loop
		}

		err := s.Sync(shutdown)
		if nil != err {
			s.log.Errorf("sync: %s", err)
			if fault.CheckpointMismatch == err {
				break loop
			}
		}
	}
	s.log.Info("stopped")
}
