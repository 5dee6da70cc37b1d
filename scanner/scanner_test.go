// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2020 TradeLayer
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package scanner_test

import (
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tradelayer/tradelayerd/activation"
	"github.com/tradelayer/tradelayerd/chain"
	"github.com/tradelayer/tradelayerd/fault"
	"github.com/tradelayer/tradelayerd/fixtures"
	"github.com/tradelayer/tradelayerd/interpreter"
	"github.com/tradelayer/tradelayerd/ledger"
	"github.com/tradelayer/tradelayerd/message"
	"github.com/tradelayer/tradelayerd/mode"
	"github.com/tradelayer/tradelayerd/property"
	"github.com/tradelayer/tradelayerd/scanner"
	"github.com/tradelayer/tradelayerd/snapshot"
	"github.com/tradelayer/tradelayerd/storage"
)

const (
	databaseFileName = "scanner-test"
	snapshotDir      = "scanner-test-dir"

	issuer   = "mvayMZNrg4zhDsYyzn7B6mSnWuRzHVjmZW"
	receiver = "moQR7i8XM4rSGoNwEsw3h4YEuduuP6mxw7"
)

func removeFiles() {
	os.RemoveAll(databaseFileName + ".leveldb")
	os.RemoveAll(snapshotDir)
}

func TestMain(m *testing.M) {
	fixtures.SetupTestLogger()
	removeFiles()

	err := storage.Initialise(databaseFileName, storage.ReadWrite)
	if nil != err {
		panic(err)
	}
	err = mode.Initialise(chain.Regtest)
	if nil != err {
		panic(err)
	}

	rc := m.Run()

	mode.Finalise()
	storage.Finalise()
	removeFiles()
	fixtures.TeardownTestLogger()
	os.Exit(rc)
}

// deterministic per-chain block hash
func hashOf(branch string, height uint64) string {
	return fmt.Sprintf("%s%063x", branch, height)
}

// in-memory host chain
type fakeChain struct {
	branch  string
	blocks  map[uint64]*scanner.Block
	best    uint64
	onBlock func(height uint64)
}

func (c *fakeChain) BestHeight() (uint64, error) {
	return c.best, nil
}

func (c *fakeChain) BlockAt(height uint64) (*scanner.Block, error) {
	if nil != c.onBlock {
		c.onBlock(height)
	}
	block, ok := c.blocks[height]
	if !ok {
		return nil, fault.InvalidReference
	}
	return block, nil
}

func (c *fakeChain) IsActive(height uint64, blockHash string) bool {
	block, ok := c.blocks[height]
	return ok && height <= c.best && block.Hash == blockHash
}

func tagged(t *testing.T, m message.Message, txId string, from string, to string) message.Envelope {
	packed, err := m.Pack()
	assert.NoError(t, err, "pack")
	payload := append([]byte{}, message.PayloadMarker...)
	payload = append(payload, packed...)
	return message.Envelope{
		TxId:     txId,
		Sender:   from,
		Receiver: to,
		Payload:  payload,
	}
}

// a chain whose first block issues a property and every later block
// sends one token to the receiver
func buildChain(t *testing.T, branch string, tip uint64) *fakeChain {
	c := &fakeChain{
		branch: branch,
		blocks: make(map[uint64]*scanner.Block),
		best:   tip,
	}
	for height := uint64(0); height <= tip; height += 1 {
		block := &scanner.Block{
			Height: height,
			Hash:   hashOf(branch, height),
			Time:   1500000000 + int64(height),
		}
		switch height {
		case 0:
			// genesis carries nothing
		case 1:
			block.Transactions = []message.Envelope{
				tagged(t, &message.CreateFixedProperty{
					Ecosystem: message.EcosystemMain,
					Name:      "scanned token",
					Amount:    100000,
				}, fmt.Sprintf("%s-tx-%d", branch, height), issuer, ""),
				// untagged payloads are ignored
				{TxId: "noise", Sender: issuer, Payload: []byte{0x6e, 0x6f}},
			}
		default:
			block.Transactions = []message.Envelope{
				tagged(t, &message.SimpleSend{
					PropertyId: 3,
					Amount:     1,
				}, fmt.Sprintf("%s-tx-%d", branch, height), issuer, receiver),
			}
		}
		c.blocks[height] = block
	}
	return c
}

type world struct {
	ledger    *ledger.Ledger
	registry  *property.Registry
	gate      *activation.Gate
	snapshots *snapshot.Manager
	scanner   *scanner.Scanner
	client    *fakeChain
}

func newWorld(t *testing.T, client *fakeChain) *world {
	os.RemoveAll(snapshotDir)
	err := os.Mkdir(snapshotDir, 0700)
	assert.NoError(t, err, "mkdir")

	gate, err := activation.NewGate(chain.Regtest)
	assert.NoError(t, err, "new gate")

	w := &world{
		ledger:   ledger.New(),
		registry: property.NewRegistry(),
		gate:     gate,
		client:   client,
	}

	w.snapshots, err = snapshot.NewManager(snapshotDir, 5, 10)
	assert.NoError(t, err, "new manager")
	w.snapshots.Register(w.ledger)
	w.snapshots.Register(w.registry)
	w.snapshots.Register(property.CrowdsaleTable{Registry: w.registry})
	w.snapshots.Register(w.gate)

	interp := interpreter.New(w.ledger, w.registry, w.gate, nil, nil)
	w.scanner = scanner.New(client, interp, w.ledger, w.snapshots, nil, 10)
	return w
}

var neverShutdown = make(chan struct{})

func TestScanToTip(t *testing.T) {
	client := buildChain(t, "a", 20)
	w := newWorld(t, client)

	err := w.scanner.Recover()
	assert.NoError(t, err, "recover")
	err = w.scanner.Sync(neverShutdown)
	assert.NoError(t, err, "sync")

	assert.Equal(t, uint64(21), w.scanner.NextHeight(), "next height")
	assert.Equal(t, int64(19), w.ledger.GetBalance(receiver, 3, ledger.Balance), "receiver balance")
	assert.Equal(t, int64(99981), w.ledger.GetBalance(issuer, 3, ledger.Balance), "issuer balance")

	// a snapshot exists at the checkpoint heights
	height, _, found := storage.GetWatermark()
	assert.True(t, found, "watermark missing")
	assert.Equal(t, uint64(20), height, "watermark height")
}

func TestReorgRecovery(t *testing.T) {
	client := buildChain(t, "a", 120)
	w := newWorld(t, client)

	err := w.scanner.Recover()
	assert.NoError(t, err, "recover")
	err = w.scanner.Sync(neverShutdown)
	assert.NoError(t, err, "sync")
	assert.Equal(t, int64(119), w.ledger.GetBalance(receiver, 3, ledger.Balance), "balance before reorg")

	// reorganize: everything above height 105 is replaced by a fork
	// carrying no protocol transactions
	fork := buildChain(t, "a", 105)
	for height := uint64(106); height <= 125; height += 1 {
		fork.blocks[height] = &scanner.Block{
			Height: height,
			Hash:   hashOf("b", height),
			Time:   1500000000 + int64(height),
		}
	}
	fork.best = 125
	w.client.blocks = fork.blocks
	w.client.best = fork.best

	err = w.scanner.Sync(neverShutdown)
	assert.NoError(t, err, "sync after reorg")

	// snapshots exist at 100, 110, 120: only 100 is on the surviving
	// chain, so the replay starts at 101
	assert.Equal(t, uint64(126), w.scanner.NextHeight(), "next height after recovery")
	assert.Equal(t, int64(104), w.ledger.GetBalance(receiver, 3, ledger.Balance), "balance after recovery")
	assert.True(t, mode.Is(mode.Scanning), "not scanning after recovery")
}

func TestCheckpointMismatchIsFatal(t *testing.T) {
	client := buildChain(t, "a", 10)
	w := newWorld(t, client)

	w.scanner.SetTrustedCheckpoints(map[uint64]string{
		5: "0000000000000000000000000000000000000000000000000000000000000000",
	})

	err := w.scanner.Recover()
	assert.NoError(t, err, "recover")
	err = w.scanner.Sync(neverShutdown)
	assert.Equal(t, fault.CheckpointMismatch, err, "mismatch not fatal")
	assert.Equal(t, fault.CheckpointMismatch, w.scanner.FatalError(), "fatal error not recorded")
	assert.True(t, mode.Is(mode.Stopped), "node still running")

	mode.Set(mode.Scanning)
}

func TestScheduledStop(t *testing.T) {
	client := buildChain(t, "a", 20)
	w := newWorld(t, client)

	assert.NoError(t, w.scanner.Recover(), "recover")
	w.scanner.ScheduleStop(15)

	err := w.scanner.Sync(neverShutdown)
	assert.Equal(t, fault.ShuttingDown, err, "no scheduled stop")
	assert.Equal(t, uint64(15), w.scanner.NextHeight(), "stop height")
	assert.True(t, mode.Is(mode.Stopped), "node still running")

	mode.Set(mode.Scanning)
}

func TestShutdownBetweenTransactions(t *testing.T) {
	client := buildChain(t, "a", 10)
	w := newWorld(t, client)

	// the request arrives after block 1 is fetched but before any of
	// its transactions is applied
	shutdown := make(chan struct{})
	client.onBlock = func(height uint64) {
		if 1 == height {
			close(shutdown)
		}
	}

	assert.NoError(t, w.scanner.Recover(), "recover")
	assert.NoError(t, w.scanner.Sync(shutdown), "sync")

	// the partly scanned block is abandoned, not half applied
	assert.Equal(t, uint64(1), w.scanner.NextHeight(), "next height")
	assert.False(t, w.registry.IsValid(3), "issuance applied during shutdown")
}

func TestCheckpointMatchContinues(t *testing.T) {
	// compute the true consensus hash at height 5 by a first run,
	// then verify a second run against it
	probe := buildChain(t, "a", 5)
	probeWorld := newWorld(t, probe)
	assert.NoError(t, probeWorld.scanner.Recover(), "probe recover")
	assert.NoError(t, probeWorld.scanner.Sync(neverShutdown), "probe sync")
	digest := probeWorld.ledger.ConsensusHash()

	verified := newWorld(t, buildChain(t, "a", 10))
	verified.scanner.SetTrustedCheckpoints(map[uint64]string{
		5: fmt.Sprintf("%x", digest),
	})
	assert.NoError(t, verified.scanner.Recover(), "verified recover")
	assert.NoError(t, verified.scanner.Sync(neverShutdown), "verified sync")
	assert.Nil(t, verified.scanner.FatalError(), "unexpected fatal error")
}
