// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2020 TradeLayer
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package snapshot_test

import (
	"bufio"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tradelayer/tradelayerd/fault"
	"github.com/tradelayer/tradelayerd/fixtures"
	"github.com/tradelayer/tradelayerd/snapshot"
	"github.com/tradelayer/tradelayerd/storage"
)

const (
	databaseFileName = "snapshot-test"
	snapshotDir      = "snapshot-test-dir"
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

	rc := m.Run()

	storage.Finalise()
	removeFiles()
	fixtures.TeardownTestLogger()
	os.Exit(rc)
}

// a trivial key→value table for driving the manager
type kvTable struct {
	name string
	data map[string]string
}

func newKvTable(name string) *kvTable {
	return &kvTable{name: name, data: make(map[string]string)}
}

func (t *kvTable) Name() string { return t.name }

func (t *kvTable) Save(w io.Writer) error {
	keys := make([]string, 0, len(t.data))
	for key := range t.data {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		_, err := fmt.Fprintf(w, "%s=%s\n", key, t.data[key])
		if nil != err {
			return err
		}
	}
	return nil
}

func (t *kvTable) Restore(r io.Reader) error {
	t.data = make(map[string]string)
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
		t.data[line[:eq]] = line[eq+1:]
	}
	return scanner.Err()
}

func (t *kvTable) Reset() {
	t.data = make(map[string]string)
}

func newManager(t *testing.T, tables ...snapshot.Table) *snapshot.Manager {
	os.RemoveAll(snapshotDir)
	err := os.Mkdir(snapshotDir, 0700)
	assert.NoError(t, err, "mkdir")

	m, err := snapshot.NewManager(snapshotDir, 5, 10)
	assert.NoError(t, err, "new manager")
	for _, table := range tables {
		m.Register(table)
	}
	return m
}

func blockHash(height uint64) string {
	return fmt.Sprintf("%064x", height)
}

func anyChain(height uint64, hash string) bool { return true }

func TestSaveLoadRoundTrip(t *testing.T) {
	table := newKvTable("balances")
	m := newManager(t, table)

	table.data["alice"] = "1000"
	table.data["bob"] = "250"

	err := m.Save(100, blockHash(100))
	assert.NoError(t, err, "save")

	height, hash, found := storage.GetWatermark()
	assert.True(t, found, "watermark missing")
	assert.Equal(t, uint64(100), height, "watermark height")
	assert.Equal(t, blockHash(100), hash, "watermark hash")

	// wipe the in-memory state, then restore from disk
	table.data["alice"] = "corrupted-in-memory"
	height, hash, err = m.Load(anyChain)
	assert.NoError(t, err, "load")
	assert.Equal(t, uint64(100), height, "loaded height")
	assert.Equal(t, blockHash(100), hash, "loaded hash")
	assert.Equal(t, "1000", table.data["alice"], "restored value")
	assert.Equal(t, "250", table.data["bob"], "restored value")
}

func TestLoadEmptyDirectory(t *testing.T) {
	table := newKvTable("balances")
	m := newManager(t, table)

	table.data["leftover"] = "state"
	_, _, err := m.Load(anyChain)
	assert.Equal(t, fault.SnapshotNotFound, err, "empty directory load")
	assert.Equal(t, 0, len(table.data), "tables not reset for full replay")
}

func TestCorruptionFallback(t *testing.T) {
	table := newKvTable("balances")
	m := newManager(t, table)

	table.data["alice"] = "100"
	assert.NoError(t, m.Save(100, blockHash(100)), "save 100")

	table.data["alice"] = "200"
	assert.NoError(t, m.Save(110, blockHash(110)), "save 110")

	// flip one byte of the newest snapshot file
	name := filepath.Join(snapshotDir, fmt.Sprintf("balances-%010d-%s.dat", 110, blockHash(110)))
	content, err := ioutil.ReadFile(name)
	assert.NoError(t, err, "read snapshot")
	content[0] ^= 0x01
	assert.NoError(t, ioutil.WriteFile(name, content, 0600), "write snapshot")

	height, _, err := m.Load(anyChain)
	assert.NoError(t, err, "load")
	assert.Equal(t, uint64(100), height, "did not fall back")
	assert.Equal(t, "100", table.data["alice"], "fell back to wrong content")
}

func TestReorgSelection(t *testing.T) {
	table := newKvTable("balances")
	m := newManager(t, table)

	for _, height := range []uint64{100, 110, 120} {
		table.data["tip"] = fmt.Sprintf("%d", height)
		assert.NoError(t, m.Save(height, blockHash(height)), "save")
	}

	// the chain above 105 was reorganized away
	onActiveChain := func(height uint64, hash string) bool {
		return height <= 105
	}

	height, _, err := m.Load(onActiveChain)
	assert.NoError(t, err, "load")
	assert.Equal(t, uint64(100), height, "wrong snapshot selected")
	assert.Equal(t, "100", table.data["tip"], "wrong content restored")
}

func TestMultipleTables(t *testing.T) {
	balances := newKvTable("balances")
	properties := newKvTable("properties")
	m := newManager(t, balances, properties)

	balances.data["alice"] = "1"
	properties.data["3"] = "token"
	assert.NoError(t, m.Save(100, blockHash(100)), "save")

	// remove one table's file: the set is incomplete and unusable
	name := filepath.Join(snapshotDir, fmt.Sprintf("properties-%010d-%s.dat", 100, blockHash(100)))
	assert.NoError(t, os.Remove(name), "remove")

	_, _, err := m.Load(anyChain)
	assert.Equal(t, fault.SnapshotNotFound, err, "incomplete set loaded")
}

func TestRetentionPruning(t *testing.T) {
	table := newKvTable("balances")
	m := newManager(t, table) // keepRecent 5, keepEvery 10

	for height := uint64(1); height <= 20; height += 1 {
		table.data["tip"] = fmt.Sprintf("%d", height)
		assert.NoError(t, m.Save(height, blockHash(height)), "save")
	}

	kept := make(map[uint64]bool)
	entries, err := ioutil.ReadDir(snapshotDir)
	assert.NoError(t, err, "read dir")
	for _, entry := range entries {
		parts := strings.Split(entry.Name(), "-")
		if 3 != len(parts) || "balances" != parts[0] {
			continue
		}
		height, err := strconv.ParseUint(parts[1], 10, 64)
		if nil == err {
			kept[height] = true
		}
	}

	// the last five heights survive, as does every tenth
	for _, height := range []uint64{16, 17, 18, 19, 20, 10} {
		assert.True(t, kept[height], "height %d pruned", height)
	}
	for _, height := range []uint64{1, 5, 11, 13} {
		assert.False(t, kept[height], "height %d kept", height)
	}
}
