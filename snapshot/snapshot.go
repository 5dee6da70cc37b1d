// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2020 TradeLayer
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package snapshot - checkpoint the ledger state to disk
//
// every logical table is written in full to its own file per block,
// with a trailing integrity line; the watermark in the database only
// advances after every table of a block has been written, so a crash
// can never leave a half-persisted block looking consistent
package snapshot

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"

	"github.com/bitmark-inc/logger"

	"github.com/tradelayer/tradelayerd/fault"
	"github.com/tradelayer/tradelayerd/storage"
)

// Table - one logical state table persisted per block
type Table interface {
	Name() string
	Save(w io.Writer) error
	Restore(r io.Reader) error
	Reset()
}

// default retention policy
const (
	DefaultKeepRecent = 10
	DefaultKeepEvery  = 100
)

// Manager - writes and restores per-block snapshot files
type Manager struct {
	sync.Mutex

	log        *logger.L
	directory  string
	tables     []Table
	keepRecent int
	keepEvery  int
}

// NewManager - create a manager writing into one directory
func NewManager(directory string, keepRecent int, keepEvery int) (*Manager, error) {
	info, err := os.Stat(directory)
	if nil != err || !info.IsDir() {
		return nil, fault.InvalidSnapshotDir
	}
	if keepRecent <= 0 {
		keepRecent = DefaultKeepRecent
	}
	if keepEvery <= 0 {
		keepEvery = DefaultKeepEvery
	}
	return &Manager{
		log:        logger.New("snapshot"),
		directory:  directory,
		keepRecent: keepRecent,
		keepEvery:  keepEvery,
	}, nil
}

// Register - add a table to every future save/load
func (m *Manager) Register(table Table) {
	m.Lock()
	m.tables = append(m.tables, table)
	m.Unlock()
}

// file name: <table>-<height>-<blockHash>.dat
func (m *Manager) fileName(table string, height uint64, blockHash string) string {
	return filepath.Join(m.directory, fmt.Sprintf("%s-%010d-%s.dat", table, height, blockHash))
}

var fileNameRegexp = regexp.MustCompile(`^([a-z]+)-([0-9]{10})-([0-9a-f]+)\.dat$`)

// Save - write every table keyed by one block, then advance the watermark
func (m *Manager) Save(height uint64, blockHash string) error {
	m.Lock()
	defer m.Unlock()

	for _, table := range m.tables {
		err := m.saveTable(table, height, blockHash)
		if nil != err {
			m.log.Errorf("save table: %s at %d: %s", table.Name(), height, err)
			return err
		}
	}

	// all tables on disk, the state at this block is now recoverable
	storage.PutWatermark(height, blockHash)
	m.log.Infof("checkpoint written at height: %d block: %s", height, blockHash)

	m.prune(height)
	return nil
}

func (m *Manager) saveTable(table Table, height uint64, blockHash string) error {
	content := &bytes.Buffer{}
	err := table.Save(content)
	if nil != err {
		return err
	}

	name := m.fileName(table.Name(), height, blockHash)
	temporary := name + ".part"

	f, err := os.Create(temporary)
	if nil != err {
		return err
	}

	_, err = f.Write(content.Bytes())
	if nil == err {
		_, err = fmt.Fprintf(f, "!%s\n", hex.EncodeToString(sha256d(content.Bytes())))
	}
	if nil != err {
		f.Close()
		os.Remove(temporary)
		return err
	}
	err = f.Close()
	if nil != err {
		os.Remove(temporary)
		return err
	}
	return os.Rename(temporary, name)
}

// double SHA-256, for corruption detection only
func sha256d(content []byte) []byte {
	first := sha256.Sum256(content)
	second := sha256.Sum256(first[:])
	return second[:]
}

// candidate - one complete snapshot set on disk
type candidate struct {
	height    uint64
	blockHash string
}

// Load - restore the newest verifiable snapshot on the active chain
//
// candidates are tried from the watermark downward; a hash mismatch
// or missing table only disqualifies that candidate; if nothing
// verifies the caller must replay from genesis
func (m *Manager) Load(isActive func(height uint64, blockHash string) bool) (uint64, string, error) {
	m.Lock()
	defer m.Unlock()

	candidates, err := m.scan()
	if nil != err {
		return 0, "", err
	}

	for _, c := range candidates {
		if nil != isActive && !isActive(c.height, c.blockHash) {
			m.log.Warnf("snapshot at %d block: %s is off the active chain", c.height, c.blockHash)
			continue
		}
		err := m.restore(c)
		if nil == err {
			storage.PutWatermark(c.height, c.blockHash)
			m.log.Infof("restored snapshot at height: %d block: %s", c.height, c.blockHash)
			return c.height, c.blockHash, nil
		}
		m.log.Errorf("snapshot at %d block: %s unusable: %s", c.height, c.blockHash, err)
	}

	// no usable state: reset everything and signal a full replay
	for _, table := range m.tables {
		table.Reset()
	}
	return 0, "", fault.SnapshotNotFound
}

// list complete snapshot sets, newest first
func (m *Manager) scan() ([]candidate, error) {
	entries, err := ioutil.ReadDir(m.directory)
	if nil != err {
		return nil, err
	}

	found := make(map[candidate]map[string]bool)
	for _, entry := range entries {
		groups := fileNameRegexp.FindStringSubmatch(entry.Name())
		if nil == groups {
			continue
		}
		height, err := strconv.ParseUint(groups[2], 10, 64)
		if nil != err {
			continue
		}
		c := candidate{height: height, blockHash: groups[3]}
		if nil == found[c] {
			found[c] = make(map[string]bool)
		}
		found[c][groups[1]] = true
	}

	candidates := make([]candidate, 0, len(found))
scan_candidates:
	for c, tables := range found {
		for _, table := range m.tables {
			if !tables[table.Name()] {
				continue scan_candidates
			}
		}
		candidates = append(candidates, c)
	}
	sort.Slice(candidates, func(i int, j int) bool {
		return candidates[i].height > candidates[j].height
	})
	return candidates, nil
}

// verify and restore every table of one candidate
func (m *Manager) restore(c candidate) error {
	contents := make([][]byte, len(m.tables))
	for i, table := range m.tables {
		content, err := m.verifyFile(m.fileName(table.Name(), c.height, c.blockHash))
		if nil != err {
			return err
		}
		contents[i] = content
	}

	for i, table := range m.tables {
		err := table.Restore(bytes.NewReader(contents[i]))
		if nil != err {
			// partial restore must not survive
			for _, t := range m.tables {
				t.Reset()
			}
			return err
		}
	}
	return nil
}

// check the trailing integrity line and return the content above it
func (m *Manager) verifyFile(name string) ([]byte, error) {
	buffer, err := ioutil.ReadFile(name)
	if nil != err {
		return nil, err
	}

	// the integrity line is the final line: "!<64 hex digits>\n"
	trailer := bytes.LastIndexByte(buffer[:len(buffer)-trailingNewline(buffer)], '!')
	if trailer < 0 {
		return nil, fault.PersistenceCorruption
	}
	content := buffer[:trailer]
	line := bytes.TrimRight(buffer[trailer+1:], "\n")

	expected, err := hex.DecodeString(string(line))
	if nil != err || sha256.Size != len(expected) {
		return nil, fault.PersistenceCorruption
	}
	if !bytes.Equal(expected, sha256d(content)) {
		return nil, fault.PersistenceCorruption
	}
	return content, nil
}

func trailingNewline(buffer []byte) int {
	if 0 != len(buffer) && '\n' == buffer[len(buffer)-1] {
		return 1
	}
	return 0
}

// drop files outside the retention policy: the most recent blocks are
// all kept, older blocks only survive at every keepEvery-th height
func (m *Manager) prune(currentHeight uint64) {
	entries, err := ioutil.ReadDir(m.directory)
	if nil != err {
		m.log.Errorf("prune scan: %s", err)
		return
	}

	for _, entry := range entries {
		groups := fileNameRegexp.FindStringSubmatch(entry.Name())
		if nil == groups {
			continue
		}
		height, err := strconv.ParseUint(groups[2], 10, 64)
		if nil != err {
			continue
		}
		if height+uint64(m.keepRecent) > currentHeight {
			continue
		}
		if 0 == height%uint64(m.keepEvery) {
			continue
		}
		name := filepath.Join(m.directory, entry.Name())
		err = os.Remove(name)
		if nil != err {
			m.log.Errorf("prune: %s: %s", name, err)
		}
	}
}

// ReadTable - verified content of one stored table, for inspection
func (m *Manager) ReadTable(table string, height uint64, blockHash string) (io.Reader, error) {
	m.Lock()
	defer m.Unlock()

	content, err := m.verifyFile(m.fileName(table, height, blockHash))
	if nil != err {
		return nil, err
	}
	return bufio.NewReader(bytes.NewReader(content)), nil
}
