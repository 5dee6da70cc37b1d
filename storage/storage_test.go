// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2020 TradeLayer
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage_test

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tradelayer/tradelayerd/fixtures"
	"github.com/tradelayer/tradelayerd/storage"
)

// test database file
const databaseFileName = "test"

func removeFiles() {
	os.RemoveAll(databaseFileName + ".leveldb")
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

func TestPutGetDelete(t *testing.T) {
	p := storage.Pool.TestData

	key := []byte("some-key")
	value := []byte("some-value")

	p.Put(key, value)
	assert.True(t, p.Has(key), "missing key")
	assert.True(t, bytes.Equal(value, p.Get(key)), "wrong value")

	p.Delete(key)
	assert.False(t, p.Has(key), "key not deleted")
	assert.Nil(t, p.Get(key), "deleted key has value")
}

func TestPutNGetN(t *testing.T) {
	p := storage.Pool.TestData

	key := []byte("counter")
	p.PutN(key, 123456789)

	n, found := p.GetN(key)
	assert.True(t, found, "missing record")
	assert.Equal(t, uint64(123456789), n, "wrong value")

	_, found = p.GetN([]byte("/nonexistent"))
	assert.False(t, found, "nonexistent key found")

	p.Delete(key)
}

func TestCursorMap(t *testing.T) {
	p := storage.Pool.TestData

	items := map[string]string{
		"key-1": "one",
		"key-2": "two",
		"key-3": "three",
	}
	for key, value := range items {
		p.Put([]byte(key), []byte(value))
	}

	seen := make(map[string]string)
	err := p.NewFetchCursor().Map(func(key []byte, value []byte) error {
		seen[string(key)] = string(value)
		return nil
	})
	assert.NoError(t, err, "map")
	assert.Equal(t, items, seen, "wrong elements")

	for key := range items {
		p.Delete([]byte(key))
	}
}

func TestTxResultRecord(t *testing.T) {
	storage.RecordTxResult("txid-1", storage.TxResult{
		Height: 1000,
		Tag:    50,
		Valid:  true,
	})
	storage.RecordTxResult("txid-2", storage.TxResult{
		Height: 1001,
		Tag:    0,
		Valid:  false,
		Reason: "insufficient funds",
	})

	result, found := storage.GetTxResult("txid-1")
	assert.True(t, found, "missing result")
	assert.True(t, result.Valid, "valid recorded as invalid")
	assert.Equal(t, uint64(1000), result.Height, "height")

	result, found = storage.GetTxResult("txid-2")
	assert.True(t, found, "missing result")
	assert.False(t, result.Valid, "invalid recorded as valid")
	assert.Equal(t, "insufficient funds", result.Reason, "reason")

	_, found = storage.GetTxResult("no-such-txid")
	assert.False(t, found, "nonexistent txid found")
}

func TestWatermark(t *testing.T) {
	_, _, found := storage.GetWatermark()
	assert.False(t, found, "fresh database has a watermark")

	storage.PutWatermark(120, "00000000000000000000000000000000000000000000000000000000000000aa")

	height, hash, found := storage.GetWatermark()
	assert.True(t, found, "missing watermark")
	assert.Equal(t, uint64(120), height, "height")
	assert.Equal(t, "00000000000000000000000000000000000000000000000000000000000000aa", hash, "hash")
}
