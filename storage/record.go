// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2020 TradeLayer
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"encoding/binary"
)

// TxResult - outcome of interpreting one transaction
//
// recorded for later inspection; a rejection here never aborts the
// scan of the remaining block
type TxResult struct {
	Height uint64
	Tag    uint64
	Valid  bool
	Reason string
}

// RecordTxResult - store the outcome of one transaction
func RecordTxResult(txId string, result TxResult) {
	buffer := make([]byte, 17, 17+len(result.Reason))
	binary.BigEndian.PutUint64(buffer[0:8], result.Height)
	binary.BigEndian.PutUint64(buffer[8:16], result.Tag)
	if result.Valid {
		buffer[16] = 1
	}
	buffer = append(buffer, result.Reason...)
	Pool.Transactions.Put([]byte(txId), buffer)
}

// GetTxResult - fetch the outcome of one transaction
func GetTxResult(txId string) (TxResult, bool) {
	buffer := Pool.Transactions.Get([]byte(txId))
	if nil == buffer || len(buffer) < 17 {
		return TxResult{}, false
	}
	return TxResult{
		Height: binary.BigEndian.Uint64(buffer[0:8]),
		Tag:    binary.BigEndian.Uint64(buffer[8:16]),
		Valid:  1 == buffer[16],
		Reason: string(buffer[17:]),
	}, true
}

var watermarkKey = []byte("current")

// PutWatermark - advance the persisted watermark
//
// only called after every snapshot table of the block has been
// written successfully
func PutWatermark(height uint64, blockHash string) {
	buffer := make([]byte, 8, 8+len(blockHash))
	binary.BigEndian.PutUint64(buffer, height)
	buffer = append(buffer, blockHash...)
	Pool.Watermark.Put(watermarkKey, buffer)
}

// GetWatermark - read the persisted watermark
func GetWatermark() (uint64, string, bool) {
	height, hash := Pool.Watermark.GetNB(watermarkKey)
	if nil == hash {
		return 0, "", false
	}
	return height, string(hash), true
}
