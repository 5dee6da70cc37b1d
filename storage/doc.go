// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2020 TradeLayer
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package storage - maintain the on-disk data store
//
// maintains a single LevelDB database with a series of prefixed pools:
//
//	Transactions:
//	  key:    transaction id
//	  value:  processing result record
//
//	Watermark:
//	  key:    "current"
//	  value:  height ++ block hash of the last consistent snapshot
//
// The transaction pool is an inspection index only; consensus state
// lives in the snapshot files, not here.
package storage
