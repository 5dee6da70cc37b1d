// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2020 TradeLayer
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package configuration - processing of the configuration file
//
// the configuration file is a Lua script that must return a single
// table holding all the settings; relative paths in the table are
// resolved against the data_directory entry
package configuration
