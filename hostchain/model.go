// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2020 TradeLayer
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package hostchain

// subset of the verbose block and transaction replies
// the JSON unmarshaller ignores excess fields

type scriptPubKey struct {
	Hex       string   `json:"hex"`
	Type      string   `json:"type"`
	Addresses []string `json:"addresses"`
}

type vin struct {
	TxID string `json:"txid"`
	Vout uint32 `json:"vout"`
}

type vout struct {
	N            uint32       `json:"n"`
	ScriptPubKey scriptPubKey `json:"scriptPubKey"`
}

type transaction struct {
	TxID string `json:"txid"`
	Vin  []vin  `json:"vin"`
	Vout []vout `json:"vout"`
}

type block struct {
	Hash              string        `json:"hash"`
	Confirmations     int64         `json:"confirmations"`
	Height            uint64        `json:"height"`
	Tx                []transaction `json:"tx"`
	Time              int64         `json:"time"`
	PreviousBlockHash string        `json:"previousblockhash"`
	NextBlockHash     string        `json:"nextblockhash"`
}

type chainInfo struct {
	Chain  string `json:"chain"`
	Blocks uint64 `json:"blocks"`
	Hash   string `json:"bestblockhash"`
}
