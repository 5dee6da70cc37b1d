// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2020 TradeLayer
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package hostchain - JSON-RPC access to the host chain node
//
// the node must run with a transaction index so the sending address of
// an embedded message can be resolved from the spent output of its
// first input
package hostchain

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"sync"

	"github.com/bitmark-inc/logger"

	"github.com/tradelayer/tradelayerd/configuration"
	"github.com/tradelayer/tradelayerd/fault"
	"github.com/tradelayer/tradelayerd/message"
	"github.com/tradelayer/tradelayerd/scanner"
)

// script opcodes needed to unwrap an OP_RETURN data push
const (
	opReturn    = 0x6a
	opPushData1 = 0x4c
	opPushData2 = 0x4d
	opPushData4 = 0x4e
)

// Client - one authenticated connection to the host chain node
type Client struct {
	sync.Mutex // the HTTP RPC cannot interleave calls and responses

	log      *logger.L
	client   *http.Client
	url      string
	username string
	password string
	id       uint64
}

// New - create a client for one host chain node
func New(access configuration.HostChainType) *Client {
	return &Client{
		log:      logger.New("hostchain"),
		client:   &http.Client{},
		url:      access.URL,
		username: access.Username,
		password: access.Password,
	}
}

// VerifyChain - ensure the node serves the expected network
func (c *Client) VerifyChain(chainName string) error {
	var info chainInfo
	err := c.call("getblockchaininfo", []interface{}{}, &info)
	if nil != err {
		return err
	}
	if chainName != info.Chain {
		c.log.Criticalf("node chain: %q  expected: %q", info.Chain, chainName)
		return fault.ChainMismatch
	}
	c.log.Infof("verified chain: %q at height: %d", info.Chain, info.Blocks)
	return nil
}

// BestHeight - the current tip height of the node
func (c *Client) BestHeight() (uint64, error) {
	var height uint64
	err := c.call("getblockcount", []interface{}{}, &height)
	return height, err
}

// IsActive - check a known block is still on the active chain
func (c *Client) IsActive(height uint64, blockHash string) bool {
	var hash string
	err := c.call("getblockhash", []interface{}{height}, &hash)
	if nil != err {
		return false
	}
	return hash == blockHash
}

// BlockAt - fetch one block and extract its embedded messages
func (c *Client) BlockAt(height uint64) (*scanner.Block, error) {
	var hash string
	err := c.call("getblockhash", []interface{}{height}, &hash)
	if nil != err {
		return nil, fault.BlockNotFound
	}

	var blk block
	err = c.call("getblock", []interface{}{hash, 2}, &blk)
	if nil != err {
		return nil, err
	}

	result := &scanner.Block{
		Height: blk.Height,
		Hash:   blk.Hash,
		Time:   blk.Time,
	}

	for t := range blk.Tx {
		tx := &blk.Tx[t]

		payload, ok := embeddedPayload(tx)
		if !ok {
			continue
		}

		sender, err := c.senderOf(tx)
		if nil != err {
			c.log.Warnf("tx: %s sender unresolved: %s", tx.TxID, err)
			continue
		}

		result.Transactions = append(result.Transactions, message.Envelope{
			TxId:     tx.TxID,
			Sender:   sender,
			Receiver: receiverOf(tx, sender),
			Payload:  payload,
			Index:    uint32(t),
		})
	}
	return result, nil
}

// extract the marker tagged OP_RETURN payload, if any
func embeddedPayload(tx *transaction) (message.Packed, bool) {
	for i := range tx.Vout {
		script, err := hex.DecodeString(tx.Vout[i].ScriptPubKey.Hex)
		if nil != err || 0 == len(script) || opReturn != script[0] {
			continue
		}
		data, ok := pushedData(script[1:])
		if !ok || !bytes.HasPrefix(data, message.PayloadMarker) {
			continue
		}
		return message.Packed(data), true
	}
	return nil, false
}

// unwrap a single data push
func pushedData(script []byte) ([]byte, bool) {
	if 0 == len(script) {
		return nil, false
	}
	n := 0
	size := 0
	switch op := script[0]; {
	case op < opPushData1:
		n = 1
		size = int(op)
	case opPushData1 == op:
		if len(script) < 2 {
			return nil, false
		}
		n = 2
		size = int(script[1])
	case opPushData2 == op:
		if len(script) < 3 {
			return nil, false
		}
		n = 3
		size = int(script[1]) | int(script[2])<<8
	default:
		return nil, false
	}
	if len(script) < n+size {
		return nil, false
	}
	return script[n : n+size], true
}

// the sender is the owner of the output spent by the first input
func (c *Client) senderOf(tx *transaction) (string, error) {
	if 0 == len(tx.Vin) {
		return "", fault.BlockNotFound
	}

	var previous transaction
	err := c.call("getrawtransaction", []interface{}{tx.Vin[0].TxID, true}, &previous)
	if nil != err {
		return "", err
	}

	n := tx.Vin[0].Vout
	if int(n) >= len(previous.Vout) || 0 == len(previous.Vout[n].ScriptPubKey.Addresses) {
		return "", fault.MalformedPayload
	}
	return previous.Vout[n].ScriptPubKey.Addresses[0], nil
}

// the reference address is the last addressable output that is not
// paying back to the sender; blank when every output is change
func receiverOf(tx *transaction, sender string) string {
	receiver := ""
	for i := range tx.Vout {
		addresses := tx.Vout[i].ScriptPubKey.Addresses
		if 0 == len(addresses) || sender == addresses[0] {
			continue
		}
		receiver = addresses[0]
	}
	return receiver
}

// for encoding the RPC arguments
type rpcArguments struct {
	Id     uint64        `json:"id"`
	Method string        `json:"method"`
	Params []interface{} `json:"params"`
}

// the RPC error response
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// for decoding the RPC reply
type rpcReply struct {
	Id     uint64      `json:"id"`
	Result interface{} `json:"result"`
	Error  *rpcError   `json:"error"`
}

// high level call
func (c *Client) call(method string, params []interface{}, reply interface{}) error {
	c.Lock()
	defer c.Unlock()

	c.id += 1

	arguments := rpcArguments{
		Id:     c.id,
		Method: method,
		Params: params,
	}
	response := rpcReply{
		Result: reply,
	}
	err := c.rpc(&arguments, &response)
	if nil != err {
		c.log.Tracef("rpc returned error: %v", err)
		return err
	}

	if nil != response.Error {
		return fault.ProcessError("host chain RPC error: " + response.Error.Message)
	}
	return nil
}

// basic RPC - only use while locked
func (c *Client) rpc(arguments *rpcArguments, reply *rpcReply) error {

	s, err := json.Marshal(arguments)
	if nil != err {
		return err
	}

	c.log.Tracef("rpc send: %s", s)

	request, err := http.NewRequest("POST", c.url, bytes.NewBuffer(s))
	if nil != err {
		return err
	}
	request.SetBasicAuth(c.username, c.password)

	response, err := c.client.Do(request)
	if nil != err {
		return err
	}
	defer response.Body.Close()
	body, err := ioutil.ReadAll(response.Body)
	if nil != err {
		return err
	}

	c.log.Tracef("rpc receive: %s", body)

	err = json.Unmarshal(body, reply)
	if nil != err {
		return fmt.Errorf("rpc decode error: %v", err)
	}
	return nil
}
