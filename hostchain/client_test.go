// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2020 TradeLayer
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package hostchain_test

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tradelayer/tradelayerd/chain"
	"github.com/tradelayer/tradelayerd/configuration"
	"github.com/tradelayer/tradelayerd/fixtures"
	"github.com/tradelayer/tradelayerd/hostchain"
	"github.com/tradelayer/tradelayerd/message"
)

const (
	senderAddress   = "mvayMZNrg4zhDsYyzn7B6mSnWuRzHVjmZW"
	receiverAddress = "moQR7i8XM4rSGoNwEsw3h4YEuduuP6mxw7"

	blockHash    = "4b7e8d31a1f8a9cbf6a2ed56f14ed8a984a4f8a31c1d9b3ee1c1ffb2f55e2a01"
	previousTxId = "9fd3c20f3a8cbe374b1dbe976a9a65e25d949bb41b29f3c10941de9b7b1b4a7e"
)

func TestMain(m *testing.M) {
	fixtures.SetupTestLogger()
	rc := m.Run()
	fixtures.TeardownTestLogger()
	os.Exit(rc)
}

// one OP_RETURN output holding the marker tagged payload
func opReturnHex(t *testing.T, m message.Message) string {
	packed, err := m.Pack()
	assert.NoError(t, err, "pack")

	data := append([]byte{}, message.PayloadMarker...)
	data = append(data, packed...)
	assert.True(t, len(data) < 0x4c, "test payload needs PUSHDATA")

	return "6a" + fmt.Sprintf("%02x", len(data)) + hex.EncodeToString(data)
}

func payToAddress(address string) map[string]interface{} {
	return map[string]interface{}{
		"scriptPubKey": map[string]interface{}{
			"hex":       "76a914ffcc9988776655443322110000aabbccddeeff0088ac",
			"type":      "pubkeyhash",
			"addresses": []string{address},
		},
	}
}

func newServer(t *testing.T) *httptest.Server {
	send := opReturnHex(t, &message.SimpleSend{
		PropertyId: 3,
		Amount:     250000,
	})

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var request struct {
			Id     uint64        `json:"id"`
			Method string        `json:"method"`
			Params []interface{} `json:"params"`
		}
		err := json.NewDecoder(r.Body).Decode(&request)
		assert.NoError(t, err, "decode request")

		var result interface{}
		var rpcError interface{}

		switch request.Method {

		case "getblockchaininfo":
			result = map[string]interface{}{
				"chain":  "regtest",
				"blocks": 101,
			}

		case "getblockcount":
			result = 101

		case "getblockhash":
			if float64(100) == request.Params[0] {
				result = blockHash
			} else {
				rpcError = map[string]interface{}{
					"code":    -8,
					"message": "Block height out of range",
				}
			}

		case "getblock":
			assert.Equal(t, blockHash, request.Params[0], "block hash")
			result = map[string]interface{}{
				"hash":   blockHash,
				"height": 100,
				"time":   1500000100,
				"tx": []interface{}{
					// coinbase carries no embedded message
					map[string]interface{}{
						"txid": "c0ffee",
						"vin":  []interface{}{map[string]interface{}{"coinbase": "0102"}},
						"vout": []interface{}{payToAddress(senderAddress)},
					},
					map[string]interface{}{
						"txid": "feedbeef",
						"vin": []interface{}{map[string]interface{}{
							"txid": previousTxId,
							"vout": 1,
						}},
						"vout": []interface{}{
							map[string]interface{}{
								"scriptPubKey": map[string]interface{}{
									"hex":  send,
									"type": "nulldata",
								},
							},
							payToAddress(senderAddress), // change
							payToAddress(receiverAddress),
						},
					},
				},
			}

		case "getrawtransaction":
			assert.Equal(t, previousTxId, request.Params[0], "previous tx")
			result = map[string]interface{}{
				"txid": previousTxId,
				"vout": []interface{}{
					payToAddress(receiverAddress),
					payToAddress(senderAddress),
				},
			}

		default:
			t.Fatalf("unexpected method: %s", request.Method)
		}

		reply := map[string]interface{}{
			"id":     request.Id,
			"result": result,
			"error":  rpcError,
		}
		json.NewEncoder(w).Encode(reply)
	}))
}

func newClient(server *httptest.Server) *hostchain.Client {
	return hostchain.New(configuration.HostChainType{
		URL:      server.URL,
		Username: "rpcuser",
		Password: "rpcpass",
	})
}

func TestVerifyChain(t *testing.T) {
	server := newServer(t)
	defer server.Close()
	client := newClient(server)

	assert.NoError(t, client.VerifyChain(chain.Regtest), "verify chain")
	assert.Error(t, client.VerifyChain(chain.Main), "wrong chain accepted")
}

func TestBestHeight(t *testing.T) {
	server := newServer(t)
	defer server.Close()
	client := newClient(server)

	height, err := client.BestHeight()
	assert.NoError(t, err, "best height")
	assert.Equal(t, uint64(101), height, "height")
}

func TestIsActive(t *testing.T) {
	server := newServer(t)
	defer server.Close()
	client := newClient(server)

	assert.True(t, client.IsActive(100, blockHash), "active block rejected")
	assert.False(t, client.IsActive(100, "00"), "stale hash accepted")
	assert.False(t, client.IsActive(999, blockHash), "missing height accepted")
}

func TestBlockAt(t *testing.T) {
	server := newServer(t)
	defer server.Close()
	client := newClient(server)

	block, err := client.BlockAt(100)
	assert.NoError(t, err, "block at")
	assert.Equal(t, uint64(100), block.Height, "height")
	assert.Equal(t, blockHash, block.Hash, "hash")
	assert.Equal(t, int64(1500000100), block.Time, "time")

	// the coinbase is filtered, only the tagged transaction remains
	assert.Equal(t, 1, len(block.Transactions), "transaction count")

	env := block.Transactions[0]
	assert.Equal(t, "feedbeef", env.TxId, "tx id")
	assert.Equal(t, senderAddress, env.Sender, "sender")
	assert.Equal(t, receiverAddress, env.Receiver, "receiver")
	assert.Equal(t, uint32(1), env.Index, "index")

	// payload still carries the marker, the scanner strips it
	assert.Equal(t, byte('t'), env.Payload[0], "marker")
	assert.Equal(t, byte('l'), env.Payload[1], "marker")

	_, err = client.BlockAt(999)
	assert.Error(t, err, "missing block accepted")
}
