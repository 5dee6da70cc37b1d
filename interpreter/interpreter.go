// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2020 TradeLayer
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package interpreter - decode, validate and apply protocol messages
//
// pipeline per transaction: decode the payload into a typed message,
// check the consensus gate for the pair (type, version) at the
// transaction's height, validate references and funds, then mutate
// the ledger; a rejection at any stage leaves every table untouched
package interpreter

import (
	"github.com/bitmark-inc/logger"

	"github.com/tradelayer/tradelayerd/activation"
	"github.com/tradelayer/tradelayerd/counter"
	"github.com/tradelayer/tradelayerd/fault"
	"github.com/tradelayer/tradelayerd/feecache"
	"github.com/tradelayer/tradelayerd/ledger"
	"github.com/tradelayer/tradelayerd/message"
	"github.com/tradelayer/tradelayerd/property"
	"github.com/tradelayer/tradelayerd/storage"
	"github.com/tradelayer/tradelayerd/util"
)

// Order - a contract order forwarded to the matching engine
type Order struct {
	Address        string
	ContractId     uint64
	Amount         int64
	EffectivePrice uint64
	Side           byte
	Height         uint64
}

// TradeEngine - the external order matching engine
type TradeEngine interface {
	SubmitOrder(order Order) error
	CancelOrders(address string, contractId uint64) error
}

// Notifier - sink for operator visible events
type Notifier interface {
	Alert(alertType uint64, expiryValue uint64, text string)
	FeatureActivated(featureId uint64, activationHeight uint64)
}

type handler func(env *message.Envelope, m message.Message) error

// Interpreter - applies messages to the ledger state
type Interpreter struct {
	log      *logger.L
	ledger   *ledger.Ledger
	registry *property.Registry
	gate     *activation.Gate
	engine   TradeEngine
	notifier Notifier
	fees     *feecache.Cache
	handlers map[message.TagType]handler
	record   bool
	replay   bool

	// statistics
	Applied  counter.Counter
	Rejected counter.Counter
}

// New - build an interpreter over the state objects
//
// engine and notifier may be nil: orders are then reserved but not
// matched, and events are only logged
func New(l *ledger.Ledger, registry *property.Registry, gate *activation.Gate, engine TradeEngine, notifier Notifier) *Interpreter {
	i := &Interpreter{
		log:      logger.New("interpreter"),
		ledger:   l,
		registry: registry,
		gate:     gate,
		engine:   engine,
		notifier: notifier,
		fees:     feecache.New(),
	}
	i.handlers = map[message.TagType]handler{
		message.SimpleSendTag:              i.applySimpleSend,
		message.SendAllTag:                 i.applySendAll,
		message.CreateFixedPropertyTag:     i.applyCreateFixedProperty,
		message.CreateCrowdsalePropertyTag: i.applyCreateCrowdsaleProperty,
		message.CloseCrowdsaleTag:          i.applyCloseCrowdsale,
		message.CreateManagedPropertyTag:   i.applyCreateManagedProperty,
		message.GrantTokensTag:             i.applyGrantTokens,
		message.RevokeTokensTag:            i.applyRevokeTokens,
		message.ChangeIssuerTag:            i.applyChangeIssuer,
		message.CreateContractTag:          i.applyCreateContract,
		message.ContractTradeTag:           i.applyContractTrade,
		message.CancelContractOrdersTag:    i.applyCancelContractOrders,
		message.CreatePeggedCurrencyTag:    i.applyCreatePeggedCurrency,
		message.SendPeggedCurrencyTag:      i.applySendPeggedCurrency,
		message.RedeemPeggedCurrencyTag:    i.applyRedeemPeggedCurrency,
		message.ActivateFeatureTag:         i.applyActivateFeature,
		message.DeactivateFeatureTag:       i.applyDeactivateFeature,
		message.AlertTag:                   i.applyAlert,
	}
	return i
}

// Fees - the trading fee accumulator
//
// part of consensus state: register it with the snapshot manager so it
// rolls back together with the ledger
func (i *Interpreter) Fees() *feecache.Cache {
	return i.fees
}

// TotalSupply - issued supply of one property
//
// fixed issuance reports the amount recorded at creation; every other
// class is elastic and reports whatever the ledger currently carries
func (i *Interpreter) TotalSupply(propertyId uint64) (int64, error) {
	record, err := i.registry.Get(propertyId)
	if nil != err {
		return 0, err
	}
	if property.Fixed == record.Class {
		return record.FixedSupply, nil
	}
	return i.ledger.CirculatingSupply(propertyId), nil
}

// EnableResultIndex - record every outcome in the transaction pool
func (i *Interpreter) EnableResultIndex(enable bool) {
	i.record = enable
}

// SetReplaying - mark subsequent blocks as confirmed history
//
// replay relaxes only the activation notice window, never the
// economic validation
func (i *Interpreter) SetReplaying(replaying bool) {
	i.replay = replaying
}

// Process - interpret one transaction envelope
//
// the returned error is the typed rejection reason, nil on success;
// rejections are expected during passive scanning and never abort
// the caller's block loop
func (i *Interpreter) Process(env *message.Envelope) error {
	m, _, err := message.Packed(env.Payload).Unpack()
	if nil != err {
		i.reject(env, 0, err)
		return err
	}

	tag := m.Tag()
	version := messageVersion(env.Payload)

	if !i.gate.IsAllowed(env.Height, tag, version) {
		i.reject(env, uint64(tag), fault.ConsensusNotAllowed)
		return fault.ConsensusNotAllowed
	}

	apply, ok := i.handlers[tag]
	if !ok {
		i.reject(env, uint64(tag), fault.UnknownMessageType)
		return fault.UnknownMessageType
	}

	err = apply(env, m)
	if nil != err {
		i.reject(env, uint64(tag), err)
		return err
	}

	i.Applied.Increment()
	if i.record {
		storage.RecordTxResult(env.TxId, storage.TxResult{
			Height: env.Height,
			Tag:    uint64(tag),
			Valid:  true,
		})
	}
	name, _ := message.MessageName(m)
	i.log.Debugf("applied %s from %s at %d", name, env.Sender, env.Height)
	return nil
}

func (i *Interpreter) reject(env *message.Envelope, tag uint64, reason error) {
	i.Rejected.Increment()
	if i.record {
		storage.RecordTxResult(env.TxId, storage.TxResult{
			Height: env.Height,
			Tag:    tag,
			Valid:  false,
			Reason: reason.Error(),
		})
	}
	i.log.Infof("rejected tx %s at %d: %s", env.TxId, env.Height, reason)
}

// the version is the leading compact integer of the packed header
func messageVersion(payload []byte) uint64 {
	version, _ := util.FromVarint64(payload)
	return version
}
