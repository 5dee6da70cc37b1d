// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2020 TradeLayer
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package activation

import (
	"github.com/tradelayer/tradelayerd/chain"
	"github.com/tradelayer/tradelayerd/message"
)

// running build's protocol version, compared against the minimum a
// feature activation declares
const ClientVersion uint64 = 70002

// feature ids assignable through activation messages
const (
	FeatureSendAll     uint64 = 1
	FeatureCrowdsales  uint64 = 2
	FeatureContracts   uint64 = 3
	FeaturePegged      uint64 = 4
	FeatureGrantRevoke uint64 = 5
)

// activation notice window in blocks
type noticeWindow struct {
	min uint64
	max uint64
}

var noticeWindows = map[string]noticeWindow{
	chain.Main:    {min: 2048, max: 12288},
	chain.Test:    {min: 0, max: 999999},
	chain.Regtest: {min: 0, max: 999999},
}

// the message types each feature unlocks, all at version 0
var featureTags = map[uint64][]message.TagType{
	FeatureSendAll:     {message.SendAllTag},
	FeatureCrowdsales:  {message.CreateCrowdsalePropertyTag, message.CloseCrowdsaleTag},
	FeatureContracts:   {message.CreateContractTag, message.ContractTradeTag, message.CancelContractOrdersTag},
	FeaturePegged:      {message.CreatePeggedCurrencyTag, message.SendPeggedCurrencyTag, message.RedeemPeggedCurrencyTag},
	FeatureGrantRevoke: {message.GrantTokensTag, message.RevokeTokensTag},
}

// addresses allowed to send activation, deactivation and alert
// messages; regtest accepts any sender
var authorizedSenders = map[string][]string{
	chain.Main: {
		"3DxkkUiLGy2irmGDW65eNmn8zfLJYbZxmC",
	},
	chain.Test: {
		"mpDex4kSX4iscrmiEQgowXDxv7afiDDHzA",
	},
	chain.Regtest: {"*"},
}

// rules present before any activation message is processed; baseline
// message types are live from the start of each chain's history
var defaultRules = map[string]map[ruleKey]Rule{
	chain.Main: {
		{message.SimpleSendTag, 0}:              {ActivationHeight: 0},
		{message.CreateFixedPropertyTag, 0}:     {ActivationHeight: 0},
		{message.CreateCrowdsalePropertyTag, 0}: {ActivationHeight: 0},
		{message.CloseCrowdsaleTag, 0}:          {ActivationHeight: 0},
		{message.CreateManagedPropertyTag, 0}:   {ActivationHeight: 0},
		{message.GrantTokensTag, 0}:             {ActivationHeight: 0},
		{message.RevokeTokensTag, 0}:            {ActivationHeight: 0},
		{message.ChangeIssuerTag, 0}:            {ActivationHeight: 0},
		{message.DeactivateFeatureTag, 0}:      {ActivationHeight: 0, AllowZeroProperty: true},
		{message.ActivateFeatureTag, 0}:        {ActivationHeight: 0, AllowZeroProperty: true},
		{message.AlertTag, 0}:                  {ActivationHeight: 0, AllowZeroProperty: true},
	},
	chain.Test: {
		{message.SimpleSendTag, 0}:              {ActivationHeight: 0},
		{message.SendAllTag, 0}:                 {ActivationHeight: 0},
		{message.CreateFixedPropertyTag, 0}:     {ActivationHeight: 0},
		{message.CreateCrowdsalePropertyTag, 0}: {ActivationHeight: 0},
		{message.CloseCrowdsaleTag, 0}:          {ActivationHeight: 0},
		{message.CreateManagedPropertyTag, 0}:   {ActivationHeight: 0},
		{message.GrantTokensTag, 0}:             {ActivationHeight: 0},
		{message.RevokeTokensTag, 0}:            {ActivationHeight: 0},
		{message.ChangeIssuerTag, 0}:            {ActivationHeight: 0},
		{message.CreateContractTag, 0}:          {ActivationHeight: 0},
		{message.ContractTradeTag, 0}:           {ActivationHeight: 0},
		{message.CancelContractOrdersTag, 0}:    {ActivationHeight: 0},
		{message.CreatePeggedCurrencyTag, 0}:    {ActivationHeight: 0},
		{message.SendPeggedCurrencyTag, 0}:      {ActivationHeight: 0},
		{message.RedeemPeggedCurrencyTag, 0}:    {ActivationHeight: 0},
		{message.DeactivateFeatureTag, 0}:      {ActivationHeight: 0, AllowZeroProperty: true},
		{message.ActivateFeatureTag, 0}:        {ActivationHeight: 0, AllowZeroProperty: true},
		{message.AlertTag, 0}:                  {ActivationHeight: 0, AllowZeroProperty: true},
	},
}

func init() {
	// regtest mirrors test
	defaultRules[chain.Regtest] = defaultRules[chain.Test]
}
