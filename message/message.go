// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2020 TradeLayer
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package message

import (
	"encoding/hex"

	"github.com/tradelayer/tradelayerd/util"
)

// TagType - type code for protocol messages
type TagType uint64

// enumerate the possible message types
// encoded as the second Varint64 of the packed header
// the codes are part of the wire format and must not be renumbered
const (
	SimpleSendTag              = TagType(0)
	SendAllTag                 = TagType(4)
	ContractTradeTag           = TagType(29)
	CancelContractOrdersTag    = TagType(32)
	CreateContractTag          = TagType(40)
	CreateFixedPropertyTag     = TagType(50)
	CreateCrowdsalePropertyTag = TagType(51)
	CloseCrowdsaleTag          = TagType(53)
	CreateManagedPropertyTag   = TagType(54)
	GrantTokensTag             = TagType(55)
	RevokeTokensTag            = TagType(56)
	ChangeIssuerTag            = TagType(70)
	CreatePeggedCurrencyTag    = TagType(100)
	SendPeggedCurrencyTag      = TagType(101)
	RedeemPeggedCurrencyTag    = TagType(102)
	DeactivateFeatureTag       = TagType(65533)
	ActivateFeatureTag         = TagType(65534)
	AlertTag                   = TagType(65535)
)

// limits on various fields
const (
	// MaxPayloadLength - hard upper bound on a single embedded payload
	MaxPayloadLength = 65535

	// MaxAmount - amounts are signed 64 bit internally
	MaxAmount = uint64(0x7fffffffffffffff)

	// strings longer than this are truncated when packing
	maxStringLength = 255

	// upper bound used when clipping string scan lengths
	maxFieldLength = MaxPayloadLength
)

// ecosystem codes
const (
	EcosystemMain = 1
	EcosystemTest = 2
)

// contract trade sides
const (
	SideBuy  = byte(1)
	SideSell = byte(2)
)

// PayloadMarker - two byte prefix tagging a host chain transaction as
// carrying an embedded protocol message
var PayloadMarker = []byte{'t', 'l'}

// Packed - packed messages are just a byte slice
type Packed []byte

// Message - generic protocol message interface
type Message interface {
	Pack() (Packed, error)
	Tag() TagType
}

// Envelope - one embedded message with its host chain context
// immutable once constructed
type Envelope struct {
	TxId      string // host chain transaction id
	Sender    string // host chain address
	Receiver  string // optional
	Payload   Packed // marker already stripped
	Height    uint64 // block height
	Index     uint32 // position within the block
	BlockTime int64  // block time stamp
}

// SimpleSend - move an amount of one property between two addresses
type SimpleSend struct {
	Version    uint64 `json:"version"`
	PropertyId uint64 `json:"propertyId"`
	Amount     uint64 `json:"amount"`
}

// SendAll - move every balance the sender holds within one ecosystem
type SendAll struct {
	Version   uint64 `json:"version"`
	Ecosystem uint64 `json:"ecosystem"`
}

// CreateFixedProperty - create a property and mint its entire supply
type CreateFixedProperty struct {
	Version            uint64 `json:"version"`
	Ecosystem          uint64 `json:"ecosystem"`
	PropertyType       uint64 `json:"propertyType"` // 1 = indivisible, 2 = divisible
	PreviousPropertyId uint64 `json:"previousPropertyId"`
	Category           string `json:"category"`
	Subcategory        string `json:"subcategory"`
	Name               string `json:"name"`
	URL                string `json:"url"`
	Data               string `json:"data"`
	Amount             uint64 `json:"amount"`
}

// CreateCrowdsaleProperty - create a variable supply property funded
// by a crowdsale; nothing is minted up front
type CreateCrowdsaleProperty struct {
	Version            uint64 `json:"version"`
	Ecosystem          uint64 `json:"ecosystem"`
	PropertyType       uint64 `json:"propertyType"`
	PreviousPropertyId uint64 `json:"previousPropertyId"`
	Category           string `json:"category"`
	Subcategory        string `json:"subcategory"`
	Name               string `json:"name"`
	URL                string `json:"url"`
	Data               string `json:"data"`
	DesiredProperty    uint64 `json:"desiredProperty"`
	TokensPerUnit      uint64 `json:"tokensPerUnit"`
	Deadline           uint64 `json:"deadline"` // unix time
	EarlyBonus         uint64 `json:"earlyBonus"`
	IssuerPercentage   uint64 `json:"issuerPercentage"`
}

// CloseCrowdsale - issuer closes an open crowdsale early
type CloseCrowdsale struct {
	Version    uint64 `json:"version"`
	PropertyId uint64 `json:"propertyId"`
}

// CreateManagedProperty - create a property whose supply is adjusted
// by explicit grant and revoke messages
type CreateManagedProperty struct {
	Version            uint64 `json:"version"`
	Ecosystem          uint64 `json:"ecosystem"`
	PropertyType       uint64 `json:"propertyType"`
	PreviousPropertyId uint64 `json:"previousPropertyId"`
	Category           string `json:"category"`
	Subcategory        string `json:"subcategory"`
	Name               string `json:"name"`
	URL                string `json:"url"`
	Data               string `json:"data"`
}

// GrantTokens - mint new units of a managed property
type GrantTokens struct {
	Version    uint64 `json:"version"`
	PropertyId uint64 `json:"propertyId"`
	Amount     uint64 `json:"amount"`
	Memo       string `json:"memo"`
}

// RevokeTokens - burn units of a managed property
type RevokeTokens struct {
	Version    uint64 `json:"version"`
	PropertyId uint64 `json:"propertyId"`
	Amount     uint64 `json:"amount"`
	Memo       string `json:"memo"`
}

// ChangeIssuer - transfer issuer control to the receiver address
type ChangeIssuer struct {
	Version    uint64 `json:"version"`
	PropertyId uint64 `json:"propertyId"`
}

// CreateContract - register a derivative contract series
type CreateContract struct {
	Version            uint64 `json:"version"`
	Ecosystem          uint64 `json:"ecosystem"`
	Name               string `json:"name"`
	ExpiryBlocks       uint64 `json:"expiryBlocks"` // blocks until expiration
	NotionalSize       uint64 `json:"notionalSize"`
	CollateralCurrency uint64 `json:"collateralCurrency"`
	MarginRequirement  uint64 `json:"marginRequirement"`
}

// ContractTrade - submit a contract order
// required margin is reserved before the order reaches the matching engine
type ContractTrade struct {
	Version        uint64 `json:"version"`
	ContractId     uint64 `json:"contractId"`
	Amount         uint64 `json:"amount"`
	EffectivePrice uint64 `json:"effectivePrice"`
	Side           byte   `json:"side"` // 1 = buy, 2 = sell
}

// CancelContractOrders - cancel every open order of the sender in one series
type CancelContractOrders struct {
	Version    uint64 `json:"version"`
	ContractId uint64 `json:"contractId"`
}

// CreatePeggedCurrency - issue a pegged currency against contract collateral
type CreatePeggedCurrency struct {
	Version    uint64 `json:"version"`
	ContractId uint64 `json:"contractId"`
	PropertyId uint64 `json:"propertyId"` // collateral property
	Amount     uint64 `json:"amount"`
	Name       string `json:"name"`
}

// SendPeggedCurrency - move pegged currency between addresses
type SendPeggedCurrency struct {
	Version    uint64 `json:"version"`
	PropertyId uint64 `json:"propertyId"`
	Amount     uint64 `json:"amount"`
}

// RedeemPeggedCurrency - burn pegged currency, releasing its backing
type RedeemPeggedCurrency struct {
	Version    uint64 `json:"version"`
	PropertyId uint64 `json:"propertyId"`
	Amount     uint64 `json:"amount"`
	ContractId uint64 `json:"contractId"`
}

// ActivateFeature - open the consensus gate for a feature at a future height
type ActivateFeature struct {
	Version          uint64 `json:"version"`
	FeatureId        uint64 `json:"featureId"`
	ActivationHeight uint64 `json:"activationHeight"`
	MinClientVersion uint64 `json:"minClientVersion"`
}

// DeactivateFeature - close the consensus gate for a feature immediately
type DeactivateFeature struct {
	Version   uint64 `json:"version"`
	FeatureId uint64 `json:"featureId"`
}

// Alert - operator alert distributed to every node
type Alert struct {
	Version     uint64 `json:"version"`
	AlertType   uint64 `json:"alertType"`
	ExpiryValue uint64 `json:"expiryValue"`
	Text        string `json:"text"`
}

// Type - returns the message type code of a packed message
// skips over the leading version field
func (record Packed) Type() TagType {
	_, n := util.FromVarint64(record)
	if 0 == n {
		return TagType(0xffffffffffffffff)
	}
	tag, m := util.FromVarint64(record[n:])
	if 0 == m {
		return TagType(0xffffffffffffffff)
	}
	return TagType(tag)
}

// MessageName - returns the name of a message as a string
func MessageName(record interface{}) (string, bool) {
	switch record.(type) {
	case *SimpleSend, SimpleSend:
		return "SimpleSend", true

	case *SendAll, SendAll:
		return "SendAll", true

	case *CreateFixedProperty, CreateFixedProperty:
		return "CreateFixedProperty", true

	case *CreateCrowdsaleProperty, CreateCrowdsaleProperty:
		return "CreateCrowdsaleProperty", true

	case *CloseCrowdsale, CloseCrowdsale:
		return "CloseCrowdsale", true

	case *CreateManagedProperty, CreateManagedProperty:
		return "CreateManagedProperty", true

	case *GrantTokens, GrantTokens:
		return "GrantTokens", true

	case *RevokeTokens, RevokeTokens:
		return "RevokeTokens", true

	case *ChangeIssuer, ChangeIssuer:
		return "ChangeIssuer", true

	case *CreateContract, CreateContract:
		return "CreateContract", true

	case *ContractTrade, ContractTrade:
		return "ContractTrade", true

	case *CancelContractOrders, CancelContractOrders:
		return "CancelContractOrders", true

	case *CreatePeggedCurrency, CreatePeggedCurrency:
		return "CreatePeggedCurrency", true

	case *SendPeggedCurrency, SendPeggedCurrency:
		return "SendPeggedCurrency", true

	case *RedeemPeggedCurrency, RedeemPeggedCurrency:
		return "RedeemPeggedCurrency", true

	case *ActivateFeature, ActivateFeature:
		return "ActivateFeature", true

	case *DeactivateFeature, DeactivateFeature:
		return "DeactivateFeature", true

	case *Alert, Alert:
		return "Alert", true

	default:
		return "*unknown*", false
	}
}

// Tag - the type codes of each message
func (m *SimpleSend) Tag() TagType              { return SimpleSendTag }
func (m *SendAll) Tag() TagType                 { return SendAllTag }
func (m *CreateFixedProperty) Tag() TagType     { return CreateFixedPropertyTag }
func (m *CreateCrowdsaleProperty) Tag() TagType { return CreateCrowdsalePropertyTag }
func (m *CloseCrowdsale) Tag() TagType          { return CloseCrowdsaleTag }
func (m *CreateManagedProperty) Tag() TagType   { return CreateManagedPropertyTag }
func (m *GrantTokens) Tag() TagType             { return GrantTokensTag }
func (m *RevokeTokens) Tag() TagType            { return RevokeTokensTag }
func (m *ChangeIssuer) Tag() TagType            { return ChangeIssuerTag }
func (m *CreateContract) Tag() TagType          { return CreateContractTag }
func (m *ContractTrade) Tag() TagType           { return ContractTradeTag }
func (m *CancelContractOrders) Tag() TagType    { return CancelContractOrdersTag }
func (m *CreatePeggedCurrency) Tag() TagType    { return CreatePeggedCurrencyTag }
func (m *SendPeggedCurrency) Tag() TagType      { return SendPeggedCurrencyTag }
func (m *RedeemPeggedCurrency) Tag() TagType    { return RedeemPeggedCurrencyTag }
func (m *ActivateFeature) Tag() TagType         { return ActivateFeatureTag }
func (m *DeactivateFeature) Tag() TagType       { return DeactivateFeatureTag }
func (m *Alert) Tag() TagType                   { return AlertTag }

// MarshalText - convert a packed message to its hex JSON form
func (record Packed) MarshalText() ([]byte, error) {
	size := hex.EncodedLen(len(record))
	b := make([]byte, size)
	hex.Encode(b, record)
	return b, nil
}

// UnmarshalText - convert a packed message from its hex JSON form
func (record *Packed) UnmarshalText(s []byte) error {
	size := hex.DecodedLen(len(s))
	*record = make([]byte, size)
	_, err := hex.Decode(*record, s)
	return err
}
