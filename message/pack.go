// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2020 TradeLayer
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package message

import (
	"github.com/tradelayer/tradelayerd/fault"
	"github.com/tradelayer/tradelayerd/util"
)

// pack a message header
//
// Pack Varint64(version) Varint64(tag) followed by the fields in the
// order they appear in the struct; string fields are emitted as raw
// UTF-8 truncated to 255 bytes with a terminating NUL
func packHeader(version uint64, tag TagType) Packed {
	packed := util.ToVarint64(version)
	return append(packed, util.ToVarint64(uint64(tag))...)
}

// append a Varint64 field
func appendUint64(buffer Packed, value uint64) Packed {
	return append(buffer, util.ToVarint64(value)...)
}

// append a NUL terminated string field
// over length strings are silently truncated
func appendString(buffer Packed, s string) Packed {
	b := []byte(s)
	if len(b) > maxStringLength {
		b = b[:maxStringLength]
	}
	buffer = append(buffer, b...)
	return append(buffer, 0x00)
}

// finish packing: verify the total payload bound
func finish(buffer Packed) (Packed, error) {
	if len(buffer) > MaxPayloadLength {
		return nil, fault.PayloadTooLong
	}
	return buffer, nil
}

// Pack - simple send
func (m *SimpleSend) Pack() (Packed, error) {
	packed := packHeader(m.Version, SimpleSendTag)
	packed = appendUint64(packed, m.PropertyId)
	packed = appendUint64(packed, m.Amount)
	return finish(packed)
}

// Pack - send all
func (m *SendAll) Pack() (Packed, error) {
	packed := packHeader(m.Version, SendAllTag)
	packed = appendUint64(packed, m.Ecosystem)
	return finish(packed)
}

// Pack - fixed supply property creation
func (m *CreateFixedProperty) Pack() (Packed, error) {
	packed := packHeader(m.Version, CreateFixedPropertyTag)
	packed = appendUint64(packed, m.Ecosystem)
	packed = appendUint64(packed, m.PropertyType)
	packed = appendUint64(packed, m.PreviousPropertyId)
	packed = appendString(packed, m.Category)
	packed = appendString(packed, m.Subcategory)
	packed = appendString(packed, m.Name)
	packed = appendString(packed, m.URL)
	packed = appendString(packed, m.Data)
	packed = appendUint64(packed, m.Amount)
	return finish(packed)
}

// Pack - crowdsale property creation
func (m *CreateCrowdsaleProperty) Pack() (Packed, error) {
	packed := packHeader(m.Version, CreateCrowdsalePropertyTag)
	packed = appendUint64(packed, m.Ecosystem)
	packed = appendUint64(packed, m.PropertyType)
	packed = appendUint64(packed, m.PreviousPropertyId)
	packed = appendString(packed, m.Category)
	packed = appendString(packed, m.Subcategory)
	packed = appendString(packed, m.Name)
	packed = appendString(packed, m.URL)
	packed = appendString(packed, m.Data)
	packed = appendUint64(packed, m.DesiredProperty)
	packed = appendUint64(packed, m.TokensPerUnit)
	packed = appendUint64(packed, m.Deadline)
	packed = appendUint64(packed, m.EarlyBonus)
	packed = appendUint64(packed, m.IssuerPercentage)
	return finish(packed)
}

// Pack - close crowdsale
func (m *CloseCrowdsale) Pack() (Packed, error) {
	packed := packHeader(m.Version, CloseCrowdsaleTag)
	packed = appendUint64(packed, m.PropertyId)
	return finish(packed)
}

// Pack - managed property creation
func (m *CreateManagedProperty) Pack() (Packed, error) {
	packed := packHeader(m.Version, CreateManagedPropertyTag)
	packed = appendUint64(packed, m.Ecosystem)
	packed = appendUint64(packed, m.PropertyType)
	packed = appendUint64(packed, m.PreviousPropertyId)
	packed = appendString(packed, m.Category)
	packed = appendString(packed, m.Subcategory)
	packed = appendString(packed, m.Name)
	packed = appendString(packed, m.URL)
	packed = appendString(packed, m.Data)
	return finish(packed)
}

// Pack - grant
func (m *GrantTokens) Pack() (Packed, error) {
	packed := packHeader(m.Version, GrantTokensTag)
	packed = appendUint64(packed, m.PropertyId)
	packed = appendUint64(packed, m.Amount)
	packed = appendString(packed, m.Memo)
	return finish(packed)
}

// Pack - revoke
func (m *RevokeTokens) Pack() (Packed, error) {
	packed := packHeader(m.Version, RevokeTokensTag)
	packed = appendUint64(packed, m.PropertyId)
	packed = appendUint64(packed, m.Amount)
	packed = appendString(packed, m.Memo)
	return finish(packed)
}

// Pack - change issuer
func (m *ChangeIssuer) Pack() (Packed, error) {
	packed := packHeader(m.Version, ChangeIssuerTag)
	packed = appendUint64(packed, m.PropertyId)
	return finish(packed)
}

// Pack - contract series creation
func (m *CreateContract) Pack() (Packed, error) {
	packed := packHeader(m.Version, CreateContractTag)
	packed = appendUint64(packed, m.Ecosystem)
	packed = appendString(packed, m.Name)
	packed = appendUint64(packed, m.ExpiryBlocks)
	packed = appendUint64(packed, m.NotionalSize)
	packed = appendUint64(packed, m.CollateralCurrency)
	packed = appendUint64(packed, m.MarginRequirement)
	return finish(packed)
}

// Pack - contract order
func (m *ContractTrade) Pack() (Packed, error) {
	if SideBuy != m.Side && SideSell != m.Side {
		return nil, fault.MalformedPayload
	}
	packed := packHeader(m.Version, ContractTradeTag)
	packed = appendUint64(packed, m.ContractId)
	packed = appendUint64(packed, m.Amount)
	packed = appendUint64(packed, m.EffectivePrice)
	packed = append(packed, m.Side)
	return finish(packed)
}

// Pack - cancel contract orders
func (m *CancelContractOrders) Pack() (Packed, error) {
	packed := packHeader(m.Version, CancelContractOrdersTag)
	packed = appendUint64(packed, m.ContractId)
	return finish(packed)
}

// Pack - pegged currency creation
func (m *CreatePeggedCurrency) Pack() (Packed, error) {
	packed := packHeader(m.Version, CreatePeggedCurrencyTag)
	packed = appendUint64(packed, m.ContractId)
	packed = appendUint64(packed, m.PropertyId)
	packed = appendUint64(packed, m.Amount)
	packed = appendString(packed, m.Name)
	return finish(packed)
}

// Pack - pegged currency send
func (m *SendPeggedCurrency) Pack() (Packed, error) {
	packed := packHeader(m.Version, SendPeggedCurrencyTag)
	packed = appendUint64(packed, m.PropertyId)
	packed = appendUint64(packed, m.Amount)
	return finish(packed)
}

// Pack - pegged currency redemption
func (m *RedeemPeggedCurrency) Pack() (Packed, error) {
	packed := packHeader(m.Version, RedeemPeggedCurrencyTag)
	packed = appendUint64(packed, m.PropertyId)
	packed = appendUint64(packed, m.Amount)
	packed = appendUint64(packed, m.ContractId)
	return finish(packed)
}

// Pack - feature activation
func (m *ActivateFeature) Pack() (Packed, error) {
	packed := packHeader(m.Version, ActivateFeatureTag)
	packed = appendUint64(packed, m.FeatureId)
	packed = appendUint64(packed, m.ActivationHeight)
	packed = appendUint64(packed, m.MinClientVersion)
	return finish(packed)
}

// Pack - feature deactivation
func (m *DeactivateFeature) Pack() (Packed, error) {
	packed := packHeader(m.Version, DeactivateFeatureTag)
	packed = appendUint64(packed, m.FeatureId)
	return finish(packed)
}

// Pack - alert
func (m *Alert) Pack() (Packed, error) {
	packed := packHeader(m.Version, AlertTag)
	packed = appendUint64(packed, m.AlertType)
	packed = appendUint64(packed, m.ExpiryValue)
	packed = appendString(packed, m.Text)
	return finish(packed)
}
