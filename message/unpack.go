// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2020 TradeLayer
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package message

import (
	"bytes"

	"github.com/tradelayer/tradelayerd/fault"
	"github.com/tradelayer/tradelayerd/util"
)

// turn a byte slice into a message
//
// the unpacker performs structural checks only: field presence, string
// termination and the 63 bit bound on amount valued fields; semantic
// validation (property existence, balances, consensus gates) is the
// interpreter's job
//
// must cast result to correct type
//
// e.g.
//   send, ok := result.(*message.SimpleSend)
// or:
//   switch m := result.(type) {
//   case *message.SimpleSend:
func (record Packed) Unpack() (m Message, n int, e error) {

	defer func() {
		if r := recover(); nil != r {
			e = fault.MalformedPayload
		}
	}()

	if len(record) > MaxPayloadLength {
		return nil, 0, fault.PayloadTooLong
	}

	// header: version then type
	version, versionLength := util.FromVarint64(record)
	if 0 == versionLength {
		return nil, 0, fault.MalformedPayload
	}
	n = versionLength

	tag, tagLength := util.FromVarint64(record[n:])
	if 0 == tagLength {
		return nil, 0, fault.MalformedPayload
	}
	n += tagLength

unpack_switch:
	switch TagType(tag) {

	case SimpleSendTag:

		propertyId, propertyIdLength := util.FromVarint64(record[n:])
		if 0 == propertyIdLength {
			break unpack_switch
		}
		n += propertyIdLength

		amount, amountLength := util.FromVarint64(record[n:])
		if 0 == amountLength {
			break unpack_switch
		}
		n += amountLength
		if amount > MaxAmount {
			return nil, 0, fault.AmountOutOfRange
		}

		r := &SimpleSend{
			Version:    version,
			PropertyId: propertyId,
			Amount:     amount,
		}
		return r, n, nil

	case SendAllTag:

		ecosystem, ecosystemLength := util.FromVarint64(record[n:])
		if 0 == ecosystemLength {
			break unpack_switch
		}
		n += ecosystemLength

		r := &SendAll{
			Version:   version,
			Ecosystem: ecosystem,
		}
		return r, n, nil

	case CreateFixedPropertyTag:

		base, newN, err := unpackPropertyBase(record, n)
		if nil != err {
			return nil, 0, err
		}
		n = newN

		amount, amountLength := util.FromVarint64(record[n:])
		if 0 == amountLength {
			break unpack_switch
		}
		n += amountLength
		if amount > MaxAmount {
			return nil, 0, fault.AmountOutOfRange
		}

		r := &CreateFixedProperty{
			Version:            version,
			Ecosystem:          base.ecosystem,
			PropertyType:       base.propertyType,
			PreviousPropertyId: base.previousPropertyId,
			Category:           base.category,
			Subcategory:        base.subcategory,
			Name:               base.name,
			URL:                base.url,
			Data:               base.data,
			Amount:             amount,
		}
		return r, n, nil

	case CreateCrowdsalePropertyTag:

		base, newN, err := unpackPropertyBase(record, n)
		if nil != err {
			return nil, 0, err
		}
		n = newN

		desiredProperty, desiredPropertyLength := util.FromVarint64(record[n:])
		if 0 == desiredPropertyLength {
			break unpack_switch
		}
		n += desiredPropertyLength

		tokensPerUnit, tokensPerUnitLength := util.FromVarint64(record[n:])
		if 0 == tokensPerUnitLength {
			break unpack_switch
		}
		n += tokensPerUnitLength
		if tokensPerUnit > MaxAmount {
			return nil, 0, fault.AmountOutOfRange
		}

		deadline, deadlineLength := util.FromVarint64(record[n:])
		if 0 == deadlineLength {
			break unpack_switch
		}
		n += deadlineLength

		earlyBonus, earlyBonusLength := util.FromVarint64(record[n:])
		if 0 == earlyBonusLength {
			break unpack_switch
		}
		n += earlyBonusLength

		issuerPercentage, issuerPercentageLength := util.FromVarint64(record[n:])
		if 0 == issuerPercentageLength {
			break unpack_switch
		}
		n += issuerPercentageLength

		r := &CreateCrowdsaleProperty{
			Version:            version,
			Ecosystem:          base.ecosystem,
			PropertyType:       base.propertyType,
			PreviousPropertyId: base.previousPropertyId,
			Category:           base.category,
			Subcategory:        base.subcategory,
			Name:               base.name,
			URL:                base.url,
			Data:               base.data,
			DesiredProperty:    desiredProperty,
			TokensPerUnit:      tokensPerUnit,
			Deadline:           deadline,
			EarlyBonus:         earlyBonus,
			IssuerPercentage:   issuerPercentage,
		}
		return r, n, nil

	case CloseCrowdsaleTag:

		propertyId, propertyIdLength := util.FromVarint64(record[n:])
		if 0 == propertyIdLength {
			break unpack_switch
		}
		n += propertyIdLength

		r := &CloseCrowdsale{
			Version:    version,
			PropertyId: propertyId,
		}
		return r, n, nil

	case CreateManagedPropertyTag:

		base, newN, err := unpackPropertyBase(record, n)
		if nil != err {
			return nil, 0, err
		}
		n = newN

		r := &CreateManagedProperty{
			Version:            version,
			Ecosystem:          base.ecosystem,
			PropertyType:       base.propertyType,
			PreviousPropertyId: base.previousPropertyId,
			Category:           base.category,
			Subcategory:        base.subcategory,
			Name:               base.name,
			URL:                base.url,
			Data:               base.data,
		}
		return r, n, nil

	case GrantTokensTag, RevokeTokensTag:

		propertyId, propertyIdLength := util.FromVarint64(record[n:])
		if 0 == propertyIdLength {
			break unpack_switch
		}
		n += propertyIdLength

		amount, amountLength := util.FromVarint64(record[n:])
		if 0 == amountLength {
			break unpack_switch
		}
		n += amountLength
		if amount > MaxAmount {
			return nil, 0, fault.AmountOutOfRange
		}

		memo, newN, err := unpackString(record, n)
		if nil != err {
			return nil, 0, err
		}
		n = newN

		if GrantTokensTag == TagType(tag) {
			r := &GrantTokens{
				Version:    version,
				PropertyId: propertyId,
				Amount:     amount,
				Memo:       memo,
			}
			return r, n, nil
		}
		r := &RevokeTokens{
			Version:    version,
			PropertyId: propertyId,
			Amount:     amount,
			Memo:       memo,
		}
		return r, n, nil

	case ChangeIssuerTag:

		propertyId, propertyIdLength := util.FromVarint64(record[n:])
		if 0 == propertyIdLength {
			break unpack_switch
		}
		n += propertyIdLength

		r := &ChangeIssuer{
			Version:    version,
			PropertyId: propertyId,
		}
		return r, n, nil

	case CreateContractTag:

		ecosystem, ecosystemLength := util.FromVarint64(record[n:])
		if 0 == ecosystemLength {
			break unpack_switch
		}
		n += ecosystemLength

		name, newN, err := unpackString(record, n)
		if nil != err {
			return nil, 0, err
		}
		n = newN

		expiryBlocks, expiryBlocksLength := util.FromVarint64(record[n:])
		if 0 == expiryBlocksLength {
			break unpack_switch
		}
		n += expiryBlocksLength

		notionalSize, notionalSizeLength := util.FromVarint64(record[n:])
		if 0 == notionalSizeLength {
			break unpack_switch
		}
		n += notionalSizeLength
		if notionalSize > MaxAmount {
			return nil, 0, fault.AmountOutOfRange
		}

		collateralCurrency, collateralCurrencyLength := util.FromVarint64(record[n:])
		if 0 == collateralCurrencyLength {
			break unpack_switch
		}
		n += collateralCurrencyLength

		marginRequirement, marginRequirementLength := util.FromVarint64(record[n:])
		if 0 == marginRequirementLength {
			break unpack_switch
		}
		n += marginRequirementLength
		if marginRequirement > MaxAmount {
			return nil, 0, fault.AmountOutOfRange
		}

		r := &CreateContract{
			Version:            version,
			Ecosystem:          ecosystem,
			Name:               name,
			ExpiryBlocks:       expiryBlocks,
			NotionalSize:       notionalSize,
			CollateralCurrency: collateralCurrency,
			MarginRequirement:  marginRequirement,
		}
		return r, n, nil

	case ContractTradeTag:

		contractId, contractIdLength := util.FromVarint64(record[n:])
		if 0 == contractIdLength {
			break unpack_switch
		}
		n += contractIdLength

		amount, amountLength := util.FromVarint64(record[n:])
		if 0 == amountLength {
			break unpack_switch
		}
		n += amountLength
		if amount > MaxAmount {
			return nil, 0, fault.AmountOutOfRange
		}

		effectivePrice, effectivePriceLength := util.FromVarint64(record[n:])
		if 0 == effectivePriceLength {
			break unpack_switch
		}
		n += effectivePriceLength
		if effectivePrice > MaxAmount {
			return nil, 0, fault.AmountOutOfRange
		}

		// side is a single raw byte
		if n >= len(record) {
			break unpack_switch
		}
		side := record[n]
		n += 1
		if SideBuy != side && SideSell != side {
			return nil, 0, fault.MalformedPayload
		}

		r := &ContractTrade{
			Version:        version,
			ContractId:     contractId,
			Amount:         amount,
			EffectivePrice: effectivePrice,
			Side:           side,
		}
		return r, n, nil

	case CancelContractOrdersTag:

		contractId, contractIdLength := util.FromVarint64(record[n:])
		if 0 == contractIdLength {
			break unpack_switch
		}
		n += contractIdLength

		r := &CancelContractOrders{
			Version:    version,
			ContractId: contractId,
		}
		return r, n, nil

	case CreatePeggedCurrencyTag:

		contractId, contractIdLength := util.FromVarint64(record[n:])
		if 0 == contractIdLength {
			break unpack_switch
		}
		n += contractIdLength

		propertyId, propertyIdLength := util.FromVarint64(record[n:])
		if 0 == propertyIdLength {
			break unpack_switch
		}
		n += propertyIdLength

		amount, amountLength := util.FromVarint64(record[n:])
		if 0 == amountLength {
			break unpack_switch
		}
		n += amountLength
		if amount > MaxAmount {
			return nil, 0, fault.AmountOutOfRange
		}

		name, newN, err := unpackString(record, n)
		if nil != err {
			return nil, 0, err
		}
		n = newN

		r := &CreatePeggedCurrency{
			Version:    version,
			ContractId: contractId,
			PropertyId: propertyId,
			Amount:     amount,
			Name:       name,
		}
		return r, n, nil

	case SendPeggedCurrencyTag:

		propertyId, propertyIdLength := util.FromVarint64(record[n:])
		if 0 == propertyIdLength {
			break unpack_switch
		}
		n += propertyIdLength

		amount, amountLength := util.FromVarint64(record[n:])
		if 0 == amountLength {
			break unpack_switch
		}
		n += amountLength
		if amount > MaxAmount {
			return nil, 0, fault.AmountOutOfRange
		}

		r := &SendPeggedCurrency{
			Version:    version,
			PropertyId: propertyId,
			Amount:     amount,
		}
		return r, n, nil

	case RedeemPeggedCurrencyTag:

		propertyId, propertyIdLength := util.FromVarint64(record[n:])
		if 0 == propertyIdLength {
			break unpack_switch
		}
		n += propertyIdLength

		amount, amountLength := util.FromVarint64(record[n:])
		if 0 == amountLength {
			break unpack_switch
		}
		n += amountLength
		if amount > MaxAmount {
			return nil, 0, fault.AmountOutOfRange
		}

		contractId, contractIdLength := util.FromVarint64(record[n:])
		if 0 == contractIdLength {
			break unpack_switch
		}
		n += contractIdLength

		r := &RedeemPeggedCurrency{
			Version:    version,
			PropertyId: propertyId,
			Amount:     amount,
			ContractId: contractId,
		}
		return r, n, nil

	case ActivateFeatureTag:

		featureId, featureIdLength := util.FromVarint64(record[n:])
		if 0 == featureIdLength {
			break unpack_switch
		}
		n += featureIdLength

		activationHeight, activationHeightLength := util.FromVarint64(record[n:])
		if 0 == activationHeightLength {
			break unpack_switch
		}
		n += activationHeightLength

		minClientVersion, minClientVersionLength := util.FromVarint64(record[n:])
		if 0 == minClientVersionLength {
			break unpack_switch
		}
		n += minClientVersionLength

		r := &ActivateFeature{
			Version:          version,
			FeatureId:        featureId,
			ActivationHeight: activationHeight,
			MinClientVersion: minClientVersion,
		}
		return r, n, nil

	case DeactivateFeatureTag:

		featureId, featureIdLength := util.FromVarint64(record[n:])
		if 0 == featureIdLength {
			break unpack_switch
		}
		n += featureIdLength

		r := &DeactivateFeature{
			Version:   version,
			FeatureId: featureId,
		}
		return r, n, nil

	case AlertTag:

		alertType, alertTypeLength := util.FromVarint64(record[n:])
		if 0 == alertTypeLength {
			break unpack_switch
		}
		n += alertTypeLength

		expiryValue, expiryValueLength := util.FromVarint64(record[n:])
		if 0 == expiryValueLength {
			break unpack_switch
		}
		n += expiryValueLength

		text, newN, err := unpackString(record, n)
		if nil != err {
			return nil, 0, err
		}
		n = newN

		r := &Alert{
			Version:     version,
			AlertType:   alertType,
			ExpiryValue: expiryValue,
			Text:        text,
		}
		return r, n, nil

	default:
		return nil, 0, fault.UnknownMessageType
	}
	return nil, 0, fault.MalformedPayload
}

// the common leading fields of all property creation messages
type propertyBase struct {
	ecosystem          uint64
	propertyType       uint64
	previousPropertyId uint64
	category           string
	subcategory        string
	name               string
	url                string
	data               string
}

func unpackPropertyBase(record Packed, n int) (*propertyBase, int, error) {

	ecosystem, ecosystemLength := util.FromVarint64(record[n:])
	if 0 == ecosystemLength {
		return nil, 0, fault.MalformedPayload
	}
	n += ecosystemLength

	propertyType, propertyTypeLength := util.FromVarint64(record[n:])
	if 0 == propertyTypeLength {
		return nil, 0, fault.MalformedPayload
	}
	n += propertyTypeLength

	previousPropertyId, previousPropertyIdLength := util.FromVarint64(record[n:])
	if 0 == previousPropertyIdLength {
		return nil, 0, fault.MalformedPayload
	}
	n += previousPropertyIdLength

	base := &propertyBase{
		ecosystem:          ecosystem,
		propertyType:       propertyType,
		previousPropertyId: previousPropertyId,
	}

	var err error
	base.category, n, err = unpackString(record, n)
	if nil != err {
		return nil, 0, err
	}
	base.subcategory, n, err = unpackString(record, n)
	if nil != err {
		return nil, 0, err
	}
	base.name, n, err = unpackString(record, n)
	if nil != err {
		return nil, 0, err
	}
	base.url, n, err = unpackString(record, n)
	if nil != err {
		return nil, 0, err
	}
	base.data, n, err = unpackString(record, n)
	if nil != err {
		return nil, 0, err
	}

	return base, n, nil
}

// scan a NUL terminated string field
// a scan that would run past the end of the payload is an error
func unpackString(record Packed, n int) (string, int, error) {

	if n >= len(record) {
		return "", 0, fault.MalformedPayload
	}

	end := bytes.IndexByte(record[n:], 0x00)
	if end < 0 {
		return "", 0, fault.StringNotTerminated
	}

	s := string(record[n : n+end])
	return s, n + end + 1, nil
}
