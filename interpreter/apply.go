// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2020 TradeLayer
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package interpreter

import (
	"math"

	"github.com/tradelayer/tradelayerd/fault"
	"github.com/tradelayer/tradelayerd/ledger"
	"github.com/tradelayer/tradelayerd/message"
	"github.com/tradelayer/tradelayerd/property"
)

// contracts quote notional in whole units
const unitFactor = 1

// one basis point of the reserved margin funds the fee cache
const feeDivisor = 10000

func (i *Interpreter) applySimpleSend(env *message.Envelope, m message.Message) error {
	send := m.(*message.SimpleSend)

	if !i.registry.IsValid(send.PropertyId) {
		return fault.InvalidReference
	}
	if 0 == send.Amount {
		return fault.NothingToSend
	}

	// a blank receiver credits the sender
	receiver := env.Receiver
	if "" == receiver {
		receiver = env.Sender
	}

	// a send of the desired property to a crowdsale issuer is a
	// participation, not a plain transfer
	if crowdId, ok := i.registry.FindCrowdsale(receiver, send.PropertyId); ok && receiver != env.Sender {
		return i.participateCrowdsale(env, crowdId, receiver, send)
	}

	return i.ledger.Transfer(env.Sender, receiver, send.PropertyId, int64(send.Amount), ledger.Balance)
}

// crowdsale participation: the payment settles to the issuer and newly
// created tokens go to the participant, plus the issuer's percentage
func (i *Interpreter) participateCrowdsale(env *message.Envelope, crowdId uint64, receiver string, send *message.SimpleSend) error {
	crowdsale, err := i.registry.GetCrowdsale(crowdId)
	if nil != err {
		return err
	}

	// a participation at or past the deadline closes the sale;
	// the payment still settles but no tokens are created
	if env.BlockTime >= int64(crowdsale.Deadline) {
		err = i.ledger.Transfer(env.Sender, receiver, send.PropertyId, int64(send.Amount), ledger.Balance)
		if nil != err {
			return err
		}
		return i.registry.CloseCrowdsale(crowdId)
	}

	participantTokens, issuerTokens, err := crowdsaleTokens(int64(send.Amount), crowdsale)
	if nil != err {
		return err
	}

	err = i.ledger.Transfer(env.Sender, receiver, send.PropertyId, int64(send.Amount), ledger.Balance)
	if nil != err {
		return err
	}

	if participantTokens > 0 {
		err = i.ledger.Update(env.Sender, crowdId, participantTokens, ledger.Balance)
		if nil != err {
			restoreError := i.ledger.Transfer(receiver, env.Sender, send.PropertyId, int64(send.Amount), ledger.Balance)
			if nil != restoreError {
				i.log.Criticalf("participation rollback failed for %s: %s", env.Sender, restoreError)
			}
			return err
		}
	}
	if issuerTokens > 0 {
		err = i.ledger.Update(receiver, crowdId, issuerTokens, ledger.Balance)
		if nil != err {
			if participantTokens > 0 {
				restoreError := i.ledger.Update(env.Sender, crowdId, -participantTokens, ledger.Balance)
				if nil != restoreError {
					i.log.Criticalf("participation rollback failed for %s: %s", env.Sender, restoreError)
				}
			}
			restoreError := i.ledger.Transfer(receiver, env.Sender, send.PropertyId, int64(send.Amount), ledger.Balance)
			if nil != restoreError {
				i.log.Criticalf("participation rollback failed for %s: %s", env.Sender, restoreError)
			}
			return err
		}
	}
	return i.registry.AddRaised(crowdId, int64(send.Amount))
}

// token yield of one participation, overflow checked
func crowdsaleTokens(amount int64, crowdsale property.CrowdsaleRecord) (int64, int64, error) {
	tokensPerUnit := int64(crowdsale.TokensPerUnit)
	if 0 == tokensPerUnit {
		return 0, 0, nil
	}
	if amount > math.MaxInt64/tokensPerUnit {
		return 0, 0, fault.AmountOutOfRange
	}
	participant := amount * tokensPerUnit

	// flat early bird bonus percentage while the sale is open
	bonus := int64(crowdsale.EarlyBonus)
	if bonus > 0 {
		if participant > math.MaxInt64/(bonus+100) {
			return 0, 0, fault.AmountOutOfRange
		}
		participant = participant * (bonus + 100) / 100
	}

	issuer := int64(0)
	percentage := int64(crowdsale.IssuerPercentage)
	if percentage > 0 {
		if participant > math.MaxInt64/percentage {
			return 0, 0, fault.AmountOutOfRange
		}
		issuer = participant * percentage / 100
	}
	return participant, issuer, nil
}

func (i *Interpreter) applySendAll(env *message.Envelope, m message.Message) error {
	sendAll := m.(*message.SendAll)

	if "" == env.Receiver {
		return fault.InvalidReference
	}
	if message.EcosystemMain != sendAll.Ecosystem && message.EcosystemTest != sendAll.Ecosystem {
		return fault.InvalidEcosystem
	}

	moved := 0
	for _, propertyId := range i.ledger.PropertiesOwned(env.Sender) {
		if property.EcosystemOf(propertyId) != sendAll.Ecosystem {
			continue
		}
		amount := i.ledger.GetBalance(env.Sender, propertyId, ledger.Balance)
		err := i.ledger.Transfer(env.Sender, env.Receiver, propertyId, amount, ledger.Balance)
		if nil != err {
			return err
		}
		moved += 1
	}
	if 0 == moved {
		return fault.NothingToSend
	}
	return nil
}

func (i *Interpreter) applyCreateFixedProperty(env *message.Envelope, m message.Message) error {
	create := m.(*message.CreateFixedProperty)

	if "" == create.Name {
		return fault.PropertyNameMissing
	}
	if 0 == create.Amount {
		return fault.NothingToSend
	}

	id, err := i.registry.Create(property.Record{
		Issuer:             env.Sender,
		Ecosystem:          create.Ecosystem,
		PropertyType:       create.PropertyType,
		PreviousPropertyId: create.PreviousPropertyId,
		Category:           create.Category,
		Subcategory:        create.Subcategory,
		Name:               create.Name,
		URL:                create.URL,
		Data:               create.Data,
		Class:              property.Fixed,
		FixedSupply:        int64(create.Amount),
	}, env.Height, env.TxId)
	if nil != err {
		return err
	}

	// the whole supply exists from the moment of creation
	err = i.ledger.Update(env.Sender, id, int64(create.Amount), ledger.Balance)
	if nil != err {
		i.registry.PopBlock(env.Height)
		return err
	}
	return nil
}

func (i *Interpreter) applyCreateCrowdsaleProperty(env *message.Envelope, m message.Message) error {
	create := m.(*message.CreateCrowdsaleProperty)

	if "" == create.Name {
		return fault.PropertyNameMissing
	}
	if !i.registry.IsValid(create.DesiredProperty) {
		return fault.InvalidReference
	}
	if property.EcosystemOf(create.DesiredProperty) != create.Ecosystem {
		return fault.EcosystemMismatch
	}
	if int64(create.Deadline) <= env.BlockTime {
		return fault.CrowdsaleNotOpen
	}

	id, err := i.registry.Create(property.Record{
		Issuer:             env.Sender,
		Ecosystem:          create.Ecosystem,
		PropertyType:       create.PropertyType,
		PreviousPropertyId: create.PreviousPropertyId,
		Category:           create.Category,
		Subcategory:        create.Subcategory,
		Name:               create.Name,
		URL:                create.URL,
		Data:               create.Data,
		Class:              property.Crowdsale,
	}, env.Height, env.TxId)
	if nil != err {
		return err
	}

	// no minting here: tokens only come from participation
	return i.registry.OpenCrowdsale(property.CrowdsaleRecord{
		PropertyId:       id,
		DesiredProperty:  create.DesiredProperty,
		TokensPerUnit:    create.TokensPerUnit,
		Deadline:         create.Deadline,
		EarlyBonus:       create.EarlyBonus,
		IssuerPercentage: create.IssuerPercentage,
	})
}

func (i *Interpreter) applyCloseCrowdsale(env *message.Envelope, m message.Message) error {
	closeMsg := m.(*message.CloseCrowdsale)

	record, err := i.registry.Get(closeMsg.PropertyId)
	if nil != err {
		return err
	}
	if env.Sender != record.Issuer {
		return fault.AuthorizationFailure
	}
	return i.registry.CloseCrowdsale(closeMsg.PropertyId)
}

func (i *Interpreter) applyCreateManagedProperty(env *message.Envelope, m message.Message) error {
	create := m.(*message.CreateManagedProperty)

	if "" == create.Name {
		return fault.PropertyNameMissing
	}

	_, err := i.registry.Create(property.Record{
		Issuer:             env.Sender,
		Ecosystem:          create.Ecosystem,
		PropertyType:       create.PropertyType,
		PreviousPropertyId: create.PreviousPropertyId,
		Category:           create.Category,
		Subcategory:        create.Subcategory,
		Name:               create.Name,
		URL:                create.URL,
		Data:               create.Data,
		Class:              property.Managed,
	}, env.Height, env.TxId)
	return err
}

func (i *Interpreter) applyGrantTokens(env *message.Envelope, m message.Message) error {
	grant := m.(*message.GrantTokens)

	record, err := i.registry.Get(grant.PropertyId)
	if nil != err {
		return err
	}
	if !record.IsManageable() {
		return fault.NotManageableProperty
	}
	if env.Sender != record.Issuer {
		return fault.AuthorizationFailure
	}
	if 0 == grant.Amount {
		return fault.NothingToSend
	}

	// granted tokens go to the receiver when given, else to the issuer
	receiver := env.Receiver
	if "" == receiver {
		receiver = env.Sender
	}
	return i.ledger.Update(receiver, grant.PropertyId, int64(grant.Amount), ledger.Balance)
}

func (i *Interpreter) applyRevokeTokens(env *message.Envelope, m message.Message) error {
	revoke := m.(*message.RevokeTokens)

	record, err := i.registry.Get(revoke.PropertyId)
	if nil != err {
		return err
	}
	if !record.IsManageable() {
		return fault.NotManageableProperty
	}
	if env.Sender != record.Issuer {
		return fault.AuthorizationFailure
	}
	if 0 == revoke.Amount {
		return fault.NothingToSend
	}

	// revocation burns from the issuer's own balance only
	if i.ledger.GetBalance(env.Sender, revoke.PropertyId, ledger.Balance) < int64(revoke.Amount) {
		return fault.InsufficientFunds
	}
	return i.ledger.Update(env.Sender, revoke.PropertyId, -int64(revoke.Amount), ledger.Balance)
}

func (i *Interpreter) applyChangeIssuer(env *message.Envelope, m message.Message) error {
	change := m.(*message.ChangeIssuer)

	if "" == env.Receiver {
		return fault.InvalidReference
	}
	return i.registry.ChangeIssuer(change.PropertyId, env.Sender, env.Receiver)
}

func (i *Interpreter) applyCreateContract(env *message.Envelope, m message.Message) error {
	create := m.(*message.CreateContract)

	if "" == create.Name {
		return fault.PropertyNameMissing
	}
	if !i.registry.IsValid(create.CollateralCurrency) {
		return fault.InvalidReference
	}
	if 0 == create.MarginRequirement {
		return fault.MalformedPayload
	}

	_, err := i.registry.Create(property.Record{
		Issuer:             env.Sender,
		Ecosystem:          create.Ecosystem,
		Name:               create.Name,
		Class:              property.Contract,
		ExpiryBlocks:       create.ExpiryBlocks,
		NotionalSize:       create.NotionalSize,
		CollateralCurrency: create.CollateralCurrency,
		MarginRequirement:  create.MarginRequirement,
	}, env.Height, env.TxId)
	return err
}

func (i *Interpreter) applyContractTrade(env *message.Envelope, m message.Message) error {
	trade := m.(*message.ContractTrade)

	record, err := i.registry.Get(trade.ContractId)
	if nil != err {
		return err
	}
	if property.Contract != record.Class {
		return fault.NotContractProperty
	}
	if 0 == trade.Amount {
		return fault.NothingToSend
	}

	margin, err := requiredMargin(trade.Amount, record.MarginRequirement)
	if nil != err {
		return err
	}

	// reserve the margin before the order is known to the engine
	err = i.ledger.Move(env.Sender, record.CollateralCurrency, margin, ledger.Balance, ledger.ContractdexReserve)
	if nil != err {
		return err
	}

	// the trading fee comes out of the remaining available balance
	fee := margin / feeDivisor
	if fee > 0 {
		err = i.ledger.Update(env.Sender, record.CollateralCurrency, -fee, ledger.Balance)
		if nil != err {
			releaseError := i.ledger.Move(env.Sender, record.CollateralCurrency, margin, ledger.ContractdexReserve, ledger.Balance)
			if nil != releaseError {
				i.log.Criticalf("margin release failed for %s: %s", env.Sender, releaseError)
			}
			return fault.InsufficientFunds
		}
	}

	if nil != i.engine {
		err = i.engine.SubmitOrder(Order{
			Address:        env.Sender,
			ContractId:     trade.ContractId,
			Amount:         int64(trade.Amount),
			EffectivePrice: trade.EffectivePrice,
			Side:           trade.Side,
			Height:         env.Height,
		})
		if nil != err {
			// engine refused: refund the fee and release the reservation
			if fee > 0 {
				refundError := i.ledger.Update(env.Sender, record.CollateralCurrency, fee, ledger.Balance)
				if nil != refundError {
					i.log.Criticalf("fee refund failed for %s: %s", env.Sender, refundError)
				}
			}
			releaseError := i.ledger.Move(env.Sender, record.CollateralCurrency, margin, ledger.ContractdexReserve, ledger.Balance)
			if nil != releaseError {
				i.log.Criticalf("margin release failed for %s: %s", env.Sender, releaseError)
			}
			return err
		}
	}

	if fee > 0 {
		i.fees.Record(record.CollateralCurrency, fee)
	}
	return nil
}

// margin = amount × marginRequirement × unitFactor, overflow checked
func requiredMargin(amount uint64, marginRequirement uint64) (int64, error) {
	if 0 == marginRequirement {
		return 0, fault.NotContractProperty
	}
	if amount > math.MaxInt64/(marginRequirement*unitFactor) {
		return 0, fault.AmountOutOfRange
	}
	return int64(amount * marginRequirement * unitFactor), nil
}

func (i *Interpreter) applyCancelContractOrders(env *message.Envelope, m message.Message) error {
	cancel := m.(*message.CancelContractOrders)

	record, err := i.registry.Get(cancel.ContractId)
	if nil != err {
		return err
	}
	if property.Contract != record.Class {
		return fault.NotContractProperty
	}

	if nil != i.engine {
		return i.engine.CancelOrders(env.Sender, cancel.ContractId)
	}

	// without an engine nothing is resting, release the whole reserve
	reserved := i.ledger.GetBalance(env.Sender, record.CollateralCurrency, ledger.ContractdexReserve)
	if 0 == reserved {
		return nil
	}
	return i.ledger.Move(env.Sender, record.CollateralCurrency, reserved, ledger.ContractdexReserve, ledger.Balance)
}

func (i *Interpreter) applyCreatePeggedCurrency(env *message.Envelope, m message.Message) error {
	create := m.(*message.CreatePeggedCurrency)

	contract, err := i.registry.Get(create.ContractId)
	if nil != err {
		return err
	}
	if property.Contract != contract.Class {
		return fault.NotContractProperty
	}
	if !i.registry.IsValid(create.PropertyId) {
		return fault.InvalidReference
	}
	if "" == create.Name {
		return fault.PropertyNameMissing
	}
	if 0 == create.Amount {
		return fault.NothingToSend
	}

	// the pegged supply is fully collateralised at creation
	err = i.ledger.Move(env.Sender, contract.CollateralCurrency, int64(create.Amount), ledger.Balance, ledger.ContractdexReserve)
	if nil != err {
		return err
	}

	id, err := i.registry.Create(property.Record{
		Issuer:       env.Sender,
		Ecosystem:    contract.Ecosystem,
		PropertyType: 2,
		Name:         create.Name,
		Class:        property.Pegged,
		ContractId:   create.ContractId,
	}, env.Height, env.TxId)
	if nil != err {
		releaseError := i.ledger.Move(env.Sender, contract.CollateralCurrency, int64(create.Amount), ledger.ContractdexReserve, ledger.Balance)
		if nil != releaseError {
			i.log.Criticalf("collateral release failed for %s: %s", env.Sender, releaseError)
		}
		return err
	}
	return i.ledger.Update(env.Sender, id, int64(create.Amount), ledger.Balance)
}

func (i *Interpreter) applySendPeggedCurrency(env *message.Envelope, m message.Message) error {
	send := m.(*message.SendPeggedCurrency)

	record, err := i.registry.Get(send.PropertyId)
	if nil != err {
		return err
	}
	if property.Pegged != record.Class {
		return fault.NotPeggedProperty
	}
	if 0 == send.Amount {
		return fault.NothingToSend
	}

	receiver := env.Receiver
	if "" == receiver {
		receiver = env.Sender
	}
	return i.ledger.Transfer(env.Sender, receiver, send.PropertyId, int64(send.Amount), ledger.Balance)
}

func (i *Interpreter) applyRedeemPeggedCurrency(env *message.Envelope, m message.Message) error {
	redeem := m.(*message.RedeemPeggedCurrency)

	record, err := i.registry.Get(redeem.PropertyId)
	if nil != err {
		return err
	}
	if property.Pegged != record.Class {
		return fault.NotPeggedProperty
	}
	if 0 == redeem.Amount {
		return fault.NothingToSend
	}
	if i.ledger.GetBalance(env.Sender, redeem.PropertyId, ledger.Balance) < int64(redeem.Amount) {
		return fault.InsufficientFunds
	}

	contract, err := i.registry.Get(record.ContractId)
	if nil != err {
		return err
	}

	// burn the pegged tokens, then give back the collateral
	err = i.ledger.Update(env.Sender, redeem.PropertyId, -int64(redeem.Amount), ledger.Balance)
	if nil != err {
		return err
	}
	err = i.ledger.Move(env.Sender, contract.CollateralCurrency, int64(redeem.Amount), ledger.ContractdexReserve, ledger.Balance)
	if nil != err {
		restoreError := i.ledger.Update(env.Sender, redeem.PropertyId, int64(redeem.Amount), ledger.Balance)
		if nil != restoreError {
			i.log.Criticalf("redeem restore failed for %s: %s", env.Sender, restoreError)
		}
		return err
	}
	return nil
}

func (i *Interpreter) applyActivateFeature(env *message.Envelope, m message.Message) error {
	activate := m.(*message.ActivateFeature)

	if !i.gate.IsAuthorized(env.Sender) {
		return fault.AuthorizationFailure
	}

	err := i.gate.ActivateFeature(activate.FeatureId, activate.ActivationHeight, activate.MinClientVersion, env.Height, i.replay)
	if nil != err {
		return err
	}
	if nil != i.notifier {
		i.notifier.FeatureActivated(activate.FeatureId, activate.ActivationHeight)
	}
	return nil
}

func (i *Interpreter) applyDeactivateFeature(env *message.Envelope, m message.Message) error {
	deactivate := m.(*message.DeactivateFeature)

	if !i.gate.IsAuthorized(env.Sender) {
		return fault.AuthorizationFailure
	}
	return i.gate.DeactivateFeature(deactivate.FeatureId, env.Height)
}

func (i *Interpreter) applyAlert(env *message.Envelope, m message.Message) error {
	alert := m.(*message.Alert)

	if !i.gate.IsAuthorized(env.Sender) {
		return fault.AuthorizationFailure
	}

	i.log.Warnf("alert type %d until %d: %s", alert.AlertType, alert.ExpiryValue, alert.Text)
	if nil != i.notifier {
		i.notifier.Alert(alert.AlertType, alert.ExpiryValue, alert.Text)
	}
	return nil
}
