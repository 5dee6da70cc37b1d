// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2020 TradeLayer
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package fault

// GenericError - error base
type GenericError string

// to allow for different classes of errors
type ExistsError GenericError
type InvalidError GenericError
type LengthError GenericError
type NotFoundError GenericError
type ProcessError GenericError

// common errors - keep in alphabetic order
var (
	AlreadyInitialised   = ProcessError("already initialised")
	InitialisationFailed = ProcessError("initialisation failed")
	InvalidChain         = InvalidError("invalid chain")
	InvalidLoggerChannel = InvalidError("invalid logger channel")
	InvalidSnapshotDir   = InvalidError("invalid snapshot directory")
	NotInitialised       = ProcessError("not initialised")
	ShuttingDown         = ProcessError("shutting down")
)

// message decoding errors
var (
	AmountOutOfRange    = InvalidError("amount out of range")
	MalformedPayload    = InvalidError("malformed payload")
	PayloadTooLong      = LengthError("payload too long")
	StringNotTerminated = InvalidError("string field is not NUL terminated")
	UnknownMessageType  = InvalidError("unknown message type")
	WrongEncodingClass  = InvalidError("wrong encoding class")
)

// interpreter rejection errors
var (
	AuthorizationFailure  = InvalidError("sender is not authorized")
	ConsensusNotAllowed   = ProcessError("message type is not yet activated")
	CrowdsaleNotOpen      = ProcessError("crowdsale is not open")
	EcosystemMismatch     = InvalidError("property is in a different ecosystem")
	InsufficientFunds     = ProcessError("insufficient funds")
	InsufficientPosition  = ProcessError("insufficient position")
	InvalidEcosystem      = InvalidError("invalid ecosystem")
	InvalidReference      = NotFoundError("unknown property or contract")
	NotContractProperty   = InvalidError("property is not a contract")
	NotManageableProperty = InvalidError("property is not manageable")
	NotPeggedProperty     = InvalidError("property is not a pegged currency")
	NothingToSend         = ProcessError("nothing was sent")
	PropertyNameMissing   = InvalidError("property name is required")
	SelfTradeNotAllowed   = InvalidError("trade with self is not allowed")
)

// ledger errors
var (
	BalanceOverflow        = ProcessError("balance overflow")
	BalanceWouldGoNegative = ProcessError("balance would go negative")
	ZeroDeltaUpdate        = InvalidError("zero delta balance update")
)

// activation errors
var (
	FeatureAlreadyActive = ExistsError("feature is already active")
	FeatureNotActive     = NotFoundError("feature is not active")
	FeatureUnknown       = NotFoundError("feature id is unknown")
	NoticePeriodTooLong  = InvalidError("activation notice period is too long")
	NoticePeriodTooShort = InvalidError("activation notice period is too short")
)

// host chain access errors
var (
	BlockNotFound = NotFoundError("block not found")
	ChainMismatch = InvalidError("host chain network mismatch")
)

// persistence errors
var (
	CheckpointMismatch    = ProcessError("consensus checkpoint mismatch")
	MissingWatermark      = NotFoundError("no usable watermark")
	PersistenceCorruption = ProcessError("snapshot file is corrupted")
	SnapshotNotFound      = NotFoundError("no usable snapshot")
)

// the error interface base method
func (e GenericError) Error() string { return string(e) }

// the error interface methods
func (e ExistsError) Error() string   { return string(e) }
func (e InvalidError) Error() string  { return string(e) }
func (e LengthError) Error() string   { return string(e) }
func (e NotFoundError) Error() string { return string(e) }
func (e ProcessError) Error() string  { return string(e) }

// IsErrExists - determine the class of an error
func IsErrExists(e error) bool { _, ok := e.(ExistsError); return ok }

// IsErrInvalid - determine the class of an error
func IsErrInvalid(e error) bool { _, ok := e.(InvalidError); return ok }

// IsErrLength - determine the class of an error
func IsErrLength(e error) bool { _, ok := e.(LengthError); return ok }

// IsErrNotFound - determine the class of an error
func IsErrNotFound(e error) bool { _, ok := e.(NotFoundError); return ok }

// IsErrProcess - determine the class of an error
func IsErrProcess(e error) bool { _, ok := e.(ProcessError); return ok }
