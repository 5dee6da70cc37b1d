// SPDX-License-Identifier: ISC
// Copyright (c) 2019-2020 TradeLayer
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ledger_test

import (
	"bytes"
	"os"
	"testing"

	"github.com/tradelayer/tradelayerd/fault"
	"github.com/tradelayer/tradelayerd/fixtures"
	"github.com/tradelayer/tradelayerd/ledger"
)

func TestMain(m *testing.M) {
	fixtures.SetupTestLogger()
	rc := m.Run()
	fixtures.TeardownTestLogger()
	os.Exit(rc)
}

const (
	alice = "mvayMZNrg4zhDsYyzn7B6mSnWuRzHVjmZW"
	bob   = "moQR7i8XM4rSGoNwEsw3h4YEuduuP6mxw7"
	carol = "muQQN6qhhrYz9TvM7sBSjMU9j6GKCWLtWC"
)

func TestUpdateAndGetBalance(t *testing.T) {
	l := ledger.New()

	if 0 != l.GetBalance(alice, 31, ledger.Balance) {
		t.Fatalf("fresh ledger has a non zero balance")
	}

	err := l.Update(alice, 31, 1000, ledger.Balance)
	if nil != err {
		t.Fatalf("update error: %s", err)
	}
	if 1000 != l.GetBalance(alice, 31, ledger.Balance) {
		t.Errorf("balance: %d  expected: 1000", l.GetBalance(alice, 31, ledger.Balance))
	}

	// other balance types of the same entry stay zero
	if 0 != l.GetBalance(alice, 31, ledger.SellOfferReserve) {
		t.Errorf("reserve: %d  expected: 0", l.GetBalance(alice, 31, ledger.SellOfferReserve))
	}
}

func TestUpdateRejections(t *testing.T) {
	l := ledger.New()

	err := l.Update(alice, 31, 0, ledger.Balance)
	if fault.ZeroDeltaUpdate != err {
		t.Errorf("zero delta: %v  expected: %v", err, fault.ZeroDeltaUpdate)
	}

	// unsigned balance types cannot go below zero
	err = l.Update(alice, 31, -1, ledger.Balance)
	if fault.BalanceWouldGoNegative != err {
		t.Errorf("negative: %v  expected: %v", err, fault.BalanceWouldGoNegative)
	}

	// signed types can
	err = l.Update(alice, 31, -5, ledger.Pending)
	if nil != err {
		t.Errorf("pending negative: %v  expected success", err)
	}
	if -5 != l.GetBalance(alice, 31, ledger.Pending) {
		t.Errorf("pending: %d  expected: -5", l.GetBalance(alice, 31, ledger.Pending))
	}

	// overflow clamps at 2^63-1
	err = l.Update(bob, 31, 1<<62, ledger.Balance)
	if nil != err {
		t.Fatalf("update error: %s", err)
	}
	err = l.Update(bob, 31, 1<<62, ledger.Balance)
	if nil != err {
		t.Fatalf("update error: %s", err)
	}
	err = l.Update(bob, 31, 1, ledger.Balance)
	if fault.BalanceOverflow != err {
		t.Errorf("overflow: %v  expected: %v", err, fault.BalanceOverflow)
	}
}

func TestZeroRowTrimming(t *testing.T) {
	l := ledger.New()

	err := l.Update(alice, 31, 100, ledger.Balance)
	if nil != err {
		t.Fatalf("update error: %s", err)
	}
	err = l.Update(alice, 31, -100, ledger.Balance)
	if nil != err {
		t.Fatalf("update error: %s", err)
	}

	// emptied row must vanish from owned properties and the snapshot
	if ids := l.PropertiesOwned(alice); 0 != len(ids) {
		t.Errorf("owned: %v  expected: empty", ids)
	}

	buffer := &bytes.Buffer{}
	err = l.Save(buffer)
	if nil != err {
		t.Fatalf("save error: %s", err)
	}
	if 0 != buffer.Len() {
		t.Errorf("snapshot not empty: %q", buffer.String())
	}
}

func TestTransferConservation(t *testing.T) {
	l := ledger.New()

	err := l.Update(alice, 31, 1000000, ledger.Balance)
	if nil != err {
		t.Fatalf("update error: %s", err)
	}

	before := l.CirculatingSupply(31)

	err = l.Transfer(alice, bob, 31, 250000, ledger.Balance)
	if nil != err {
		t.Fatalf("transfer error: %s", err)
	}

	if 750000 != l.GetBalance(alice, 31, ledger.Balance) {
		t.Errorf("sender: %d  expected: 750000", l.GetBalance(alice, 31, ledger.Balance))
	}
	if 250000 != l.GetBalance(bob, 31, ledger.Balance) {
		t.Errorf("receiver: %d  expected: 250000", l.GetBalance(bob, 31, ledger.Balance))
	}
	if before != l.CirculatingSupply(31) {
		t.Errorf("supply: %d  expected: %d", l.CirculatingSupply(31), before)
	}

	// insufficient funds leaves both sides untouched
	err = l.Transfer(bob, carol, 31, 250001, ledger.Balance)
	if fault.InsufficientFunds != err {
		t.Errorf("transfer: %v  expected: %v", err, fault.InsufficientFunds)
	}
	if 250000 != l.GetBalance(bob, 31, ledger.Balance) {
		t.Errorf("sender after failure: %d  expected: 250000", l.GetBalance(bob, 31, ledger.Balance))
	}
	if 0 != l.GetBalance(carol, 31, ledger.Balance) {
		t.Errorf("receiver after failure: %d  expected: 0", l.GetBalance(carol, 31, ledger.Balance))
	}

	// transfer to self is a valid no-op
	err = l.Transfer(alice, alice, 31, 100, ledger.Balance)
	if nil != err {
		t.Errorf("self transfer: %v  expected success", err)
	}
	if 750000 != l.GetBalance(alice, 31, ledger.Balance) {
		t.Errorf("self transfer balance: %d  expected: 750000", l.GetBalance(alice, 31, ledger.Balance))
	}
}

func TestMoveBetweenBalanceTypes(t *testing.T) {
	l := ledger.New()

	err := l.Update(alice, 31, 500, ledger.Balance)
	if nil != err {
		t.Fatalf("update error: %s", err)
	}

	err = l.Move(alice, 31, 200, ledger.Balance, ledger.ContractdexReserve)
	if nil != err {
		t.Fatalf("move error: %s", err)
	}
	if 300 != l.GetBalance(alice, 31, ledger.Balance) {
		t.Errorf("balance: %d  expected: 300", l.GetBalance(alice, 31, ledger.Balance))
	}
	if 200 != l.GetBalance(alice, 31, ledger.ContractdexReserve) {
		t.Errorf("reserve: %d  expected: 200", l.GetBalance(alice, 31, ledger.ContractdexReserve))
	}

	err = l.Move(alice, 31, 301, ledger.Balance, ledger.ContractdexReserve)
	if fault.InsufficientFunds != err {
		t.Errorf("move: %v  expected: %v", err, fault.InsufficientFunds)
	}
}

func TestPropertiesOwned(t *testing.T) {
	l := ledger.New()

	for _, propertyId := range []uint64{9, 3, 31} {
		err := l.Update(alice, propertyId, 10, ledger.Balance)
		if nil != err {
			t.Fatalf("update error: %s", err)
		}
	}
	// a reserve only entry does not count as owned
	err := l.Update(alice, 40, 10, ledger.SellOfferReserve)
	if nil != err {
		t.Fatalf("update error: %s", err)
	}

	ids := l.PropertiesOwned(alice)
	expected := []uint64{3, 9, 31}
	if len(expected) != len(ids) {
		t.Fatalf("owned: %v  expected: %v", ids, expected)
	}
	for i, id := range expected {
		if id != ids[i] {
			t.Errorf("owned[%d]: %d  expected: %d", i, ids[i], id)
		}
	}
}

func TestSaveRestoreRoundTrip(t *testing.T) {
	l := ledger.New()

	updates := []struct {
		address    string
		propertyId uint64
		delta      int64
		balance    ledger.BalanceType
	}{
		{alice, 31, 1000000, ledger.Balance},
		{alice, 31, 500, ledger.SellOfferReserve},
		{alice, 3, -20, ledger.Pending},
		{bob, 31, 250000, ledger.Balance},
		{carol, 2147483651, 99, ledger.Unvested},
	}
	for i, u := range updates {
		err := l.Update(u.address, u.propertyId, u.delta, u.balance)
		if nil != err {
			t.Fatalf("%d: update error: %s", i, err)
		}
	}

	first := &bytes.Buffer{}
	err := l.Save(first)
	if nil != err {
		t.Fatalf("save error: %s", err)
	}

	restored := ledger.New()
	err = restored.Restore(bytes.NewReader(first.Bytes()))
	if nil != err {
		t.Fatalf("restore error: %s", err)
	}

	second := &bytes.Buffer{}
	err = restored.Save(second)
	if nil != err {
		t.Fatalf("save error: %s", err)
	}

	// identical state must serialize byte identical
	if !bytes.Equal(first.Bytes(), second.Bytes()) {
		t.Errorf("round trip changed snapshot:\n%q\n%q", first.String(), second.String())
	}

	if l.ConsensusHash() != restored.ConsensusHash() {
		t.Errorf("consensus hash changed across restore")
	}
}

func TestRestoreCorrupt(t *testing.T) {
	corrupt := []string{
		"no-separators-at-all\n",
		"addr=x:0,0,0,0,0,0,0,0,0\n",
		"addr=31:1,2,3\n",
		"addr=31:1,2,3,4,5,6,7,8,bad\n",
	}
	for i, text := range corrupt {
		l := ledger.New()
		err := l.Restore(bytes.NewReader([]byte(text)))
		if fault.PersistenceCorruption != err {
			t.Errorf("%d: restore: %v  expected: %v", i, err, fault.PersistenceCorruption)
		}
	}
}

func TestConsensusHashDeterminism(t *testing.T) {
	build := func() *ledger.Ledger {
		l := ledger.New()
		_ = l.Update(bob, 7, 50, ledger.Balance)
		_ = l.Update(alice, 31, 100, ledger.Balance)
		_ = l.Update(alice, 7, 25, ledger.MetadexReserve)
		return l
	}

	first := build()
	second := build()
	if first.ConsensusHash() != second.ConsensusHash() {
		t.Errorf("same state produced different hashes")
	}

	err := second.Update(alice, 31, 1, ledger.Balance)
	if nil != err {
		t.Fatalf("update error: %s", err)
	}
	if first.ConsensusHash() == second.ConsensusHash() {
		t.Errorf("different state produced identical hashes")
	}
}
