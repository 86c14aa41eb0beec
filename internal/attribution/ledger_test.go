// Attribution Measurement Backend
// SPDX-License-Identifier: AGPL-3.0-or-later

package attribution

import "testing"

func TestLedgerFreshEntryHasConfiguredBudgetPlusGrace(t *testing.T) {
	l := newLedger(1_000_000, 1.0)
	snap := l.snapshot()
	if len(snap) != 0 {
		t.Fatalf("expected no entries before first touch")
	}

	ok := l.deduct("a.example", 0, 1.0, 0, 100, nil)
	if !ok {
		t.Fatalf("a zero-value deduction should always succeed")
	}
	entry := l.entryFor(budgetKey{"a.example", 0})
	if entry.remaining != 1_000_000+1000 {
		t.Errorf("remaining = %d, want %d", entry.remaining, 1_000_000+1000)
	}
}

func TestLedgerDeductSucceedsWithinBudget(t *testing.T) {
	l := newLedger(1_000_000, 1.0)
	l1 := int64(10)

	ok := l.deduct("a.example", 0, 1.0, 10, 100, &l1)
	if !ok {
		t.Fatalf("expected deduction to succeed")
	}

	entry := l.entryFor(budgetKey{"a.example", 0})
	if entry.remaining >= 1_000_000+1000 {
		t.Errorf("expected remaining to have decreased, got %d", entry.remaining)
	}
}

func TestLedgerDeductFailsAndZeroizesWhenExhausted(t *testing.T) {
	l := newLedger(100, 1.0)
	l1 := int64(1000)

	ok := l.deduct("a.example", 0, 1.0, 1000, 1000, &l1)
	if ok {
		t.Fatalf("expected deduction to fail against an exhausted budget")
	}
	entry := l.entryFor(budgetKey{"a.example", 0})
	if entry.remaining != 0 {
		t.Errorf("remaining after failed deduction = %d, want 0", entry.remaining)
	}
}

func TestLedgerDeductFailsAndZeroizesWhenRawExceedsMaxConversionEpsilon(t *testing.T) {
	l := newLedger(1_000_000, 0.001)
	l1 := int64(1000)

	ok := l.deduct("a.example", 0, 1.0, 1000, 1000, &l1)
	if ok {
		t.Fatalf("expected deduction to fail when raw epsilon exceeds the cap")
	}
	entry := l.entryFor(budgetKey{"a.example", 0})
	if entry.remaining != 0 {
		t.Errorf("remaining after capped-out deduction = %d, want 0", entry.remaining)
	}
}

func TestLedgerDistinctEpochsHaveIndependentBudgets(t *testing.T) {
	l := newLedger(100, 1.0)
	l1 := int64(1000)

	l.deduct("a.example", 0, 1.0, 1000, 1000, &l1) // exhausts epoch 0
	ok := l.deduct("a.example", 1, 1.0, 0, 100, nil)
	if !ok {
		t.Fatalf("epoch 1 must have its own independent budget")
	}
}

func TestLedgerClearAllResetsEntries(t *testing.T) {
	l := newLedger(100, 1.0)
	l.zero("a.example", 0)
	if len(l.snapshot()) != 1 {
		t.Fatalf("expected one entry after zero")
	}
	l.clearAll()
	if len(l.snapshot()) != 0 {
		t.Fatalf("expected clearAll to drop every entry")
	}
}

func TestLedgerDropSitesOnlyAffectsNamedSites(t *testing.T) {
	l := newLedger(100, 1.0)
	l.zero("a.example", 0)
	l.zero("b.example", 0)

	l.dropSites(map[Site]struct{}{"a.example": {}})

	snap := l.snapshot()
	if len(snap) != 1 || snap[0].Site != "b.example" {
		t.Fatalf("expected only b.example to survive dropSites, got %+v", snap)
	}
}

func TestLedgerKeepOnlySitesIsComplementOfDropSites(t *testing.T) {
	l := newLedger(100, 1.0)
	l.zero("a.example", 0)
	l.zero("b.example", 0)

	l.keepOnlySites(map[Site]struct{}{"a.example": {}})

	snap := l.snapshot()
	if len(snap) != 1 || snap[0].Site != "a.example" {
		t.Fatalf("expected only a.example to survive keepOnlySites, got %+v", snap)
	}
}
