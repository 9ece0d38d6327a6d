package memory

import (
	"context"
	"fmt"
	"testing"

	"fintrack/internal/core"
	"fintrack/internal/sheets"
)

func TestMemoryStoreAppendAndList(t *testing.T) {
	s := New()
	ctx := context.Background()

	rows := []sheets.LedgerRow{
		{Date: core.NewDate(2024, 12, 30), Type: core.Expense, Category: "Food & Dining", Amount: 12.5, Source: sheets.SourceExpense, EntityID: "e1"},
		{Date: core.NewDate(2025, 4, 1), Type: core.Income, Category: "Salary", Amount: 2500, Source: sheets.SourceTransaction, EntityID: "t1"},
	}
	for i, r := range rows {
		ref, err := s.Append(ctx, r)
		if err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
		if want := fmt.Sprintf("mem:%d", i+1); ref != want {
			t.Errorf("ref = %q, want %q", ref, want)
		}
	}

	got, err := s.ListRows(ctx, 2025)
	if err != nil {
		t.Fatalf("ListRows: %v", err)
	}
	if len(got) != 1 || got[0].EntityID != "t1" {
		t.Fatalf("unexpected rows for 2025: %+v", got)
	}
	if len(s.Rows()) != 2 {
		t.Errorf("expected 2 rows in total, got %d", len(s.Rows()))
	}
}

func TestMemoryStoreRejectsInvalidRow(t *testing.T) {
	s := New()
	_, err := s.Append(context.Background(), sheets.LedgerRow{Date: core.NewDate(2025, 1, 1), Type: core.Expense, Category: "Food"})
	if err == nil {
		t.Fatal("expected error for zero amount")
	}
	if len(s.Rows()) != 0 {
		t.Error("invalid row should not be stored")
	}
}
