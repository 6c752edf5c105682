package models

import (
	"errors"
	"testing"

	"github.com/eaglebank/wallet/shared/errs"
	"github.com/eaglebank/wallet/shared/money"
)

func TestMovementRecordValidate(t *testing.T) {
	base := MovementRecord{
		AccountID: "acc-a",
		Kind:      MovementTransferOut,
		Amount:    money.MustParse("40.00"),
	}

	tests := []struct {
		name    string
		mutate  func(r *MovementRecord)
		wantErr bool
	}{
		{name: "transfer with counterparty", mutate: func(r *MovementRecord) { r.CounterpartyAccountID = "acc-b" }},
		{name: "transfer without counterparty", mutate: func(r *MovementRecord) {}, wantErr: true},
		{name: "deposit without counterparty", mutate: func(r *MovementRecord) { r.Kind = MovementDeposit }},
		{name: "deposit with counterparty", mutate: func(r *MovementRecord) {
			r.Kind = MovementDeposit
			r.CounterpartyAccountID = "acc-b"
		}, wantErr: true},
		{name: "unknown kind", mutate: func(r *MovementRecord) { r.Kind = "refund" }, wantErr: true},
		{name: "zero amount", mutate: func(r *MovementRecord) {
			r.CounterpartyAccountID = "acc-b"
			r.Amount = money.Zero
		}, wantErr: true},
		{name: "missing account", mutate: func(r *MovementRecord) {
			r.CounterpartyAccountID = "acc-b"
			r.AccountID = ""
		}, wantErr: true},
	}

	for _, tt := range tests {
		r := base
		tt.mutate(&r)
		err := r.Validate()
		if tt.wantErr {
			if !errors.Is(err, errs.ErrValidation) {
				t.Errorf("[%s] expected validation error, got %v", tt.name, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("[%s] unexpected error: %v", tt.name, err)
		}
	}
}

func TestTransferIntentValidate(t *testing.T) {
	valid := TransferIntent{
		TransferID:     "trf-1",
		FromAccountID:  "acc-a",
		ToAccountEmail: "bob@example.com",
		Amount:         money.MustParse("10.00"),
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid intent, got %v", err)
	}

	noKey := valid
	noKey.TransferID = " "
	if err := noKey.Validate(); !errors.Is(err, errs.ErrValidation) {
		t.Errorf("expected validation error for missing transferId, got %v", err)
	}

	zero := valid
	zero.Amount = money.Zero
	if err := zero.Validate(); !errors.Is(err, errs.ErrValidation) {
		t.Errorf("expected validation error for zero amount, got %v", err)
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Bob@Example.COM "); got != "bob@example.com" {
		t.Errorf("expected bob@example.com got %q", got)
	}
}
