package kasa

import (
	"testing"
)

func TestParseSide(t *testing.T) {
	tests := []struct {
		in      string
		want    Side
		wantErr bool
	}{
		{in: "buy", want: Buy},
		{in: " SELL", want: Sell},
		{in: "hold", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseSide(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseSide(%q) = %q, %v, want %q (error %v)", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestNewTransaction(t *testing.T) {
	a := NewBuy(day(1), XAU, Q(1), TRY(2000), TRY(0), "")
	b := NewBuy(day(1), XAU, Q(1), TRY(2000), TRY(0), "")
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("NewBuy() ids = %q, %q, want unique non empty ids", a.ID, b.ID)
	}
	if got := a.Gross(); !got.Equal(TRY(2000)) {
		t.Errorf("Gross() = %v, want 2000", got.Decimal())
	}
	if err := a.Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	tx := Transaction{Asset: "GOLD", Side: "HOLD", Quantity: Q(-1), UnitPrice: TRY(0), Fee: TRY(-1)}
	err := tx.Validate()
	if err == nil {
		t.Fatal("Validate() expected error")
	}
	u, ok := err.(interface{ Unwrap() error })
	if !ok {
		t.Fatalf("Validate() error %T does not wrap", err)
	}
	joined, ok := u.Unwrap().(interface{ Unwrap() []error })
	if !ok {
		t.Fatalf("Validate() error does not join its causes")
	}
	if n := len(joined.Unwrap()); n != 6 {
		t.Errorf("Validate() reported %d problems, want 6: %v", n, err)
	}
}
