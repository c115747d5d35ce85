package core

import "testing"

func TestParseDecimalToCents(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{"simple dot", "12.34", 1234, false},
		{"comma separator", "12,34", 1234, false},
		{"integer only", "800", 80000, false},
		{"single fractional digit", "5.1", 510, false},
		{"third digit rounds down", "12.344", 1234, false},
		{"third digit rounds up", "12.345", 1235, false},
		{"leading dot", ".50", 50, false},
		{"whitespace trimmed", "  7.00 ", 700, false},
		{"empty", "", 0, true},
		{"negative rejected", "-1.00", 0, true},
		{"plus sign rejected", "+1.00", 0, true},
		{"zero rejected", "0", 0, true},
		{"zero decimal rejected", "0.00", 0, true},
		{"letters rejected", "12a.34", 0, true},
		{"two dots rejected", "1.2.3", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDecimalToCents(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDecimalToCents(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseDecimalToCents(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestMoney_String(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{1234, "12.34"},
		{5, "0.05"},
		{-5, "-0.05"},
		{100000, "1000.00"},
		{0, "0.00"},
	}

	for _, tt := range tests {
		if got := (Money{Cents: tt.cents}).String(); got != tt.want {
			t.Errorf("Money{%d}.String() = %q, want %q", tt.cents, got, tt.want)
		}
	}
}

func TestMoney_Percent(t *testing.T) {
	if got := (Money{Cents: 80000}).Percent(Money{Cents: 100000}); got != 80.0 {
		t.Errorf("Percent = %v, want 80.0", got)
	}
	if got := (Money{Cents: 50}).Percent(Money{Cents: 0}); got != 0 {
		t.Errorf("Percent with zero total = %v, want 0", got)
	}
}

func TestTransaction_Signed(t *testing.T) {
	income := Transaction{Type: Income, Amount: Money{Cents: 500}}
	if income.Signed() != 500 {
		t.Errorf("income Signed() = %d, want 500", income.Signed())
	}
	expense := Transaction{Type: Expense, Amount: Money{Cents: 500}}
	if expense.Signed() != -500 {
		t.Errorf("expense Signed() = %d, want -500", expense.Signed())
	}
}
