package core

import (
	"errors"
	"testing"
)

func TestValidCurrency(t *testing.T) {
	cases := []struct {
		code string
		want bool
	}{
		{"RON", true},
		{"EUR", true},
		{"USD", true},
		{"ron", false},
		{"EU", false},
		{"EURO", false},
		{"", false},
		{"E1R", false},
	}
	for _, tc := range cases {
		if got := ValidCurrency(tc.code); got != tc.want {
			t.Errorf("ValidCurrency(%q) = %v, want %v", tc.code, got, tc.want)
		}
	}
}

func TestAccountValidate(t *testing.T) {
	valid := Account{UserID: "u1", Kind: AccountDefault, Currency: "RON"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid account should pass: %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(a *Account)
		wantErr error
	}{
		{"missing user", func(a *Account) { a.UserID = " " }, ErrValidation},
		{"bad currency", func(a *Account) { a.Currency = "ronn" }, ErrValidation},
		{"bad kind", func(a *Account) { a.Kind = "CHECKING" }, ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := valid
			tt.mutate(&a)
			if err := a.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAccountMeetsSavingsTarget(t *testing.T) {
	tests := []struct {
		name string
		acc  Account
		want bool
	}{
		{
			name: "savings at target",
			acc:  Account{Kind: AccountSavings, Balance: Money{Cents: 100000}, SavingsTarget: Money{Cents: 100000}},
			want: true,
		},
		{
			name: "savings above target",
			acc:  Account{Kind: AccountSavings, Balance: Money{Cents: 100100}, SavingsTarget: Money{Cents: 100000}},
			want: true,
		},
		{
			name: "savings below target",
			acc:  Account{Kind: AccountSavings, Balance: Money{Cents: 95000}, SavingsTarget: Money{Cents: 100000}},
			want: false,
		},
		{
			name: "default account never meets",
			acc:  Account{Kind: AccountDefault, Balance: Money{Cents: 100000}, SavingsTarget: Money{Cents: 100000}},
			want: false,
		},
		{
			name: "savings without target",
			acc:  Account{Kind: AccountSavings, Balance: Money{Cents: 100000}},
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.acc.MeetsSavingsTarget(); got != tt.want {
				t.Errorf("MeetsSavingsTarget() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCategoryVisibleTo(t *testing.T) {
	owner := "u1"
	system := Category{ID: "c1", Kind: CategorySystem}
	mine := Category{ID: "c2", Kind: CategoryUser, UserID: &owner}

	if !system.VisibleTo("anyone") {
		t.Error("system category should be visible to everyone")
	}
	if !mine.VisibleTo("u1") {
		t.Error("own category should be visible")
	}
	if mine.VisibleTo("u2") {
		t.Error("foreign category should not be visible")
	}
}

func TestFrequencyValid(t *testing.T) {
	for _, f := range []Frequency{Once, Weekly, Biweekly, Monthly, Quarterly, Yearly, Custom} {
		if !f.Valid() {
			t.Errorf("%s should be valid", f)
		}
	}
	if Frequency("DAILY").Valid() {
		t.Error("DAILY is not a supported frequency")
	}
}
