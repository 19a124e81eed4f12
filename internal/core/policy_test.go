package core

import (
	"strings"
	"testing"
)

var testRoles = ThreadRoleConfig{
	Balance:        45,
	Food:           33,
	FoodTopup:      247,
	Apartment:      78,
	Topup:          80,
	GeneralExpense: []int64{34, 43},
}

func TestRoleOf(t *testing.T) {
	cases := []struct {
		thread int64
		role   ThreadRole
		ok     bool
	}{
		{45, RoleBalance, true},
		{33, RoleFood, true},
		{247, RoleFoodTopup, true},
		{78, RoleApartment, true},
		{80, RoleTopup, true},
		{34, RoleGeneral, true},
		{43, RoleGeneral, true},
		{99, "", false},
		{0, "", false},
	}
	for _, tc := range cases {
		role, ok := testRoles.RoleOf(tc.thread)
		if role != tc.role || ok != tc.ok {
			t.Errorf("RoleOf(%d) = %q, %v; want %q, %v", tc.thread, role, ok, tc.role, tc.ok)
		}
	}
}

func TestRoleOfFirstMatchWins(t *testing.T) {
	cfg := ThreadRoleConfig{Balance: 1, Food: 2, Apartment: 3, Topup: 4, GeneralExpense: []int64{2, 3, 5}}
	if role, _ := cfg.RoleOf(2); role != RoleFood {
		t.Fatalf("expected food to win over general expense, got %q", role)
	}
	if role, _ := cfg.RoleOf(3); role != RoleApartment {
		t.Fatalf("expected apartment to win over general expense, got %q", role)
	}
	if role, _ := cfg.RoleOf(5); role != RoleGeneral {
		t.Fatalf("expected general expense, got %q", role)
	}
}

func TestRoleOfUnsetFoodTopup(t *testing.T) {
	cfg := testRoles
	cfg.FoodTopup = 0
	if _, ok := cfg.RoleOf(247); ok {
		t.Fatal("unset food top-up thread must not be routed")
	}
}

func TestConfigured(t *testing.T) {
	if !testRoles.Configured() {
		t.Fatal("expected test roles to be configured")
	}
	cfg := testRoles
	cfg.Topup = 0
	if cfg.Configured() {
		t.Fatal("missing top-up thread should make the config incomplete")
	}
	cfg = testRoles
	cfg.FoodTopup = 0
	cfg.GeneralExpense = nil
	if !cfg.Configured() {
		t.Fatal("optional threads must not be required")
	}
}

func TestApplyPolicyTable(t *testing.T) {
	const total, food = int64(500000), int64(2000000)
	cases := []struct {
		name      string
		role      ThreadRole
		sign      int
		amount    int64
		wantTotal int64
		wantFood  int64
		category  Category
		direction Direction
		operator  string
	}{
		{"food expense", RoleFood, 1, 150000, total, 1850000, CategoryFood, DirectionOut, "-"},
		{"food refund", RoleFood, -1, 150000, total, 2150000, CategoryFood, DirectionIn, "+"},
		{"food top-up", RoleFoodTopup, 1, 100000, total, 2100000, CategoryFoodTopup, DirectionIn, "+"},
		{"food write-off", RoleFoodTopup, -1, 100000, total, 1900000, CategoryFoodTopup, DirectionOut, "-"},
		{"income", RoleTopup, 1, 100000, 600000, food, CategoryTopup, DirectionIn, "+"},
		{"withdrawal", RoleTopup, -1, 100000, 400000, food, CategoryTopup, DirectionOut, "-"},
		{"rent", RoleApartment, 1, 30000, 470000, food, CategoryApartment, DirectionOut, "-"},
		{"rent refund", RoleApartment, -1, 30000, 530000, food, CategoryApartment, DirectionIn, "+"},
		{"other expense", RoleGeneral, 1, 1, 499999, food, CategoryTotalOther, DirectionOut, "-"},
		{"other refund", RoleGeneral, -1, 1, 500001, food, CategoryTotalOther, DirectionIn, "+"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e, ok := ApplyPolicy(tc.role, tc.sign, tc.amount, total, food)
			if !ok {
				t.Fatal("expected an effect")
			}
			if e.TotalCents != tc.wantTotal || e.FoodCents != tc.wantFood {
				t.Fatalf("got total=%d food=%d, want total=%d food=%d", e.TotalCents, e.FoodCents, tc.wantTotal, tc.wantFood)
			}
			if e.Category != tc.category || e.Direction != tc.direction || e.Operator != tc.operator {
				t.Fatalf("got %s/%s/%s, want %s/%s/%s", e.Category, e.Direction, e.Operator, tc.category, tc.direction, tc.operator)
			}
			if e.DeltaCents != tc.amount {
				t.Fatalf("delta %d, want %d", e.DeltaCents, tc.amount)
			}
		})
	}
}

func TestApplyPolicyNoEffect(t *testing.T) {
	for _, role := range []ThreadRole{RoleBalance, "", "unknown"} {
		if _, ok := ApplyPolicy(role, 1, 100, 0, 0); ok {
			t.Errorf("role %q should not produce an effect", role)
		}
	}
}

func TestApplyPolicyFoodNeverTouchesTotal(t *testing.T) {
	total, food := int64(123456), int64(1000)
	amounts := []struct {
		sign   int
		amount int64
	}{{1, 5000}, {-1, 200}, {1, 1}, {1, 999999}, {-1, 42}}
	for _, a := range amounts {
		for _, role := range []ThreadRole{RoleFood, RoleFoodTopup} {
			e, _ := ApplyPolicy(role, a.sign, a.amount, total, food)
			if e.TotalCents != total {
				t.Fatalf("%s changed total from %d to %d", role, total, e.TotalCents)
			}
			food = e.FoodCents
		}
	}
	e, _ := ApplyPolicy(RoleFood, 1, food+1, total, food)
	if e.FoodCents != -1 {
		t.Fatalf("expense larger than the budget should go below zero, got %d", e.FoodCents)
	}
}

func TestApplyPolicySignSymmetry(t *testing.T) {
	roles := []ThreadRole{RoleFood, RoleFoodTopup, RoleApartment, RoleTopup, RoleGeneral}
	for _, role := range roles {
		first, _ := ApplyPolicy(role, 1, 12345, 1000, 2000)
		back, _ := ApplyPolicy(role, -1, 12345, first.TotalCents, first.FoodCents)
		if back.TotalCents != 1000 || back.FoodCents != 2000 {
			t.Errorf("%s: +X then -X gave total=%d food=%d", role, back.TotalCents, back.FoodCents)
		}
	}
}

func TestEffectLine(t *testing.T) {
	e, _ := ApplyPolicy(RoleFood, 1, 150000, 0, 2000000)
	got := e.Line("groceries <market>", "14.10.2026 18:30")
	want := "🍽 <b>Food</b>: 20 000.00 - 1 500.00 = <b>18 500.00</b>\n📝 groceries &lt;market&gt;\n🕒 14.10.2026 18:30"
	if got != want {
		t.Fatalf("line:\n%s\nwant:\n%s", got, want)
	}

	w, _ := ApplyPolicy(RoleTopup, -1, 100, 0, 0)
	if !strings.HasPrefix(w.Line("", "x"), "➖ <b>Withdrawal</b>: 0.00 - 1.00 = <b>-1.00</b>") {
		t.Fatalf("unexpected withdrawal line: %q", w.Line("", "x"))
	}
}

func TestEffectTransaction(t *testing.T) {
	e, _ := ApplyPolicy(RoleApartment, -1, 30000, 500000, 0)
	tx := e.Transaction(-100, 78, "refund")
	if tx.Counter != CounterTotal || tx.NewValue != 530000 {
		t.Fatalf("unexpected transaction %+v", tx)
	}
	if tx.Entry.Category != CategoryApartment || tx.Entry.Direction != DirectionIn || tx.Entry.AmountCents != 30000 {
		t.Fatalf("unexpected entry %+v", tx.Entry)
	}
	if err := tx.Validate(); err != nil {
		t.Fatalf("transaction should be valid: %v", err)
	}
	if got := tx.Apply(ChatState{TotalCents: 500000, FoodCents: 7}); got.TotalCents != 530000 || got.FoodCents != 7 {
		t.Fatalf("Apply gave %+v", got)
	}
}
