package ddl

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestInferBuiltins(t *testing.T) {
	t.Parallel()

	builtins := BuiltinRules()
	tests := []struct {
		name string
		want SemanticType
	}{
		{"org_id", String},
		{"ORG_ID", String},
		{"business_date", Date},
		{"date", Date},
		{"Day", Date},
		{"update_time", DateTime},
		{"create_datetime", DateTime},
		{"event_timestamp_utc", DateTime},
		{"credit_amt", Decimal(24, 6)},
		{"loan_amount", Decimal(24, 6)},
		{"unit_price", Decimal(24, 6)},
		{"acct_balance", Decimal(24, 6)},
		{"txn_cnt", Decimal(24, 6)},
		{"order_count", Decimal(24, 6)},
		{"seq_num", Decimal(24, 6)},
		{"item_quantity", Decimal(24, 6)},
		{"item_qty", Decimal(24, 6)},
		{"overdue_days", Decimal(24, 6)},
		{"active_flag", Boolean},
		{"user_is_active", Boolean},
		{"is_deleted", Boolean},
		{"has_children", Boolean},
		{"customer_name", String},
		{"daydream", String},
		{"paid_id_date", Date},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Infer(tt.name, nil, builtins); got != tt.want {
				t.Errorf("Infer(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestInferOverridesWin(t *testing.T) {
	t.Parallel()

	overrides := Rules{
		{Pattern: "_id", Match: MatchSuffix, Type: Integer},
		{Pattern: "amt", Type: Raw("NUMBER(18,2)")},
	}
	builtins := BuiltinRules()

	if got := Infer("org_id", overrides, builtins); got != Integer {
		t.Errorf("org_id = %v, want INTEGER", got)
	}
	if got := Infer("credit_amt", overrides, builtins); got.String() != "NUMBER(18,2)" {
		t.Errorf("credit_amt = %v, want NUMBER(18,2)", got)
	}
	if got := Infer("business_date", overrides, builtins); got != Date {
		t.Errorf("business_date = %v, want DATE from builtins", got)
	}
}

func TestInferIsPure(t *testing.T) {
	t.Parallel()

	builtins := BuiltinRules()
	for i := 0; i < 3; i++ {
		if got := Infer("credit_amt", nil, builtins); got != Decimal(24, 6) {
			t.Fatalf("iteration %d: got %v", i, got)
		}
	}
}

func TestParseSemanticType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want SemanticType
	}{
		{"string", String},
		{"VARCHAR", String},
		{"bigint", Integer},
		{"decimal", Decimal(24, 6)},
		{"DECIMAL(10, 2)", Decimal(10, 2)},
		{"numeric(12)", Decimal(12, 0)},
		{"timestamp", DateTime},
		{"Boolean", Boolean},
		{"date", Date},
		{"VARCHAR(64)", Raw("VARCHAR(64)")},
	}
	for _, tt := range tests {
		if got := ParseSemanticType(tt.in); got != tt.want {
			t.Errorf("ParseSemanticType(%q) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}

func TestCompileRules(t *testing.T) {
	t.Parallel()

	var specs []RuleSpec
	payload := `[
		{"keywords": ["code", "no"], "dataType": "VARCHAR(32)", "priority": 2},
		{"pattern": "amt", "type": "DECIMAL(18,2)", "priority": 1},
		"flag=INT"
	]`
	if err := json.Unmarshal([]byte(payload), &specs); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	rules, err := CompileRules(specs)
	if err != nil {
		t.Fatalf("CompileRules() error = %v", err)
	}
	want := []string{"flag", "amt", "code", "no"}
	if len(rules) != len(want) {
		t.Fatalf("got %d rules, want %d", len(rules), len(want))
	}
	for i, p := range want {
		if rules[i].Pattern != p {
			t.Errorf("rule %d pattern = %q, want %q", i, rules[i].Pattern, p)
		}
	}
	if got := Infer("credit_amt", rules, BuiltinRules()); got != Decimal(18, 2) {
		t.Errorf("credit_amt = %v, want DECIMAL(18,2)", got)
	}
	if got := Infer("no", rules, BuiltinRules()); got.String() != "VARCHAR(32)" {
		t.Errorf("exact keyword = %v, want VARCHAR(32)", got)
	}
}

func TestCompileRulesErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		specs []RuleSpec
	}{
		{"missing type", []RuleSpec{{Pattern: "x"}}},
		{"missing pattern", []RuleSpec{{Type: "INT"}}},
		{"blank keywords", []RuleSpec{{Keywords: []string{" "}, DataType: "INT"}}},
		{"bad match mode", []RuleSpec{{Pattern: "x", Type: "INT", Match: "regex"}}},
	}
	for _, tt := range tests {
		if _, err := CompileRules(tt.specs); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("%s: error = %v, want ErrInvalidInput", tt.name, err)
		}
	}
}
