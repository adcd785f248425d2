package password

import "testing"

func TestPolicyAcceptsReasonablePassword(t *testing.T) {
	p := DefaultPolicy()
	if problems := p.Check("violet-harbor-42", "alice@example.com", "alice", "Alice", "Smith"); len(problems) != 0 {
		t.Fatalf("expected no problems, got %v", problems)
	}
}

func TestPolicyRules(t *testing.T) {
	p := DefaultPolicy()

	cases := map[string]struct {
		password string
		attrs    []string
	}{
		"short":   {password: "a1b2c3"},
		"common":  {password: "Password123"},
		"numeric": {password: "8675309123"},
		"similar": {password: "alicesmith99", attrs: []string{"alicesmith"}},
	}
	for name, tc := range cases {
		if problems := p.Check(tc.password, tc.attrs...); len(problems) == 0 {
			t.Fatalf("%s: expected a policy violation for %q", name, tc.password)
		}
	}
}

func TestPolicyCustomCommonList(t *testing.T) {
	p := DefaultPolicy()
	p.Common = map[string]struct{}{"feedbackrocks": {}}

	if problems := p.Check("FeedbackRocks"); len(problems) == 0 {
		t.Fatal("expected custom common password to be rejected")
	}
	if problems := p.Check("password123"); len(problems) != 0 {
		t.Fatalf("expected built-in list to be replaced, got %v", problems)
	}
}

func TestSimilarity(t *testing.T) {
	if got := similarity("abc", "abc"); got != 1 {
		t.Fatalf("identical strings similarity = %v", got)
	}
	if got := similarity("abc", "xyz"); got != 0 {
		t.Fatalf("disjoint strings similarity = %v", got)
	}
}
