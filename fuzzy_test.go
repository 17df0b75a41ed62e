package linefollow

import (
	"fmt"
	"testing"

	"go.viam.com/test"
)

const testTheta = .001

func TestMembership(t *testing.T) {
	tables := DefaultTables()

	type d struct {
		set  FuzzySet
		x    float64
		want float64
	}

	tests := []d{
		{tables.Speed["Low"], 0, 1},
		{tables.Speed["Low"], 20, .5},
		{tables.Speed["Low"], 40, 0},
		{tables.Speed["Medium"], 20, 0},
		{tables.Speed["Medium"], 35, .5},
		{tables.Speed["Medium"], 50, 1},
		{tables.Speed["Medium"], 65, .5},
		{tables.Speed["High"], 60, 0},
		{tables.Speed["High"], 80, .5},
		{tables.Speed["High"], 100, 1},
		{tables.Speed["High"], 120, 1},
		{tables.Line["Close"], 0, 1},
		{tables.Line["Close"], 30, .4},
		{tables.Line["Close"], 50, 0},
		{tables.Line["Far"], 30, 0},
		{tables.Line["Far"], 65, .5},
		{tables.Line["Far"], 100, 1},
		{tables.Out["LC"], 10, 1},
		{tables.Out["HF"], 85, 0},
		{tables.Out["HF"], 100, 1},
	}

	for _, x := range tests {
		t.Run(fmt.Sprintf("%#v", x), func(t *testing.T) {
			test.That(t, x.set.Mu(x.x), test.ShouldAlmostEqual, x.want, testTheta)
		})
	}
}

func TestEvaluate(t *testing.T) {
	sched, err := NewScheduler(DefaultTables())
	test.That(t, err, test.ShouldBeNil)

	type d struct {
		speed, line float64
		out         float64
		label       string
	}

	tests := []d{
		{0, 0, 11.67, "LC"},
		{100, 100, 95.33, "HF"},
		{50, 50, 70, "MF"},
		{60, 80, 70, "MF"},
		{0, 100, 30, "LF"},
		{100, 0, 83.33, "HC"},
		{10, 80, 30, "LF"},
		{25, 25, 26.31, "LC"},
		{70, 60, 76.86, "MF"},
		{40, 40, 58.27, "MC"},
		{55, 10, 50, "MC"},
		{-5, 120, 30, "LF"},
		{130, -20, 83.33, "HC"},
	}

	gains := DefaultTables().Gains
	for _, x := range tests {
		t.Run(fmt.Sprintf("%#v", x), func(t *testing.T) {
			dec := sched.Evaluate(x.speed, x.line)
			test.That(t, dec.Output, test.ShouldAlmostEqual, x.out, testTheta)
			test.That(t, dec.Label, test.ShouldEqual, x.label)
			test.That(t, dec.Gains, test.ShouldResemble, gains[x.label])
		})
	}
}

func TestEvaluateTieBreak(t *testing.T) {
	sched, err := NewScheduler(DefaultTables())
	test.That(t, err, test.ShouldBeNil)

	// At speed 30 and line 40 the Close membership caps the Low and Medium
	// rules at exactly 0.2 each, so LC and MC tie and LC has to win.
	dec := sched.Evaluate(30, 40)
	test.That(t, dec.Label, test.ShouldEqual, "LC")
	test.That(t, dec.Output, test.ShouldAlmostEqual, 40.59, testTheta)

	// Evaluate holds no state, a replay returns the identical decision.
	test.That(t, sched.Evaluate(30, 40), test.ShouldResemble, dec)
}

func TestEvaluateRange(t *testing.T) {
	sched, err := NewScheduler(DefaultTables())
	test.That(t, err, test.ShouldBeNil)

	gains := DefaultTables().Gains
	for speed := 0.0; speed <= 100; speed += 5 {
		for line := 0.0; line <= 100; line += 5 {
			dec := sched.Evaluate(speed, line)
			test.That(t, dec.Output, test.ShouldBeGreaterThanOrEqualTo, 1.0)
			test.That(t, dec.Output, test.ShouldBeLessThanOrEqualTo, 100.0)
			_, ok := gains[dec.Label]
			test.That(t, ok, test.ShouldBeTrue)
		}
	}
}

func TestDegenerateInference(t *testing.T) {
	tables := Tables{
		Speed:  map[string]FuzzySet{"Low": {0, 10, 40}},
		Line:   map[string]FuzzySet{"Close": {0, 10, 50}},
		Out:    map[string]FuzzySet{"LC": {0, 10, 25}},
		Labels: []string{"LC"},
		Rules:  map[RuleKey]string{{"Low", "Close"}: "LC"},
		Gains:  map[string]Gains{"LC": {SpeedCap: 0.30, Kp: 0.80, Kd: 0.10}},
	}
	sched, err := NewScheduler(tables)
	test.That(t, err, test.ShouldBeNil)

	// Nothing activates out there, so X* falls back to 0 and clamps to 1.
	dec := sched.Evaluate(100, 100)
	test.That(t, dec.Output, test.ShouldAlmostEqual, 1, testTheta)
	test.That(t, dec.Label, test.ShouldEqual, "LC")
}

func TestNewSchedulerValidation(t *testing.T) {
	type d struct {
		name   string
		mutate func(*Tables)
	}

	tests := []d{
		{"missing rule", func(tb *Tables) { delete(tb.Rules, RuleKey{"High", "Far"}) }},
		{"rule to unknown label", func(tb *Tables) { tb.Rules[RuleKey{"High", "Far"}] = "XX" }},
		{"rule from unknown speed set", func(tb *Tables) { tb.Rules[RuleKey{"Turbo", "Far"}] = "HF" }},
		{"rule from unknown line set", func(tb *Tables) { tb.Rules[RuleKey{"High", "Gone"}] = "HF" }},
		{"missing gains", func(tb *Tables) { delete(tb.Gains, "MC") }},
		{"missing output set", func(tb *Tables) { delete(tb.Out, "HC") }},
		{"orphan output set", func(tb *Tables) { tb.Out["XX"] = FuzzySet{0, 1, 2} }},
		{"orphan gains", func(tb *Tables) { tb.Gains["XX"] = Gains{} }},
		{"duplicate label", func(tb *Tables) { tb.Labels = append(tb.Labels, "LC") }},
		{"no labels", func(tb *Tables) { tb.Labels = nil }},
		{"inverted set", func(tb *Tables) { tb.Speed["Low"] = FuzzySet{40, 10, 0} }},
		{"flat set", func(tb *Tables) { tb.Line["Close"] = FuzzySet{50, 50, 50} }},
		{"no speed sets", func(tb *Tables) { tb.Speed = nil }},
		{"no line sets", func(tb *Tables) { tb.Line = nil }},
	}

	for _, x := range tests {
		t.Run(x.name, func(t *testing.T) {
			tables := DefaultTables()
			x.mutate(&tables)
			_, err := NewScheduler(tables)
			test.That(t, err, test.ShouldNotBeNil)
		})
	}

	_, err := NewScheduler(DefaultTables())
	test.That(t, err, test.ShouldBeNil)
}
