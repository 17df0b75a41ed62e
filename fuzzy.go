package linefollow

import (
	"fmt"
	"math"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	defuzzSamples = 101
	defuzzEps     = 1e-6
)

// FuzzySet is a triangular membership function. Sets with a == b or
// b == c are shoulders: membership stays 1 on the flat side of b.
type FuzzySet struct {
	A, B, C float64
}

// Mu returns the membership of x, in [0, 1].
func (s FuzzySet) Mu(x float64) float64 {
	switch {
	case s.A == s.B:
		if x <= s.B {
			return 1
		}
		if x >= s.C {
			return 0
		}
		return (s.C - x) / (s.C - s.B)
	case s.B == s.C:
		if x >= s.B {
			return 1
		}
		if x <= s.A {
			return 0
		}
		return (x - s.A) / (s.B - s.A)
	case x <= s.A || x >= s.C:
		return 0
	case x == s.B:
		return 1
	case x < s.B:
		return (x - s.A) / (s.B - s.A)
	default:
		return (s.C - x) / (s.C - s.B)
	}
}

func (s FuzzySet) valid() bool {
	return s.A <= s.B && s.B <= s.C && s.A < s.C
}

// Gains is the speed cap and PID gain set scheduled for one output label.
type Gains struct {
	SpeedCap float64
	Kp       float64
	Ki       float64
	Kd       float64
}

// RuleKey pairs a speed set with a line set.
type RuleKey struct {
	Speed, Line string
}

// Tables holds the fuzzy variables, the rule base and the gain schedule.
// Labels lists the output labels highest priority first; when two labels
// aggregate to the same activation the earlier one wins.
type Tables struct {
	Speed  map[string]FuzzySet
	Line   map[string]FuzzySet
	Out    map[string]FuzzySet
	Labels []string
	Rules  map[RuleKey]string
	Gains  map[string]Gains
}

// DefaultTables returns the membership sets, rule base and gain schedule
// tuned for the track vehicle. Speed and line inputs are percentages.
func DefaultTables() Tables {
	return Tables{
		Speed: map[string]FuzzySet{
			"Low":    {0, 0, 40},
			"Medium": {20, 50, 80},
			"High":   {60, 100, 100},
		},
		Line: map[string]FuzzySet{
			"Close": {0, 0, 50},
			"Far":   {30, 100, 100},
		},
		Out: map[string]FuzzySet{
			"LC": {0, 10, 25},
			"LF": {15, 30, 45},
			"MC": {35, 50, 65},
			"MF": {55, 70, 85},
			"HC": {70, 85, 95},
			"HF": {85, 100, 100},
		},
		Labels: []string{"LC", "LF", "MC", "MF", "HC", "HF"},
		Rules: map[RuleKey]string{
			{"Low", "Close"}:    "LC",
			{"Low", "Far"}:      "LF",
			{"Medium", "Close"}: "MC",
			{"Medium", "Far"}:   "MF",
			{"High", "Close"}:   "HC",
			{"High", "Far"}:     "HF",
		},
		Gains: map[string]Gains{
			"LC": {SpeedCap: 0.30, Kp: 0.80, Ki: 0.00, Kd: 0.10},
			"LF": {SpeedCap: 0.35, Kp: 0.70, Ki: 0.00, Kd: 0.10},
			"MC": {SpeedCap: 0.45, Kp: 0.65, Ki: 0.00, Kd: 0.12},
			"MF": {SpeedCap: 0.55, Kp: 0.55, Ki: 0.00, Kd: 0.14},
			"HC": {SpeedCap: 0.65, Kp: 0.45, Ki: 0.00, Kd: 0.16},
			"HF": {SpeedCap: 0.75, Kp: 0.40, Ki: 0.00, Kd: 0.18},
		},
	}
}

// Scheduler runs Mamdani min/max inference over a validated rule base and
// defuzzifies by centroid. Safe for concurrent use.
type Scheduler struct {
	tables  Tables
	samples []float64
}

// NewScheduler validates the tables once and returns a scheduler.
// Every speed set and line set combination needs a rule, and every label
// needs an output set and gains.
func NewScheduler(tables Tables) (*Scheduler, error) {
	if len(tables.Speed) == 0 {
		return nil, fmt.Errorf("no speed sets")
	}
	if len(tables.Line) == 0 {
		return nil, fmt.Errorf("no line sets")
	}
	if len(tables.Labels) == 0 {
		return nil, fmt.Errorf("no output labels")
	}

	known := map[string]bool{}
	for _, label := range tables.Labels {
		if known[label] {
			return nil, fmt.Errorf("duplicate output label %q", label)
		}
		known[label] = true
		if _, ok := tables.Out[label]; !ok {
			return nil, fmt.Errorf("output label %q has no membership set", label)
		}
		if _, ok := tables.Gains[label]; !ok {
			return nil, fmt.Errorf("output label %q has no gains", label)
		}
	}
	for label := range tables.Out {
		if !known[label] {
			return nil, fmt.Errorf("output set for unknown label %q", label)
		}
	}
	for label := range tables.Gains {
		if !known[label] {
			return nil, fmt.Errorf("gains for unknown label %q", label)
		}
	}

	for speedName := range tables.Speed {
		for lineName := range tables.Line {
			label, ok := tables.Rules[RuleKey{speedName, lineName}]
			if !ok {
				return nil, fmt.Errorf("no rule for speed %q and line %q", speedName, lineName)
			}
			if !known[label] {
				return nil, fmt.Errorf("rule (%s,%s) resolves to unknown label %q", speedName, lineName, label)
			}
		}
	}
	for key := range tables.Rules {
		if _, ok := tables.Speed[key.Speed]; !ok {
			return nil, fmt.Errorf("rule references unknown speed set %q", key.Speed)
		}
		if _, ok := tables.Line[key.Line]; !ok {
			return nil, fmt.Errorf("rule references unknown line set %q", key.Line)
		}
	}

	for _, group := range []map[string]FuzzySet{tables.Speed, tables.Line, tables.Out} {
		for name, set := range group {
			if !set.valid() {
				return nil, fmt.Errorf("fuzzy set %q is not triangular: a=%v b=%v c=%v", name, set.A, set.B, set.C)
			}
		}
	}

	return &Scheduler{
		tables:  tables,
		samples: floats.Span(make([]float64, defuzzSamples), 0, 100),
	}, nil
}

// Decision is one scheduler evaluation: the defuzzified output in [1, 100]
// rounded to two decimals, the winning label and its gains.
type Decision struct {
	Output float64
	Label  string
	Gains  Gains
}

// Evaluate clamps both inputs to [0, 100] and runs inference.
func (s *Scheduler) Evaluate(speedPct, linePct float64) Decision {
	x1 := lo.Clamp(speedPct, 0, 100)
	x2 := lo.Clamp(linePct, 0, 100)

	acts := s.activations(x1, x2)
	xstar := s.defuzzify(acts)

	label := s.tables.Labels[0]
	for _, l := range s.tables.Labels[1:] {
		if acts[l] > acts[label] {
			label = l
		}
	}

	return Decision{
		Output: lo.Clamp(math.Round(xstar*100)/100, 1, 100),
		Label:  label,
		Gains:  s.tables.Gains[label],
	}
}

func (s *Scheduler) activations(x1, x2 float64) map[string]float64 {
	acts := make(map[string]float64, len(s.tables.Labels))
	for _, label := range s.tables.Labels {
		acts[label] = 0
	}
	for speedName, speedSet := range s.tables.Speed {
		mu1 := speedSet.Mu(x1)
		if mu1 == 0 {
			continue
		}
		for lineName, lineSet := range s.tables.Line {
			mu2 := lineSet.Mu(x2)
			if mu2 == 0 {
				continue
			}
			label := s.tables.Rules[RuleKey{speedName, lineName}]
			strength := math.Min(mu1, mu2)
			if strength > acts[label] {
				acts[label] = strength
			}
		}
	}
	return acts
}

// defuzzify returns the centroid of the clipped output sets over the
// sample grid, or 0 when almost nothing activated.
func (s *Scheduler) defuzzify(acts map[string]float64) float64 {
	weights := make([]float64, len(s.samples))
	for i, x := range s.samples {
		var muX float64
		for label, strength := range acts {
			if strength == 0 {
				continue
			}
			m := math.Min(strength, s.tables.Out[label].Mu(x))
			if m > muX {
				muX = m
			}
		}
		weights[i] = muX
	}
	if floats.Sum(weights) <= defuzzEps {
		return 0
	}
	return stat.Mean(s.samples, weights)
}
