package linefollow

import (
	"math"

	"github.com/samber/lo"
)

type pidState struct {
	integral      float64
	previousError float64
}

// control advances the integrator and returns the correction for one tick.
// A dt of zero skips the derivative term so a degenerate tick never divides
// by zero.
func (pid *pidState) control(g Gains, err, dt float64) float64 {
	pid.integral += err * dt

	d := 0.0
	if dt > 0 {
		d = (err - pid.previousError) / dt
	}
	pid.previousError = err

	return g.Kp*err + g.Ki*pid.integral + g.Kd*d
}

func (pid *pidState) reset() {
	pid.integral = 0
	pid.previousError = 0
}

// Controller drives one vehicle: a scheduler picks the speed cap and gains
// for the current speed command and line view, and PID state carried across
// ticks turns the lateral error into a differential wheel correction.
// Not safe for concurrent use; callers own the tick cadence.
type Controller struct {
	sched *Scheduler
	pid   pidState
}

// NewController validates the tables and returns a fresh controller.
func NewController(tables Tables) (*Controller, error) {
	sched, err := NewScheduler(tables)
	if err != nil {
		return nil, err
	}
	return &Controller{sched: sched}, nil
}

// StepResult is everything one control tick decided.
type StepResult struct {
	SpeedPct float64
	LinePct  float64

	Output float64
	Label  string
	Gains  Gains

	BaseSpeed  float64
	Correction float64
	Left       float64
	Right      float64
}

// Step runs one control tick. speedCmd and lineFrac are normalized to
// [0, 1], lateralErr is the signed line offset in meters and dt is the
// time since the previous tick in seconds.
func (c *Controller) Step(speedCmd, lineFrac, lateralErr, dt float64) StepResult {
	x1 := lo.Clamp(speedCmd, 0, 1) * 100
	x2 := lo.Clamp(lineFrac, 0, 1) * 100

	dec := c.sched.Evaluate(x1, x2)

	base := math.Min(speedCmd, dec.Gains.SpeedCap)
	u := c.pid.control(dec.Gains, lateralErr, dt)

	return StepResult{
		SpeedPct:   x1,
		LinePct:    x2,
		Output:     dec.Output,
		Label:      dec.Label,
		Gains:      dec.Gains,
		BaseSpeed:  base,
		Correction: u,
		Left:       lo.Clamp(base-u, -1, 1),
		Right:      lo.Clamp(base+u, -1, 1),
	}
}

// Reset clears the integrator and previous error, for use when control is
// re-engaged after the vehicle was driven manually or stopped.
func (c *Controller) Reset() {
	c.pid.reset()
}

// Evaluate runs the scheduler alone, without advancing PID state.
func (c *Controller) Evaluate(speedPct, linePct float64) Decision {
	return c.sched.Evaluate(speedPct, linePct)
}
