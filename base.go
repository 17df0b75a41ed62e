package linefollow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/samber/lo"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/rdk/components/base"
	"go.viam.com/rdk/components/motor"
	"go.viam.com/rdk/components/sensor"
	"go.viam.com/rdk/operation"
	"go.viam.com/rdk/resource"
)

var Model = resource.ModelNamespace("mte380").WithFamily("base").WithModel("linefollow")

func init() {
	followerComp := resource.Registration[base.Base, *Config]{
		Constructor: func(
			ctx context.Context, deps resource.Dependencies, conf resource.Config, logger golog.Logger,
		) (base.Base, error) {
			return createLineFollower(deps, conf, logger)
		},
	}
	resource.RegisterComponent(base.API, Model, followerComp)
}

func createLineFollower(deps resource.Dependencies, conf resource.Config, logger golog.Logger) (base.LocalBase, error) {
	newConf, err := resource.NativeConfig[*Config](conf)
	if err != nil {
		return nil, err
	}

	ctrl, err := NewController(DefaultTables())
	if err != nil {
		return nil, err
	}

	follower := &lineFollower{
		Named:  conf.ResourceName().AsNamed(),
		cfg:    newConf,
		ctrl:   ctrl,
		period: newConf.loopPeriod(),
		logger: logger,
	}

	follower.left, err = motor.FromDependencies(deps, newConf.LeftMotor)
	if err != nil {
		return nil, err
	}
	follower.right, err = motor.FromDependencies(deps, newConf.RightMotor)
	if err != nil {
		return nil, err
	}
	follower.lineSensor, err = sensor.FromDependencies(deps, newConf.LineSensor)
	if err != nil {
		return nil, err
	}

	if newConf.TelemetryPort != "" {
		follower.telemetry, err = DialTelemetry(newConf.TelemetryPort, newConf.baud())
		if err != nil {
			return nil, err
		}
	}

	return follower, nil
}

type controlMode int

const (
	controlNone   controlMode = 0
	controlFollow             = 1
)

type followState struct {
	threadStarted bool
	controlState  controlMode

	speedGoal float64
}

type lineFollower struct {
	resource.Named
	resource.AlwaysRebuild

	cfg        *Config
	left       motor.Motor
	right      motor.Motor
	lineSensor sensor.Sensor
	telemetry  *TelemetrySender

	ctrl   *Controller
	period time.Duration

	opMgr operation.SingleOperationManager

	state      followState
	stateMutex sync.Mutex

	cancel    context.CancelFunc
	waitGroup sync.WaitGroup

	logger golog.Logger
}

func (lf *lineFollower) MoveStraight(ctx context.Context, distanceMm int, mmPerSec float64, extra map[string]interface{}) error {
	if distanceMm < 0 || mmPerSec <= 0 {
		return errors.New("can only follow the line forward")
	}
	err := lf.SetVelocity(ctx, r3.Vector{Y: mmPerSec}, r3.Vector{}, extra)
	if err != nil {
		return err
	}
	s := time.Duration(float64(distanceMm) / mmPerSec * float64(time.Second))
	utils.SelectContextOrWait(ctx, s)
	return lf.Stop(ctx, nil)
}

func (lf *lineFollower) Spin(ctx context.Context, angleDeg, degsPerSec float64, extra map[string]interface{}) error {
	return errors.New("spin not supported, no heading sense on this base")
}

func (lf *lineFollower) startFollowThreadInLock() error {
	if lf.state.threadStarted {
		return nil
	}

	if lf.lineSensor == nil {
		return errors.New("no line sensor")
	}

	var ctx context.Context
	ctx, lf.cancel = context.WithCancel(context.Background())

	lf.waitGroup.Add(1)
	go func() {
		defer lf.waitGroup.Done()

		for {
			if !utils.SelectContextOrWait(ctx, lf.period) {
				return
			}
			err := lf.followLoop(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				lf.logger.Warn(err)
			}
		}
	}()
	lf.state.threadStarted = true
	return nil
}

func (lf *lineFollower) followLoop(ctx context.Context) error {
	readings, err := lf.lineSensor.Readings(ctx, make(map[string]interface{}))
	if err != nil {
		return err
	}
	feat, err := featuresFromReadings(readings)
	if err != nil {
		return err
	}

	if lf.telemetry != nil {
		if err := lf.telemetry.SendLine(feat.lookAhead, feat.valid); err != nil {
			lf.logger.Warnf("telemetry: %v", err)
		}
	}

	lf.stateMutex.Lock()
	if lf.state.controlState != controlFollow {
		lf.stateMutex.Unlock()
		return nil
	}
	res := lf.ctrl.Step(lf.state.speedGoal, feat.lineFrac, feat.lateralErr, lf.period.Seconds())
	lf.stateMutex.Unlock()

	lf.logger.Debugf("follow tick line=%.2f err=%+.3f xstar=%.2f label=%s left=%.2f right=%.2f",
		feat.lineFrac, feat.lateralErr, res.Output, res.Label, res.Left, res.Right)

	return lf.setWheelPower(ctx, res.Left, res.Right)
}

// differentialPower mixes a forward throttle and a steer term into wheel
// powers. Positive steer turns left, so the right wheel speeds up.
func differentialPower(throttle, steer float64) (float64, float64) {
	left := lo.Clamp(throttle-steer, -1, 1)
	right := lo.Clamp(throttle+steer, -1, 1)
	return left, right
}

// startFollowing engages line following at the given normalized speed.
// PID memory is cleared only when control was not already engaged.
func (lf *lineFollower) startFollowing(speed float64) error {
	lf.stateMutex.Lock()
	defer lf.stateMutex.Unlock()

	err := lf.startFollowThreadInLock()
	if err != nil {
		return err
	}

	if lf.state.controlState != controlFollow {
		lf.ctrl.Reset()
	}
	lf.state.controlState = controlFollow
	lf.state.speedGoal = speed

	return nil
}

func (lf *lineFollower) SetVelocity(ctx context.Context, linear, angular r3.Vector, extra map[string]interface{}) error {
	lf.logger.Debugf("SetVelocity %v %v", linear, angular)
	_, done := lf.opMgr.New(ctx)
	defer done()

	return lf.startFollowing(lo.Clamp(linear.Y/lf.cfg.maxSpeed(), 0, 1))
}

func (lf *lineFollower) SetPower(ctx context.Context, linear, angular r3.Vector, extra map[string]interface{}) error {
	lf.logger.Debugf("SetPower %v %v", linear, angular)
	ctx, done := lf.opMgr.New(ctx)
	defer done()

	lf.stateMutex.Lock()
	lf.state.controlState = controlNone
	lf.stateMutex.Unlock()

	left, right := differentialPower(linear.Y, angular.Z)
	return lf.setWheelPower(ctx, left, right)
}

func (lf *lineFollower) setWheelPower(ctx context.Context, left, right float64) error {
	powers := []float64{left, right}
	for idx, m := range []motor.Motor{lf.left, lf.right} {
		err := m.SetPower(ctx, powers[idx], nil)
		if err != nil {
			return multierr.Combine(lf.Stop(ctx, nil), err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	return nil
}

func (lf *lineFollower) Stop(ctx context.Context, extra map[string]interface{}) error {
	lf.stateMutex.Lock()
	lf.state.controlState = controlNone
	lf.state.speedGoal = 0
	lf.stateMutex.Unlock()

	lf.opMgr.CancelRunning(ctx)
	var err error
	for _, m := range []motor.Motor{lf.left, lf.right} {
		err = multierr.Combine(m.Stop(ctx, nil), err)
	}
	return err
}

func (lf *lineFollower) Width(ctx context.Context) (int, error) {
	return int(lf.cfg.width()), nil
}

func (lf *lineFollower) IsMoving(ctx context.Context) (bool, error) {
	for _, m := range []motor.Motor{lf.left, lf.right} {
		isMoving, _, err := m.IsPowered(ctx, nil)
		if err != nil {
			return false, err
		}
		if isMoving {
			return true, err
		}
	}
	return false, nil
}

func (lf *lineFollower) Close(ctx context.Context) error {
	if lf.cancel != nil {
		lf.cancel()
		lf.cancel = nil
		lf.waitGroup.Wait()
	}
	err := lf.Stop(ctx, nil)
	if lf.telemetry != nil {
		err = multierr.Combine(err, lf.telemetry.Close())
	}
	return err
}

func (lf *lineFollower) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	if raw, ok := cmd["follow"]; ok {
		attrs, ok := raw.(map[string]interface{})
		if !ok {
			return nil, errors.New(`follow wants {"speed": 0..1}`)
		}
		speed, err := floatValue(attrs, "speed")
		if err != nil {
			return nil, err
		}
		speed = lo.Clamp(speed, 0, 1)
		_, done := lf.opMgr.New(ctx)
		defer done()
		if err := lf.startFollowing(speed); err != nil {
			return nil, err
		}
		return map[string]interface{}{"following": true, "speed": speed}, nil
	}

	if _, ok := cmd["stop"]; ok {
		if err := lf.Stop(ctx, nil); err != nil {
			return nil, err
		}
		return map[string]interface{}{"following": false}, nil
	}

	if raw, ok := cmd["evaluate"]; ok {
		attrs, ok := raw.(map[string]interface{})
		if !ok {
			return nil, errors.New(`evaluate wants {"speed_pct": 0..100, "line_pct": 0..100}`)
		}
		speedPct, err := floatValue(attrs, "speed_pct")
		if err != nil {
			return nil, err
		}
		linePct, err := floatValue(attrs, "line_pct")
		if err != nil {
			return nil, err
		}
		dec := lf.ctrl.Evaluate(speedPct, linePct)
		return map[string]interface{}{
			"xstar":     dec.Output,
			"label":     dec.Label,
			"speed_cap": dec.Gains.SpeedCap,
			"kp":        dec.Gains.Kp,
			"ki":        dec.Gains.Ki,
			"kd":        dec.Gains.Kd,
		}, nil
	}

	return nil, fmt.Errorf("unknown command, got %v", lo.Keys(cmd))
}
