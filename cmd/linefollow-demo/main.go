package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/edaniels/golog"
	"github.com/pelletier/go-toml/v2"

	linefollow "github.com/kevinjunkaiwang/UW-W26-MTE380-Group3"
)

type scenario struct {
	Name         string  `toml:"name"`
	Speed        float64 `toml:"speed"`
	LineFrac     float64 `toml:"line_frac"`
	LateralError float64 `toml:"lateral_error"`
}

type demoConfig struct {
	DT        float64    `toml:"dt"`
	Scenarios []scenario `toml:"scenarios"`
}

func defaultConfig() demoConfig {
	return demoConfig{
		DT: 0.02,
		Scenarios: []scenario{
			{Name: "fast, long line, centered", Speed: 0.6, LineFrac: 0.8},
			{Name: "fast cmd, short line, slight right error", Speed: 0.6, LineFrac: 0.3, LateralError: 0.02},
			{Name: "slower, very short line, left error", Speed: 0.4, LineFrac: 0.2, LateralError: -0.03},
			{Name: "very fast, long line", Speed: 0.8, LineFrac: 0.9},
			{Name: "moderate", Speed: 0.3, LineFrac: 0.5},
		},
	}
}

func loadConfig(path string) (demoConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return demoConfig{}, err
	}
	defer f.Close()

	cfg := demoConfig{DT: 0.02}
	dec := toml.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return demoConfig{}, err
	}
	if cfg.DT < 0 {
		return demoConfig{}, errors.New("dt cannot be negative")
	}
	if len(cfg.Scenarios) == 0 {
		return demoConfig{}, errors.New("no scenarios in file")
	}
	return cfg, nil
}

func main() {
	err := realMain()
	if err != nil {
		panic(err)
	}
}

func realMain() error {
	var (
		scenarioFile = flag.String("scenarios", "", "TOML file overriding the built-in scenario table")
		port         = flag.String("port", "", "serial device for line telemetry")
		baud         = flag.Int("baud", 115200, "telemetry baud rate")
	)
	flag.Parse()

	logger := golog.NewDevelopmentLogger("linefollow-demo")

	cfg := defaultConfig()
	if *scenarioFile != "" {
		var err error
		cfg, err = loadConfig(*scenarioFile)
		if err != nil {
			return err
		}
		logger.Infof("loaded %d scenarios from %s", len(cfg.Scenarios), *scenarioFile)
	}

	var telemetry *linefollow.TelemetrySender
	if *port != "" {
		var err error
		telemetry, err = linefollow.DialTelemetry(*port, *baud)
		if err != nil {
			return err
		}
		defer telemetry.Close()
		logger.Infof("streaming telemetry to %s at %d baud", *port, *baud)
	}

	ctrl, err := linefollow.NewController(linefollow.DefaultTables())
	if err != nil {
		return err
	}

	header := fmt.Sprintf("%5s %5s %7s  %6s  %3s  %5s %7s %6s %6s   pid(vmax,kp,ki,kd)",
		"speed", "line", "err(m)", "X*", "lbl", "base", "u", "left", "right")
	fmt.Println(header)
	fmt.Println(strings.Repeat("-", len(header)))

	for _, sc := range cfg.Scenarios {
		res := ctrl.Step(sc.Speed, sc.LineFrac, sc.LateralError, cfg.DT)

		row := fmt.Sprintf("%5.2f %5.2f %+7.3f  %6.2f  %3s  %5.2f %+7.3f %6.2f %6.2f   (%.2f,%.2f,%.2f,%.2f)",
			sc.Speed, sc.LineFrac, sc.LateralError,
			res.Output, res.Label, res.BaseSpeed, res.Correction, res.Left, res.Right,
			res.Gains.SpeedCap, res.Gains.Kp, res.Gains.Ki, res.Gains.Kd)
		if sc.Name != "" {
			row += "  # " + sc.Name
		}
		fmt.Println(row)

		if telemetry != nil {
			if err := telemetry.SendLine(sc.LineFrac, true); err != nil {
				return err
			}
		}
	}
	return nil
}
