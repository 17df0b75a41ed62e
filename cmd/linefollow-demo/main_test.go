package main

import (
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"
)

func writeScenarioFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenarios.toml")
	test.That(t, os.WriteFile(path, []byte(body), 0o600), test.ShouldBeNil)
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeScenarioFile(t, `
dt = 0.05

[[scenarios]]
name = "gentle"
speed = 0.5
line_frac = 0.7
lateral_error = 0.01
`)
	cfg, err := loadConfig(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.DT, test.ShouldEqual, 0.05)
	test.That(t, cfg.Scenarios, test.ShouldResemble, []scenario{
		{Name: "gentle", Speed: 0.5, LineFrac: 0.7, LateralError: 0.01},
	})
}

func TestLoadConfigDefaultDT(t *testing.T) {
	path := writeScenarioFile(t, "[[scenarios]]\nspeed = 0.5\nline_frac = 0.7\n")

	cfg, err := loadConfig(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.DT, test.ShouldEqual, 0.02)
}

func TestLoadConfigRejects(t *testing.T) {
	type d struct {
		name string
		body string
	}

	tests := []d{
		{"dt is not a number", `dt = "fast"`},
		{"unknown field", `turbo = true`},
		{"negative dt", "dt = -1\n[[scenarios]]\nspeed = 1.0\n"},
		{"no scenarios", `dt = 0.02`},
		{"unknown scenario field", "[[scenarios]]\nspeed = 0.5\nboost = 2.0\n"},
	}

	for _, x := range tests {
		t.Run(x.name, func(t *testing.T) {
			_, err := loadConfig(writeScenarioFile(t, x.body))
			test.That(t, err, test.ShouldNotBeNil)
		})
	}

	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestDefaultScenarios(t *testing.T) {
	cfg := defaultConfig()
	test.That(t, cfg.DT, test.ShouldEqual, 0.02)
	test.That(t, len(cfg.Scenarios), test.ShouldEqual, 5)
	test.That(t, cfg.Scenarios[0].Speed, test.ShouldEqual, 0.6)
	test.That(t, cfg.Scenarios[0].LineFrac, test.ShouldEqual, 0.8)
}
