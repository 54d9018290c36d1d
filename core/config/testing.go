package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

// testLoggerAdapter maps log lines onto testing.TB.Log, so output only shows
// for failed tests.
type testLoggerAdapter struct {
	t testing.TB
}

func (a *testLoggerAdapter) Write(d []byte) (int, error) {
	n := len(d)
	if n > 0 && d[n-1] == '\n' {
		d = d[:n-1]
	}
	a.t.Log(string(d))
	return n, nil
}

// NewTestLogger returns a debug-level logger writing through t.
func NewTestLogger(t testing.TB) *logrus.Logger {
	logger := logrus.New()
	logger.Out = &testLoggerAdapter{t: t}
	logger.Level = logrus.DebugLevel
	return logger
}

// NewTestConfig returns a config tuned for fast tests: low difficulty, no
// startup delay, in-memory quarantine.
func NewTestConfig(t testing.TB) *Config {
	c := NewDefaultConfig()
	c.DataDir = ""
	c.DifficultyBits = 8
	c.ProgressInterval = 1000
	c.InitDelay = time.Millisecond
	c.InitJitter = 0
	c.SetLogger(NewTestLogger(t))
	return c
}
