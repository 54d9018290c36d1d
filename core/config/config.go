// Package config holds the process-scoped settings of a node. A Config is
// built once at startup and handed to every constructor.
package config

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"time"

	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default configuration values.
const (
	DefaultLogLevel         = "info"
	DefaultListenPort       = 0
	DefaultMDNSTag          = "gossipchain-mdns"
	DefaultRouter           = "flood"
	DefaultChainTopic       = "chains"
	DefaultBlockTopic       = "blocks"
	DefaultDifficultyBits   = 16
	DefaultProgressInterval = 100000
	DefaultInitDelay        = 1 * time.Second
	DefaultInitJitter       = 1 * time.Second
	DefaultQuarantine       = true
)

// Config contains all the configuration properties of a node.
type Config struct {
	// DataDir holds the quarantine store and the optional config file.
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// LogFile, when set, receives a copy of info and debug lines.
	LogFile string `mapstructure:"log-file"`

	// ListenPort is the TCP port of the libp2p host. 0 picks a free port.
	ListenPort int `mapstructure:"port"`

	// PeerMultiaddr is an optional peer dialled at startup, in addition to
	// whatever mDNS finds on the local segment.
	PeerMultiaddr string `mapstructure:"peer"`

	// MDNSTag is the mDNS service name peers rendezvous on.
	MDNSTag string `mapstructure:"mdns-tag"`

	// Router selects the pub/sub router, "flood" or "gossip".
	Router string `mapstructure:"router"`

	ChainTopic string `mapstructure:"chain-topic"`
	BlockTopic string `mapstructure:"block-topic"`

	// DifficultyBits is the number of leading zero bits a block hash needs.
	// Every peer on a network must agree on it.
	DifficultyBits uint `mapstructure:"difficulty"`

	// ProgressInterval is the number of nonces between miner progress lines.
	ProgressInterval uint64 `mapstructure:"progress-interval"`

	// InitDelay plus a random share of InitJitter is waited before the
	// startup chain request.
	InitDelay  time.Duration `mapstructure:"init-delay"`
	InitJitter time.Duration `mapstructure:"init-jitter"`

	// HaltOnIrreconcilable stops the event loop when the local and a remote
	// chain are both invalid. Otherwise the node keeps its ledger and stays up.
	HaltOnIrreconcilable bool `mapstructure:"halt-on-irreconcilable"`

	// Quarantine stores irreconcilable chain pairs in DataDir.
	Quarantine bool `mapstructure:"quarantine"`

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	return &Config{
		DataDir:          DefaultDataDir(),
		LogLevel:         DefaultLogLevel,
		ListenPort:       DefaultListenPort,
		MDNSTag:          DefaultMDNSTag,
		Router:           DefaultRouter,
		ChainTopic:       DefaultChainTopic,
		BlockTopic:       DefaultBlockTopic,
		DifficultyBits:   DefaultDifficultyBits,
		ProgressInterval: DefaultProgressInterval,
		InitDelay:        DefaultInitDelay,
		InitJitter:       DefaultInitJitter,
		Quarantine:       DefaultQuarantine,
	}
}

// SetLogger replaces the logger built from LogLevel, used by tests.
func (c *Config) SetLogger(l *logrus.Logger) {
	c.logger = l
}

// Logger returns a formatted logrus Entry with the given prefix.
func (c *Config) Logger(prefix string) *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = &prefixed.TextFormatter{FullTimestamp: true}
		if c.LogFile != "" {
			c.logger.Hooks.Add(lfshook.NewHook(lfshook.PathMap{
				logrus.InfoLevel:  c.LogFile,
				logrus.DebugLevel: c.LogFile,
				logrus.WarnLevel:  c.LogFile,
				logrus.ErrorLevel: c.LogFile,
			}, &logrus.TextFormatter{}))
		}
	}
	return c.logger.WithField("prefix", prefix)
}

// DefaultDataDir return the default directory name for node data based on the
// underlying OS.
func DefaultDataDir() string {
	home := HomeDir()
	if home != "" {
		switch runtime.GOOS {
		case "darwin":
			return filepath.Join(home, ".Gossipchain")
		case "windows":
			return filepath.Join(home, "AppData", "Roaming", "Gossipchain")
		default:
			return filepath.Join(home, ".gossipchain")
		}
	}
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.InfoLevel
	}
}
