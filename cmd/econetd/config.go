package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// daemonConfig is the resolved runtime configuration.
type daemonConfig struct {
	DeviceAddr   string
	Username     string
	Password     string
	RegisterMap  string
	ListenAddr   string
	CORSOrigins  []string
	PollInterval time.Duration
	CacheTTL     time.Duration
	DeviceDest   uint16
	DeviceSrc    uint16
	TxTimeout    time.Duration
}

func defaultConfig() daemonConfig {
	return daemonConfig{
		DeviceAddr:   "127.0.0.1:8899",
		Username:     "admin",
		Password:     "admin",
		RegisterMap:  "device_map.yaml",
		ListenAddr:   ":9380",
		PollInterval: 30 * time.Second,
		CacheTTL:     25 * time.Second,
	}
}

// econetd config.toml key mapping.
type fileConfig struct {
	DeviceAddr     string   `toml:"device_addr"`
	Username       string   `toml:"username"`
	Password       string   `toml:"password"`
	RegisterMap    string   `toml:"register_map"`
	ListenAddr     string   `toml:"listen_addr"`
	CORSOrigins    []string `toml:"cors_origins"`
	PollIntervalMS int      `toml:"poll_interval_ms"`
	CacheTTLMS     int      `toml:"cache_ttl_ms"`
	DeviceDest     int      `toml:"device_dest"`
	DeviceSrc      int      `toml:"device_src"`
	TxTimeoutMS    int      `toml:"tx_timeout_ms"`
}

// loadConfig reads a TOML file and overlays its defined keys on the
// defaults. A relative register_map resolves against the config file's
// directory.
func loadConfig(path string) (daemonConfig, error) {
	cfg := defaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return daemonConfig{}, fmt.Errorf("load econetd config: %w", err)
	}

	if meta.IsDefined("device_addr") {
		cfg.DeviceAddr = strings.TrimSpace(raw.DeviceAddr)
	}
	if meta.IsDefined("username") {
		cfg.Username = raw.Username
	}
	if meta.IsDefined("password") {
		cfg.Password = raw.Password
	}
	if meta.IsDefined("register_map") {
		cfg.RegisterMap = strings.TrimSpace(raw.RegisterMap)
	}
	if meta.IsDefined("listen_addr") {
		cfg.ListenAddr = strings.TrimSpace(raw.ListenAddr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CORSOrigins = raw.CORSOrigins
	}
	if meta.IsDefined("poll_interval_ms") {
		cfg.PollInterval = time.Duration(raw.PollIntervalMS) * time.Millisecond
	}
	if meta.IsDefined("cache_ttl_ms") {
		cfg.CacheTTL = time.Duration(raw.CacheTTLMS) * time.Millisecond
	}
	if meta.IsDefined("device_dest") {
		cfg.DeviceDest = uint16(raw.DeviceDest)
	}
	if meta.IsDefined("device_src") {
		cfg.DeviceSrc = uint16(raw.DeviceSrc)
	}
	if meta.IsDefined("tx_timeout_ms") {
		cfg.TxTimeout = time.Duration(raw.TxTimeoutMS) * time.Millisecond
	}

	if cfg.DeviceAddr == "" {
		return daemonConfig{}, fmt.Errorf("load econetd config: device_addr must not be empty")
	}
	if cfg.PollInterval <= 0 {
		return daemonConfig{}, fmt.Errorf("load econetd config: poll_interval_ms must be positive")
	}

	if cfg.RegisterMap != "" && !filepath.IsAbs(cfg.RegisterMap) {
		cfg.RegisterMap = filepath.Join(filepath.Dir(path), cfg.RegisterMap)
	}
	return cfg, nil
}
