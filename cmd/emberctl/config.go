package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/danmuck/emberctl/internal/daemon"
)

// emberctl config.toml key mapping to daemon settings.
type fileConfig struct {
	ListenAddr        string   `toml:"listen_addr"`
	AdminAddr         string   `toml:"admin_addr"`
	CorsOrigins       []string `toml:"cors_origins"`
	ResponseStyle     string   `toml:"response_style"`
	EchoChanges       bool     `toml:"echo_changes"`
	KeepAliveInterval string   `toml:"keepalive_interval"`
	StreamInterval    string   `toml:"stream_interval"`
	MaxPacket         int      `toml:"max_packet"`
	OutboundQueue     int      `toml:"outbound_queue"`
	ReadTimeout       string   `toml:"read_timeout"`
	WriteTimeout      string   `toml:"write_timeout"`
	TreeFile          string   `toml:"tree_file"`
	TLSEnabled        bool     `toml:"tls_enabled"`
	TLSMutual         bool     `toml:"tls_mutual"`
	TLSCertFile       string   `toml:"tls_cert_file"`
	TLSKeyFile        string   `toml:"tls_key_file"`
	TLSCAFile         string   `toml:"tls_ca_file"`
}

// loadServiceConfig overlays the keys present in path onto the defaults.
// Relative tree_file and tls_* paths are resolved against the config file's
// directory.
func loadServiceConfig(path string) (daemon.Config, error) {
	cfg := daemon.DefaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return daemon.Config{}, fmt.Errorf("load emberctl config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return daemon.Config{}, fmt.Errorf("load emberctl config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("listen_addr") {
		cfg.Transport.ListenAddr = strings.TrimSpace(raw.ListenAddr)
	}
	if meta.IsDefined("admin_addr") {
		cfg.Admin.ListenAddr = strings.TrimSpace(raw.AdminAddr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.Admin.CorsOrigins = normalizeOrigins(raw.CorsOrigins)
	}
	if meta.IsDefined("response_style") {
		cfg.Provider.ResponseStyle = strings.ToLower(strings.TrimSpace(raw.ResponseStyle))
	}
	if meta.IsDefined("echo_changes") {
		cfg.Provider.EchoChanges = raw.EchoChanges
	}
	if meta.IsDefined("keepalive_interval") {
		d, err := parseDuration("keepalive_interval", raw.KeepAliveInterval)
		if err != nil {
			return daemon.Config{}, err
		}
		cfg.Provider.KeepAliveInterval = d
	}
	if meta.IsDefined("stream_interval") {
		d, err := parseDuration("stream_interval", raw.StreamInterval)
		if err != nil {
			return daemon.Config{}, err
		}
		cfg.Provider.StreamInterval = d
	}
	if meta.IsDefined("max_packet") {
		cfg.Provider.MaxPacket = raw.MaxPacket
	}
	if meta.IsDefined("outbound_queue") {
		cfg.Transport.OutboundQueue = raw.OutboundQueue
	}
	if meta.IsDefined("read_timeout") {
		d, err := parseDuration("read_timeout", raw.ReadTimeout)
		if err != nil {
			return daemon.Config{}, err
		}
		cfg.Transport.ReadTimeout = d
	}
	if meta.IsDefined("write_timeout") {
		d, err := parseDuration("write_timeout", raw.WriteTimeout)
		if err != nil {
			return daemon.Config{}, err
		}
		cfg.Transport.WriteTimeout = d
	}
	if meta.IsDefined("tree_file") {
		cfg.TreeFile = relativeTo(path, raw.TreeFile)
	}
	if meta.IsDefined("tls_enabled") {
		cfg.Transport.TLS.Enabled = raw.TLSEnabled
	}
	if meta.IsDefined("tls_mutual") {
		cfg.Transport.TLS.Mutual = raw.TLSMutual
	}
	if meta.IsDefined("tls_cert_file") {
		cfg.Transport.TLS.CertFile = relativeTo(path, raw.TLSCertFile)
	}
	if meta.IsDefined("tls_key_file") {
		cfg.Transport.TLS.KeyFile = relativeTo(path, raw.TLSKeyFile)
	}
	if meta.IsDefined("tls_ca_file") {
		cfg.Transport.TLS.CAFile = relativeTo(path, raw.TLSCAFile)
	}

	if err := cfg.Provider.Validate(); err != nil {
		return daemon.Config{}, fmt.Errorf("load emberctl config: %w", err)
	}
	if err := cfg.Transport.TLS.Validate(); err != nil {
		return daemon.Config{}, fmt.Errorf("load emberctl config: %w", err)
	}
	if cfg.Transport.OutboundQueue < 0 {
		return daemon.Config{}, fmt.Errorf("load emberctl config: outbound_queue must not be negative")
	}
	return cfg, nil
}

// relativeTo resolves a relative file key against the config file's directory.
func relativeTo(configPath, raw string) string {
	v := strings.TrimSpace(raw)
	if v == "" || filepath.IsAbs(v) {
		return v
	}
	return filepath.Join(filepath.Dir(configPath), v)
}

func parseDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func normalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, origin := range in {
		v := strings.TrimSpace(origin)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
