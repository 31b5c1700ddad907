// Package config loads the peersync configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Default file locations.
const (
	DefaultPath      = "/etc/peersync/peersync.yaml"
	DefaultCertFile  = "/etc/peersync/peersync_ssl_cert.pem"
	DefaultKeyFile   = "/etc/peersync/peersync_ssl_key.pem"
	DefaultTrustPath = "/var/lib/peersync/trust.db"
	DefaultPort      = "30865"
	DefaultSSHCmd    = "peersync -stdio"
)

// Trust store kinds.
const (
	TrustStoreMemory = "memory"
	TrustStoreFile   = "file"
	TrustStoreSQLite = "sqlite"
)

// Resolver modes.
const (
	ResolverDNS     = "dns"
	ResolverMDNS    = "mdns"
	ResolverDNSMDNS = "dns+mdns"
)

// ErrInvalidConfig is wrapped by every validation error.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the peersync configuration.
type Config struct {
	// Port is the service name or number peers listen on.
	Port string `yaml:"port"`

	TLS        TLSConfig        `yaml:"tls"`
	TrustStore TrustStoreConfig `yaml:"trust_store"`

	// DebugLevel controls verbosity; 3 and above traces session data.
	DebugLevel int `yaml:"debug_level"`

	// TraceFile receives CBOR protocol trace events when set.
	TraceFile string `yaml:"trace_file"`

	// Resolver selects how peer names are resolved.
	Resolver string `yaml:"resolver"`

	MDNS MDNSConfig `yaml:"mdns"`
	SSH  SSHConfig  `yaml:"ssh"`
}

// TLSConfig locates the local identity.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// TrustStoreConfig selects where pinned fingerprints are kept.
type TrustStoreConfig struct {
	// Kind is memory, file or sqlite.
	Kind string `yaml:"kind"`

	// Path is the JSON file or SQLite database. Unused for memory.
	Path string `yaml:"path"`
}

// MDNSConfig configures link-local discovery.
type MDNSConfig struct {
	// Interface restricts advertising and browsing to one interface.
	Interface string `yaml:"interface"`
}

// SSHConfig configures tunneled sessions.
type SSHConfig struct {
	User       string `yaml:"user"`
	KeyFile    string `yaml:"key_file"`
	KnownHosts string `yaml:"known_hosts"`

	// Command is run on the remote host and must speak peersync on stdio.
	Command string `yaml:"command"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port: DefaultPort,
		TLS: TLSConfig{
			CertFile: DefaultCertFile,
			KeyFile:  DefaultKeyFile,
		},
		TrustStore: TrustStoreConfig{
			Kind: TrustStoreSQLite,
			Path: DefaultTrustPath,
		},
		Resolver: ResolverDNS,
		SSH: SSHConfig{
			Command: DefaultSSHCmd,
		},
	}
}

// Load reads the file at path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result. Unknown
// keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field values and combinations.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("%w: port is required", ErrInvalidConfig)
	}
	if n, err := strconv.Atoi(c.Port); err == nil && (n < 1 || n > 65535) {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, n)
	}

	if c.TLS.CertFile == "" || c.TLS.KeyFile == "" {
		return fmt.Errorf("%w: tls.cert_file and tls.key_file are required", ErrInvalidConfig)
	}

	switch c.TrustStore.Kind {
	case TrustStoreMemory:
	case TrustStoreFile, TrustStoreSQLite:
		if c.TrustStore.Path == "" {
			return fmt.Errorf("%w: trust_store.path is required for kind %q", ErrInvalidConfig, c.TrustStore.Kind)
		}
	default:
		return fmt.Errorf("%w: unknown trust_store.kind %q", ErrInvalidConfig, c.TrustStore.Kind)
	}

	if c.DebugLevel < 0 {
		return fmt.Errorf("%w: debug_level must not be negative", ErrInvalidConfig)
	}

	switch c.Resolver {
	case ResolverDNS, ResolverMDNS, ResolverDNSMDNS:
	default:
		return fmt.Errorf("%w: unknown resolver %q", ErrInvalidConfig, c.Resolver)
	}

	if c.SSH.Command == "" {
		return fmt.Errorf("%w: ssh.command must not be empty", ErrInvalidConfig)
	}
	return nil
}

// UsesMDNS reports whether peer names are looked up with mDNS.
func (c *Config) UsesMDNS() bool {
	return c.Resolver == ResolverMDNS || c.Resolver == ResolverDNSMDNS
}
