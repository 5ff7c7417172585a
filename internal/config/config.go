// Package config loads and validates the slave's JSON configuration
// document, per spec.md §6.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/validate"
)

// InterfacesConfig selects which interfaces the slave listens on.
type InterfacesConfig struct {
	// Interfaces lists interface names, or ["*"] for every interface.
	Interfaces []string `json:"interfaces"`
}

// Validate implements the [validate.Interface] interface for
// *InterfacesConfig.
func (c *InterfacesConfig) Validate() (err error) {
	if c == nil {
		return errors.ErrNoValue
	}

	if len(c.Interfaces) == 0 {
		return fmt.Errorf("interfaces: %w", errors.ErrEmptyValue)
	}

	return nil
}

// ClientClass is one named, compiled-at-load-time class predicate.
type ClientClass struct {
	Name string `json:"name"`
	Test string `json:"test"`
}

// Validate implements the [validate.Interface] interface for
// *ClientClass.
func (c *ClientClass) Validate() (err error) {
	if c == nil {
		return errors.ErrNoValue
	}

	errs := []error{
		validate.NotEmpty("name", c.Name),
		validate.NotEmpty("test", c.Test),
	}

	return errors.Join(errs...)
}

// Pool is one configured address pool.
type Pool struct {
	PoolRange string `json:"pool"`
}

// OptionData is one option value to return to clients.
type OptionData struct {
	Name string `json:"name"`
	Code int    `json:"code"`
	Data string `json:"data"`
}

// Subnet4 is one configured IPv4 subnet, per spec.md §6.
type Subnet4 struct {
	ID              uint32       `json:"id"`
	Subnet          string       `json:"subnet"`
	Pools           []Pool       `json:"pools"`
	ClientClass     string       `json:"client-class"`
	OptionData      []OptionData `json:"option-data"`
	ValidLifetime   uint32       `json:"valid-lifetime"`
	SharedNetworkID uint32       `json:"shared-network-id"`
}

// Validate implements the [validate.Interface] interface for
// *Subnet4.
func (s *Subnet4) Validate() (err error) {
	if s == nil {
		return errors.ErrNoValue
	}

	errs := []error{
		validate.NotEmpty("subnet", s.Subnet),
	}

	if len(s.Pools) == 0 {
		errs = append(errs, fmt.Errorf("pools: %w", errors.ErrEmptyValue))
	}

	return errors.Join(errs...)
}

// HooksLibrary is one hook library to load at startup.
type HooksLibrary struct {
	Library    string         `json:"library"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// RPCServerConfig configures the master RPC client.
type RPCServerConfig struct {
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Connections int    `json:"connections"`
}

// Validate implements the [validate.Interface] interface for
// *RPCServerConfig.
func (c *RPCServerConfig) Validate() (err error) {
	if c == nil {
		return errors.ErrNoValue
	}

	errs := []error{
		validate.NotEmpty("host", c.Host),
		validate.Positive("port", c.Port),
		validate.Positive("connections", c.Connections),
	}

	return errors.Join(errs...)
}

// PingConfig configures the ICMP conflict-detection engine.
type PingConfig struct {
	Enable     bool `json:"enable"`
	TimeoutMS  int  `json:"timeout-ms"`
	QueueSize  int  `json:"queue-size"`
}

// Config is the top-level JSON configuration document, per spec.md
// §6's recognized key table.
type Config struct {
	InterfacesConfig         InterfacesConfig `json:"interfaces-config"`
	LeaseDatabase            string           `json:"lease-database"`
	ClientClasses            []ClientClass    `json:"client-classes"`
	Subnet4                  []Subnet4        `json:"subnet4"`
	ExpiredLeasesProcessing  json.RawMessage  `json:"expired-leases-processing,omitempty"`
	HooksLibraries           []HooksLibrary   `json:"hooks-libraries"`
	RPCServer                RPCServerConfig  `json:"rpc-server"`
	Ping                     PingConfig       `json:"ping"`

	// ControlAddr and WorkerCount are ambient operational settings
	// not named in spec.md's recognized-key table but required to
	// run the process; they are not part of the master's lease
	// contract.
	ControlAddr string `json:"control-addr"`
	WorkerCount int    `json:"worker-count"`
}

// type check
var _ validate.Interface = (*Config)(nil)

// Validate implements the [validate.Interface] interface for *Config.
func (c *Config) Validate() (err error) {
	if c == nil {
		return errors.ErrNoValue
	}

	var errs []error
	errs = validate.Append(errs, "interfaces-config", &c.InterfacesConfig)

	if len(c.Subnet4) == 0 {
		errs = append(errs, fmt.Errorf("subnet4: %w", errors.ErrEmptyValue))
	}

	for i, cls := range c.ClientClasses {
		errs = validate.Append(errs, fmt.Sprintf("client-classes[%d]", i), &cls)
	}

	for i, sn := range c.Subnet4 {
		errs = validate.Append(errs, fmt.Sprintf("subnet4[%d]", i), &sn)
	}

	errs = validate.Append(errs, "rpc-server", &c.RPCServer)

	if c.Ping.Enable {
		errs = append(errs, validate.Positive("ping.timeout-ms", c.Ping.TimeoutMS))
	}

	return errors.Join(errs...)
}

// PingTimeout returns the configured ping timeout as a [time.Duration].
func (c *Config) PingTimeout() time.Duration {
	return time.Duration(c.Ping.TimeoutMS) * time.Millisecond
}

// Load reads and validates the configuration document at path.
func Load(path string) (conf *Config, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	conf = &Config{}
	if err = json.Unmarshal(data, conf); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err = conf.Validate(); err != nil {
		return nil, fmt.Errorf("validating config %s: %w", path, err)
	}

	return conf, nil
}
