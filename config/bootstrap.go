package config

import (
	"fmt"

	"github.com/gopluginhost/pluginhost/plugin"
)

// Bootstrap is the framework-level configuration a host process loads
// once at startup: where plug-ins live, how a scan should behave, and
// how verbosely the engine should log. It is distinct from a single
// plug-in's own ConfigProvider (plugin.ConfigProvider), which stays
// scoped to that plugin's own configuration section.
type Bootstrap struct {
	Directories          []string `mapstructure:"directories"`
	ScanUpgrade          bool     `mapstructure:"scan_upgrade" default:"false"`
	ScanStopAllOnUpgrade bool     `mapstructure:"scan_stop_all_on_upgrade" default:"false"`
	ScanStopAllOnInstall bool     `mapstructure:"scan_stop_all_on_install" default:"false"`
	ScanRestartActive    bool     `mapstructure:"scan_restart_active" default:"true"`
	ScanConcurrency      int      `mapstructure:"scan_concurrency" default:"4"`
	LogLevel             string   `mapstructure:"log_level" default:"info"`
	MetricsListenAddr    string   `mapstructure:"metrics_listen_addr" default:":9090"`
}

// ScanFlags translates the bootstrap's boolean knobs into a
// plugin.ScanFlags bitmask.
func (b Bootstrap) ScanFlags() plugin.ScanFlags {
	var f plugin.ScanFlags
	if b.ScanUpgrade {
		f |= plugin.ScanUpgrade
	}
	if b.ScanStopAllOnUpgrade {
		f |= plugin.ScanStopAllOnUpgrade
	}
	if b.ScanStopAllOnInstall {
		f |= plugin.ScanStopAllOnInstall
	}
	if b.ScanRestartActive {
		f |= plugin.ScanRestartActive
	}
	return f
}

// Validate implements Validator.
func (b Bootstrap) Validate() error {
	if len(b.Directories) == 0 {
		return fmt.Errorf("❌ bootstrap config: at least one plug-in directory is required")
	}
	if b.ScanConcurrency < 1 {
		return fmt.Errorf("❌ bootstrap config: scan_concurrency must be >= 1")
	}
	return nil
}

// LoadBootstrap reads and defaults a Bootstrap from the given config
// instance, the same Bind-then-defaults path every other config
// consumer in the module uses.
func LoadBootstrap(c *Config) (*Bootstrap, error) {
	b := &Bootstrap{}
	if err := c.BindWithDefaults(b); err != nil {
		return nil, err
	}
	return b, nil
}
