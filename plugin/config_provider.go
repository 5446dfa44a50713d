package plugin

import "encoding/json"

// PluginConfigEntry represents a single plugin's configuration entry.
type PluginConfigEntry struct {
	name     string
	enabled  bool
	settings map[string]any
}

// NewPluginConfigEntry creates a plugin config entry.
func NewPluginConfigEntry(name string, enabled bool, settings map[string]any) *PluginConfigEntry {
	if settings == nil {
		settings = make(map[string]any)
	}
	return &PluginConfigEntry{name: name, enabled: enabled, settings: settings}
}

func (c *PluginConfigEntry) Get(key string) (any, bool) {
	v, ok := c.settings[key]
	return v, ok
}

func (c *PluginConfigEntry) GetString(key string, defaultVal string) string {
	v, ok := c.settings[key]
	if !ok {
		return defaultVal
	}
	s, ok := v.(string)
	if !ok {
		return defaultVal
	}
	return s
}

func (c *PluginConfigEntry) GetInt(key string, defaultVal int) int {
	v, ok := c.settings[key]
	if !ok {
		return defaultVal
	}
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	case int64:
		return int(n)
	default:
		return defaultVal
	}
}

func (c *PluginConfigEntry) GetBool(key string, defaultVal bool) bool {
	v, ok := c.settings[key]
	if !ok {
		return defaultVal
	}
	b, ok := v.(bool)
	if !ok {
		return defaultVal
	}
	return b
}

func (c *PluginConfigEntry) Bind(target any) error {
	data, err := json.Marshal(c.settings)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}

func (c *PluginConfigEntry) IsEnabled() bool {
	return c.enabled
}

// MapConfigProvider is a simple ConfigProvider backed by a map.
// Used for testing and inline configuration.
type MapConfigProvider = PluginConfigEntry

// NewMapConfigProvider creates a ConfigProvider from a settings map (always enabled).
func NewMapConfigProvider(settings map[string]any) *PluginConfigEntry {
	return NewPluginConfigEntry("", true, settings)
}

// NewConfigElementProvider builds a ConfigProvider view over an
// extension's parsed configuration tree (ExtensionDecl.Configuration):
// each attribute of el becomes a setting, and each direct child with a
// text value contributes a setting under its own name. This lets a
// plug-in read its extension's manifest configuration through the same
// Get/GetString/GetInt/GetBool surface as any other ConfigProvider,
// instead of walking ConfigElement by hand.
func NewConfigElementProvider(el ConfigElement) *PluginConfigEntry {
	settings := make(map[string]any, len(el.Attrs)+len(el.Children))
	for k, v := range el.Attrs {
		settings[k] = v
	}
	for _, child := range el.Children {
		if child.HasText {
			settings[child.Name] = child.Text
		}
	}
	return NewPluginConfigEntry(el.Name, true, settings)
}

// emptyConfig is a ConfigProvider that returns defaults for everything.
type emptyConfig struct{}

func (e *emptyConfig) Get(string) (any, bool)             { return nil, false }
func (e *emptyConfig) GetString(_ string, d string) string { return d }
func (e *emptyConfig) GetInt(_ string, d int) int          { return d }
func (e *emptyConfig) GetBool(_ string, d bool) bool       { return d }
func (e *emptyConfig) Bind(any) error                      { return nil }
func (e *emptyConfig) IsEnabled() bool                     { return false }

// EmptyConfig returns a ConfigProvider that always returns defaults.
func EmptyConfig() ConfigProvider { return &emptyConfig{} }
