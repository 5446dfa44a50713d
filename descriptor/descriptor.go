// Package descriptor implements plugin.DescriptorParser by reading a
// plugin.yaml manifest out of a plug-in's install directory with viper,
// defaulting optional fields with creasty/defaults. It is a leaf
// collaborator: the runtime core never imports it, only the cmd console
// and directory scan wiring do.
package descriptor

import (
	"fmt"
	"path/filepath"

	"github.com/creasty/defaults"
	"github.com/spf13/viper"

	"github.com/gopluginhost/pluginhost/plugin"
)

// ManifestFile is the well-known descriptor file name inside a plug-in's
// install directory.
const ManifestFile = "plugin.yaml"

// Parser reads plugin.yaml manifests.
type Parser struct{}

// New returns a ready-to-use Parser.
func New() *Parser {
	return &Parser{}
}

type manifest struct {
	Identifier   string            `mapstructure:"identifier"`
	Version      string            `mapstructure:"version"`
	ProviderName string            `mapstructure:"provider_name"`
	Imports      []importEntry     `mapstructure:"imports"`
	Lib          *libEntry         `mapstructure:"lib"`
	ExtensionPts []extensionPoint  `mapstructure:"extension_points"`
	Extensions   []extensionEntry  `mapstructure:"extensions"`
}

type importEntry struct {
	TargetID string `mapstructure:"target_id"`
	Version  string `mapstructure:"version"`
	Rule     string `mapstructure:"rule" default:"none"`
	Optional bool   `mapstructure:"optional" default:"false"`
}

type libEntry struct {
	Path        string `mapstructure:"path"`
	StartSymbol string `mapstructure:"start_symbol"`
	StopSymbol  string `mapstructure:"stop_symbol"`
}

type extensionPoint struct {
	LocalID     string `mapstructure:"local_id"`
	DisplayName string `mapstructure:"display_name"`
	SchemaPath  string `mapstructure:"schema_path"`
}

type extensionEntry struct {
	LocalID        string               `mapstructure:"local_id"`
	ExtensionPoint string               `mapstructure:"extension_point"`
	DisplayName    string               `mapstructure:"display_name"`
	Configuration  *configElementEntry  `mapstructure:"configuration"`
}

// configElementEntry mirrors plugin.ConfigElement for manifest parsing.
// Text is a pointer so a present-but-empty "text: \"\"" node can be told
// apart from a node that has no text at all (plugin.ConfigElement.HasText).
type configElementEntry struct {
	Name     string               `mapstructure:"name"`
	Attrs    map[string]string    `mapstructure:"attrs"`
	Text     *string              `mapstructure:"text"`
	Children []configElementEntry `mapstructure:"children"`
}

func (e configElementEntry) toConfigElement() plugin.ConfigElement {
	el := plugin.ConfigElement{Name: e.Name, Attrs: e.Attrs}
	if e.Text != nil {
		el.Text = *e.Text
		el.HasText = true
	}
	if len(e.Children) > 0 {
		el.Children = make([]plugin.ConfigElement, len(e.Children))
		for i, c := range e.Children {
			el.Children[i] = c.toConfigElement()
		}
	}
	return el
}

// Parse implements plugin.DescriptorParser. installPath is a directory
// containing a plugin.yaml manifest; relative runtime library paths are
// resolved against it by the resolver, not here.
func (p *Parser) Parse(installPath string) (*plugin.Descriptor, error) {
	v := viper.New()
	v.SetConfigFile(filepath.Join(installPath, ManifestFile))
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("descriptor: read %s: %w", installPath, err)
	}

	var m manifest
	if err := v.Unmarshal(&m); err != nil {
		return nil, fmt.Errorf("descriptor: unmarshal %s: %w", installPath, err)
	}
	if err := defaults.Set(&m); err != nil {
		return nil, fmt.Errorf("descriptor: apply defaults %s: %w", installPath, err)
	}

	if m.Identifier == "" {
		return nil, fmt.Errorf("descriptor: %s: missing identifier", installPath)
	}

	opts := []func(*plugin.Descriptor){plugin.WithInstallPath(installPath)}

	if m.Version != "" {
		ver, err := plugin.ParseVersion(m.Version)
		if err != nil {
			return nil, fmt.Errorf("descriptor: %s: %w", installPath, err)
		}
		opts = append(opts, plugin.WithVersion(ver))
	}
	if m.ProviderName != "" {
		opts = append(opts, plugin.WithProviderName(m.ProviderName))
	}

	if len(m.Imports) > 0 {
		imports := make([]plugin.Import, 0, len(m.Imports))
		for _, imp := range m.Imports {
			rule, err := parseMatchRule(imp.Rule)
			if err != nil {
				return nil, fmt.Errorf("descriptor: %s: import %s: %w", installPath, imp.TargetID, err)
			}
			entry := plugin.Import{TargetID: imp.TargetID, Rule: rule, Optional: imp.Optional}
			if imp.Version != "" {
				ver, err := plugin.ParseVersion(imp.Version)
				if err != nil {
					return nil, fmt.Errorf("descriptor: %s: import %s: %w", installPath, imp.TargetID, err)
				}
				entry.Version = &ver
			}
			imports = append(imports, entry)
		}
		opts = append(opts, plugin.WithImports(imports...))
	}

	if m.Lib != nil && m.Lib.Path != "" {
		opts = append(opts, plugin.WithRuntimeLib(plugin.RuntimeLib{
			Path:        m.Lib.Path,
			StartSymbol: m.Lib.StartSymbol,
			StopSymbol:  m.Lib.StopSymbol,
		}))
	}

	if len(m.ExtensionPts) > 0 {
		eps := make([]plugin.ExtensionPointDecl, 0, len(m.ExtensionPts))
		for _, ep := range m.ExtensionPts {
			eps = append(eps, plugin.ExtensionPointDecl{
				LocalID:     ep.LocalID,
				DisplayName: ep.DisplayName,
				SchemaPath:  ep.SchemaPath,
			})
		}
		opts = append(opts, plugin.WithExtensionPoints(eps...))
	}

	if len(m.Extensions) > 0 {
		exts := make([]plugin.ExtensionDecl, 0, len(m.Extensions))
		for _, e := range m.Extensions {
			decl := plugin.ExtensionDecl{
				LocalID:        e.LocalID,
				ExtensionPoint: e.ExtensionPoint,
				DisplayName:    e.DisplayName,
			}
			if e.Configuration != nil {
				decl.Configuration = e.Configuration.toConfigElement()
			}
			exts = append(exts, decl)
		}
		opts = append(opts, plugin.WithExtensions(exts...))
	}

	return plugin.NewDescriptor(m.Identifier, opts...)
}

func parseMatchRule(s string) (plugin.MatchRule, error) {
	switch s {
	case "", "none":
		return plugin.MatchNone, nil
	case "perfect":
		return plugin.MatchPerfect, nil
	case "equivalent":
		return plugin.MatchEquivalent, nil
	case "compatible":
		return plugin.MatchCompatible, nil
	case "greater-or-equal":
		return plugin.MatchGreaterOrEqual, nil
	default:
		return 0, fmt.Errorf("unknown match rule %q", s)
	}
}
