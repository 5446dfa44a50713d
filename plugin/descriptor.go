package plugin

import (
	"fmt"
	"sync/atomic"
	"unicode"
)

// MaxIdentifierBytes is the maximum length of a plug-in or extension
// point/extension local identifier.
const MaxIdentifierBytes = 63

// Import declares a dependency of one plug-in on another.
type Import struct {
	TargetID string
	Version  *Version
	Rule     MatchRule
	Optional bool
}

// ExtensionPointDecl declares an extension point contributed by a plug-in.
type ExtensionPointDecl struct {
	LocalID     string
	DisplayName string
	SchemaPath  string
}

// GlobalID returns the context-wide identifier of the extension point,
// given the owning plug-in's identifier.
func (d ExtensionPointDecl) GlobalID(pluginID string) string {
	return pluginID + "." + d.LocalID
}

// ConfigElement is a node in an extension's configuration tree.
type ConfigElement struct {
	Name     string
	Attrs    map[string]string
	Text     string
	HasText  bool
	Children []ConfigElement
}

// ExtensionDecl declares a contribution to an extension point.
type ExtensionDecl struct {
	LocalID         string // optional
	ExtensionPoint  string // target extension point global id
	DisplayName     string
	Configuration   ConfigElement
}

// GlobalID returns the context-wide identifier of the extension, given the
// owning plug-in's identifier. Extensions with no local id have no global
// id: the second return value is false.
func (d ExtensionDecl) GlobalID(pluginID string) (string, bool) {
	if d.LocalID == "" {
		return "", false
	}
	return pluginID + "." + d.LocalID, true
}

// RuntimeLib declares the native runtime library backing a plug-in, if any.
type RuntimeLib struct {
	Path        string // relative to the plug-in's install path
	StartSymbol string // optional
	StopSymbol  string // optional
}

// Descriptor is the immutable, reference-counted metadata record produced
// by the descriptor parser for a single plug-in directory. A Descriptor
// outlives uninstall for as long as the host, or a registered record,
// holds a share of it (see DescriptorHandle).
type Descriptor struct {
	Identifier      string
	Version         *Version
	ProviderName    string
	InstallPath     string
	Imports         []Import
	Lib             *RuntimeLib
	ExtensionPoints []ExtensionPointDecl
	Extensions      []ExtensionDecl

	useCount int32
}

// NewDescriptor validates and constructs a Descriptor. It starts with a
// use-count of zero; callers that keep a share must call Acquire.
func NewDescriptor(identifier string, opts ...func(*Descriptor)) (*Descriptor, error) {
	if err := validateIdentifier(identifier); err != nil {
		return nil, err
	}

	d := &Descriptor{Identifier: identifier}
	for _, opt := range opts {
		opt(d)
	}

	seen := make(map[string]struct{}, len(d.ExtensionPoints))
	for _, ep := range d.ExtensionPoints {
		if err := validateIdentifier(ep.LocalID); err != nil {
			return nil, fmt.Errorf("plugin %q: extension point: %w", identifier, err)
		}
		if _, dup := seen[ep.LocalID]; dup {
			return nil, fmt.Errorf("plugin %q: duplicate extension point local id %q", identifier, ep.LocalID)
		}
		seen[ep.LocalID] = struct{}{}
	}

	return d, nil
}

// WithVersion sets a descriptor's version.
func WithVersion(v Version) func(*Descriptor) {
	return func(d *Descriptor) { d.Version = &v }
}

// WithProviderName sets a descriptor's provider name.
func WithProviderName(name string) func(*Descriptor) {
	return func(d *Descriptor) { d.ProviderName = name }
}

// WithInstallPath sets a descriptor's install path.
func WithInstallPath(path string) func(*Descriptor) {
	return func(d *Descriptor) { d.InstallPath = path }
}

// WithImports sets a descriptor's declared imports.
func WithImports(imports ...Import) func(*Descriptor) {
	return func(d *Descriptor) { d.Imports = imports }
}

// WithRuntimeLib sets a descriptor's native runtime library declaration.
func WithRuntimeLib(lib RuntimeLib) func(*Descriptor) {
	return func(d *Descriptor) { d.Lib = &lib }
}

// WithExtensionPoints sets a descriptor's declared extension points.
func WithExtensionPoints(eps ...ExtensionPointDecl) func(*Descriptor) {
	return func(d *Descriptor) { d.ExtensionPoints = eps }
}

// WithExtensions sets a descriptor's declared extensions.
func WithExtensions(exts ...ExtensionDecl) func(*Descriptor) {
	return func(d *Descriptor) { d.Extensions = exts }
}

func validateIdentifier(id string) error {
	if id == "" {
		return fmt.Errorf("plugin: identifier must not be empty")
	}
	if len(id) > MaxIdentifierBytes {
		return fmt.Errorf("plugin: identifier %q exceeds %d bytes", id, MaxIdentifierBytes)
	}
	for _, r := range id {
		if !unicode.IsPrint(r) {
			return fmt.Errorf("plugin: identifier %q contains a non-printable character", id)
		}
	}
	return nil
}

// Acquire increments the descriptor's use-count. Every borrowed reference
// -- a registered record's share, and every DescriptorHandle returned to
// the host -- must hold exactly one use.
func (d *Descriptor) Acquire() {
	atomic.AddInt32(&d.useCount, 1)
}

// Release decrements the descriptor's use-count. It reports the count
// after the release; callers that drop the count to zero and hold the
// last reachable share are responsible for letting the value be
// collected (there is no explicit destructor in Go).
func (d *Descriptor) Release() int32 {
	return atomic.AddInt32(&d.useCount, -1)
}

// UseCount returns the current use-count, for diagnostics and tests.
func (d *Descriptor) UseCount() int32 {
	return atomic.LoadInt32(&d.useCount)
}
