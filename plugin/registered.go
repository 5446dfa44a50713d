package plugin

// RegisteredPlugin is the mutable per-context record for one installed
// plug-in (C2). It is created on install and destroyed once its state
// reaches UNINSTALLED and no DescriptorHandle still pins its descriptor.
//
// Imported/Importing model the dependency graph as sets of edges, owned
// jointly by both endpoints: adding or removing an edge always touches
// both records together (see Link/Unlink). Recursive traversals (resolve,
// start, stop, uninstall) track their own visited set rather than a flag
// on the record itself, per the design note in spec.md §9 -- a
// traversal-scoped set composes safely even if a goroutine re-enters the
// same context's lock from inside a listener.
type RegisteredPlugin struct {
	Descriptor *Descriptor
	State      State

	// Imported is the set of registered plug-ins this one depends on,
	// keyed by target identifier. Importing is the inverse: the set of
	// registered plug-ins that depend on this one.
	Imported  map[string]*RegisteredPlugin
	Importing map[string]*RegisteredPlugin

	Library Library
	Start   StartFunc
	Stop    StopFunc

	// runtime is set when the plug-in was installed via
	// Context.InstallInProcess instead of a native runtime library.
	runtime Activatable
}

// ID returns the plug-in's identifier.
func (r *RegisteredPlugin) ID() string {
	return r.Descriptor.Identifier
}

// NewRegisteredPlugin creates a fresh record in state UNINSTALLED for a
// descriptor. The caller is responsible for acquiring the record's share
// of the descriptor's use-count (NewRegisteredPlugin does not, since
// install may still fail before the record is actually kept).
func NewRegisteredPlugin(d *Descriptor) *RegisteredPlugin {
	return &RegisteredPlugin{
		Descriptor: d,
		State:      StateUninstalled,
		Imported:   make(map[string]*RegisteredPlugin),
		Importing:  make(map[string]*RegisteredPlugin),
	}
}

// Link records a dependency edge: r imports target. Both sides are
// updated together so the invariant "r.Imported[target.ID]==target iff
// target.Importing[r.ID]==r" always holds.
func Link(r, target *RegisteredPlugin) {
	r.Imported[target.ID()] = target
	target.Importing[r.ID()] = r
}

// Unlink removes the dependency edge recorded by Link, from both sides.
func Unlink(r, target *RegisteredPlugin) {
	delete(r.Imported, target.ID())
	delete(target.Importing, r.ID())
}

// SetActivatable binds an in-process Go value as this record's runtime,
// bypassing the native SymbolLoader. Used by Context.InstallInProcess.
func (r *RegisteredPlugin) SetActivatable(a Activatable) {
	r.runtime = a
}

// Activatable returns the in-process runtime bound via SetActivatable,
// or nil if this plug-in's runtime is a native library (or has none).
func (r *RegisteredPlugin) Activatable() Activatable {
	return r.runtime
}
