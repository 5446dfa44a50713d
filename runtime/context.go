// Package runtime implements the plug-in lifecycle engine: a per-context
// registry of plug-ins, extension points and extensions, the cycle-tolerant
// dependency resolver, the dependency-ordered activator, and the uninstaller,
// all guarded by a single per-context lock with synchronous event delivery.
package runtime

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/gopluginhost/pluginhost/errors"
	"github.com/gopluginhost/pluginhost/logging"
	"github.com/gopluginhost/pluginhost/metrics"
	"github.com/gopluginhost/pluginhost/plugin"
	"go.uber.org/zap"
)

type eventListenerEntry struct {
	id       uint64
	listener plugin.StateListener
	userData any
}

type logListenerEntry struct {
	id          uint64
	listener    plugin.LogListener
	userData    any
	minSeverity plugin.Severity
}

type registeredExtensionPoint struct {
	owner string
	decl  plugin.ExtensionPointDecl
}

type registeredExtension struct {
	owner string
	decl  plugin.ExtensionDecl
}

// Context is a single isolated plug-in registry (the context registry of
// §4.1), guarded by its own lock. Every mutating public method acquires
// mu for its entire duration, including any plug-in start/stop callback
// it triggers; internal helpers named with a "Locked" suffix assume the
// lock is already held and must only be called from another Locked
// method or from a method that itself holds mu.
//
// Go's sync.Mutex has no re-entrant variant, so the "recursive
// acquisition by the same executor" the design calls for is realized
// structurally: recursion over the import/importing graph happens
// entirely within the Locked layer, never by a public method re-taking
// mu. A traversal-local visited set (not a flag stored on the record)
// breaks cycles, per the design note on avoiding aliased in-record
// "processed" flags.
type Context struct {
	mu sync.Mutex

	logger        logging.Logger
	loggerFactory *logging.Factory
	loader        plugin.SymbolLoader
	parser        plugin.DescriptorParser
	metrics       *metrics.Collector

	plugins         map[string]*plugin.RegisteredPlugin
	extensionPoints map[string]*registeredExtensionPoint
	extensions      map[string][]*registeredExtension
	started         []*plugin.RegisteredPlugin
	directories     []string

	eventListeners []eventListenerEntry
	logListeners   []logListenerEntry
	minLogSeverity plugin.Severity
	nextListenerID uint64

	scanConcurrency int

	// startInvocations/stopInvocations are non-zero while a start or stop
	// callback is executing on the goroutine currently holding mu (the
	// invocation guard, C8). They are atomics, not plain ints, so a method
	// forbidden from inside a callback (Destroy) can consult them without
	// first taking mu -- mu is non-reentrant, and the callback holds it for
	// its entire duration, so acquiring it from inside the callback's own
	// goroutine would deadlock before the guard ever ran.
	startInvocations atomic.Int32
	stopInvocations  atomic.Int32

	destroyed bool
}

// ContextOption configures a Context at construction time.
type ContextOption func(*Context)

// WithLogger sets the ambient structured logger the context mirrors
// every delivered log entry to, in addition to its registered listeners.
func WithLogger(l logging.Logger) ContextOption {
	return func(c *Context) { c.logger = l }
}

// WithLoggerFactory installs a Factory the context draws per-plugin
// loggers from: a log entry tagged with a plugin identifier is emitted
// through that plugin's own named logger (sharing the factory's config)
// instead of the ambient logger set by WithLogger. Entries with no
// plugin identifier, such as framework-level warnings, still go through
// the ambient logger.
func WithLoggerFactory(f *logging.Factory) ContextOption {
	return func(c *Context) { c.loggerFactory = f }
}

// WithSymbolLoader installs the native-library loader the resolver uses
// to open a plug-in's runtime library and bind its start/stop symbols.
func WithSymbolLoader(l plugin.SymbolLoader) ContextOption {
	return func(c *Context) { c.loader = l }
}

// WithDescriptorParser installs the parser LoadDescriptor and Scan use to
// turn an on-disk plug-in directory into a Descriptor.
func WithDescriptorParser(p plugin.DescriptorParser) ContextOption {
	return func(c *Context) { c.parser = p }
}

// WithScanConcurrency bounds how many plug-in directory entries a Scan
// call parses and installs concurrently. The default is 1 (sequential).
func WithScanConcurrency(n int) ContextOption {
	return func(c *Context) { c.scanConcurrency = n }
}

// WithMetrics installs the Collector resolve/start/stop timing is
// reported against. A Context built without this option records no
// durations; its other lifecycle behavior is unaffected.
func WithMetrics(m *metrics.Collector) ContextOption {
	return func(c *Context) { c.metrics = m }
}

// NewContext creates a context. Creation never blocks and has no effect
// on any other context.
func NewContext(opts ...ContextOption) *Context {
	c := &Context{
		logger:          logging.FromZap(zap.NewNop()),
		plugins:         make(map[string]*plugin.RegisteredPlugin),
		extensionPoints: make(map[string]*registeredExtensionPoint),
		extensions:      make(map[string][]*registeredExtension),
		minLogSeverity:  plugin.SeverityFatal + 1,
		scanConcurrency: 1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddDirectory registers a plug-in directory for future Scan calls.
// Adding the same path twice is idempotent.
func (c *Context) AddDirectory(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range c.directories {
		if d == path {
			return
		}
	}
	c.directories = append(c.directories, path)
}

// RemoveDirectory unregisters a plug-in directory. Removing an
// unregistered path is a no-op.
func (c *Context) RemoveDirectory(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, d := range c.directories {
		if d == path {
			c.directories = append(c.directories[:i], c.directories[i+1:]...)
			return
		}
	}
}

// Directories returns a snapshot of the configured plug-in directories.
func (c *Context) Directories() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string{}, c.directories...)
}

// Destroy is equivalent to uninstall-all followed by release of every
// resource the context owns. It is forbidden from inside a plug-in's
// start/stop callback: the callback runs with mu already held by this
// goroutine, and mu is non-reentrant, so the guard must be checked before
// attempting to acquire it -- checking after Lock() would deadlock the
// calling goroutine instead of returning InvalidInvocation.
func (c *Context) Destroy() error {
	if c.startInvocations.Load() > 0 || c.stopInvocations.Load() > 0 {
		return errors.NewInvalidInvocation("Context.Destroy")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.uninstallAllLocked()
	c.destroyed = true
	return nil
}

// AddStateListener registers a plug-in lifecycle listener, delivered
// synchronously and in registration order while the context lock is
// held. It returns an id for RemoveStateListener.
func (c *Context) AddStateListener(l plugin.StateListener, userData any) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextListenerID++
	id := c.nextListenerID
	c.eventListeners = append(c.eventListeners, eventListenerEntry{id: id, listener: l, userData: userData})
	return id
}

// RemoveStateListener unregisters a listener added by AddStateListener.
func (c *Context) RemoveStateListener(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, e := range c.eventListeners {
		if e.id == id {
			c.eventListeners = append(c.eventListeners[:i], c.eventListeners[i+1:]...)
			return
		}
	}
}

// AddLogListener registers a log listener with a minimum severity
// filter. The context keeps a cached global minimum across all log
// listeners so a message that no listener wants and the ambient logger
// does not have enabled skips formatting entirely.
func (c *Context) AddLogListener(l plugin.LogListener, minSeverity plugin.Severity, userData any) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextListenerID++
	id := c.nextListenerID
	c.logListeners = append(c.logListeners, logListenerEntry{id: id, listener: l, userData: userData, minSeverity: minSeverity})
	c.refreshMinSeverityLocked()
	return id
}

// RemoveLogListener unregisters a listener added by AddLogListener.
func (c *Context) RemoveLogListener(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, e := range c.logListeners {
		if e.id == id {
			c.logListeners = append(c.logListeners[:i], c.logListeners[i+1:]...)
			c.refreshMinSeverityLocked()
			return
		}
	}
}

func (c *Context) refreshMinSeverityLocked() {
	if len(c.logListeners) == 0 {
		c.minLogSeverity = plugin.SeverityFatal + 1
		return
	}
	min := plugin.SeverityFatal
	for _, e := range c.logListeners {
		if e.minSeverity < min {
			min = e.minSeverity
		}
	}
	c.minLogSeverity = min
}

func (c *Context) emitStateEventLocked(pluginID string, old, newState plugin.State) {
	ev := plugin.StateEvent{PluginID: pluginID, OldState: old, NewState: newState}
	for _, e := range c.eventListeners {
		e.listener(ev, e.userData)
	}
}

func (c *Context) logLocked(sev plugin.Severity, pluginID, format string, args ...any) {
	logger := c.logger
	if pluginID != "" && c.loggerFactory != nil {
		logger = c.loggerFactory.GetLogger(pluginID)
	}
	level := zap.ErrorLevel
	switch sev {
	case plugin.SeverityDebug:
		level = zap.DebugLevel
	case plugin.SeverityInfo:
		level = zap.InfoLevel
	case plugin.SeverityWarn:
		level = zap.WarnLevel
	}
	toListeners := sev >= c.minLogSeverity
	if !toListeners && !logger.Zap().Core().Enabled(level) {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if toListeners {
		entry := plugin.LogEntry{Severity: sev, PluginID: pluginID, Message: msg}
		for _, e := range c.logListeners {
			if sev < e.minSeverity {
				continue
			}
			e.listener(entry, e.userData)
		}
	}

	field := logging.PluginField(pluginID)
	switch sev {
	case plugin.SeverityDebug:
		logger.Debug(msg, field)
	case plugin.SeverityInfo:
		logger.Info(msg, field)
	case plugin.SeverityWarn:
		logger.Warn(msg, field)
	default:
		logger.Error(msg, field)
	}
}

func (c *Context) transitionLocked(rp *plugin.RegisteredPlugin, newState plugin.State) {
	old := rp.State
	rp.State = newState
	c.emitStateEventLocked(rp.ID(), old, newState)
}

// State returns a plug-in's current lifecycle state.
func (c *Context) State(id string) (plugin.State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rp, ok := c.plugins[id]
	if !ok {
		return 0, false
	}
	return rp.State, true
}

// StartedPlugins returns the identifiers of every ACTIVE plug-in, in the
// real-time order they entered ACTIVE.
func (c *Context) StartedPlugins() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, len(c.started))
	for i, rp := range c.started {
		ids[i] = rp.ID()
	}
	return ids
}

// StateCounts tallies registered plug-ins by their current lifecycle
// state, for ambient metrics reporting.
func (c *Context) StateCounts() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	counts := make(map[string]int)
	for _, rp := range c.plugins {
		counts[rp.State.String()]++
	}
	return counts
}

// GetInfo returns a reference-counted handle to id's descriptor.
func (c *Context) GetInfo(id string) (*plugin.DescriptorHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rp, ok := c.plugins[id]
	if !ok {
		return nil, errors.NewUnknown(id)
	}
	return plugin.NewDescriptorHandle(rp.Descriptor), nil
}

// ListInfo returns a handle to every registered plug-in's descriptor, in
// identifier order. The batch acquisition is atomic.
func (c *Context) ListInfo() []*plugin.DescriptorHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	descs := make([]*plugin.Descriptor, 0, len(c.plugins))
	for _, rp := range c.plugins {
		descs = append(descs, rp.Descriptor)
	}
	sort.Slice(descs, func(i, j int) bool { return descs[i].Identifier < descs[j].Identifier })
	return plugin.NewDescriptorHandles(descs)
}

// descriptorsLocked returns every registered plug-in's descriptor, in
// identifier order, without minting a DescriptorHandle for any of
// them -- unlike ListInfo, this does not touch any descriptor's
// use-count. Used by framework-level leak reporting, which must
// observe the use-count outstanding host handles actually left behind
// rather than one it created itself by looking.
func (c *Context) descriptorsLocked() []*plugin.Descriptor {
	descs := make([]*plugin.Descriptor, 0, len(c.plugins))
	for _, rp := range c.plugins {
		descs = append(descs, rp.Descriptor)
	}
	sort.Slice(descs, func(i, j int) bool { return descs[i].Identifier < descs[j].Identifier })
	return descs
}

// Descriptors returns every registered plug-in's descriptor, in
// identifier order, without acquiring a use-count share. See
// descriptorsLocked.
func (c *Context) Descriptors() []*plugin.Descriptor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.descriptorsLocked()
}

// ReleaseInfo releases a handle obtained from GetInfo/ListInfo/Install. A
// double release is logged and otherwise ignored.
func (c *Context) ReleaseInfo(h *plugin.DescriptorHandle) {
	if h == nil {
		return
	}
	if !h.Release() {
		c.mu.Lock()
		c.logLocked(plugin.SeverityWarn, "", "double release of descriptor handle %s", h.Token())
		c.mu.Unlock()
	}
}

// ExtensionPoint looks up a registered extension point by its global id.
func (c *Context) ExtensionPoint(globalID string) (plugin.ExtensionPointDecl, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ep, ok := c.extensionPoints[globalID]
	if !ok {
		return plugin.ExtensionPointDecl{}, false
	}
	return ep.decl, true
}

// Extensions returns the extensions contributed to an extension point, in
// insertion order. A point with no contributions yet (or never declared)
// returns an empty slice.
func (c *Context) Extensions(extensionPointGlobalID string) []plugin.ExtensionDecl {
	c.mu.Lock()
	defer c.mu.Unlock()
	list := c.extensions[extensionPointGlobalID]
	out := make([]plugin.ExtensionDecl, len(list))
	for i, e := range list {
		out[i] = e.decl
	}
	return out
}
