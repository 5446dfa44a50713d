package plugin

import "context"

// StartFunc is a plug-in's resolved start entry point. It returns zero on
// success and a non-zero plug-in-defined code on failure, mirroring the
// C calling convention a native runtime library exports.
type StartFunc func() int32

// StopFunc is a plug-in's resolved stop entry point. Stop cannot fail:
// a stop callback cannot veto the transition back to RESOLVED.
type StopFunc func()

// Library is a single opened native runtime library, as produced by a
// SymbolLoader. Binding a missing symbol returns an error; Close must be
// safe to call exactly once, and is called by the resolver/uninstaller
// rather than by plug-in code.
type Library interface {
	// Bind resolves name and stores a callable of the requested shape
	// into fnPtr, which must be a pointer to a func type compatible with
	// the symbol's native signature (e.g. *StartFunc or *StopFunc).
	Bind(name string, fnPtr any) error
	// Close releases the library. Safe to call even if no symbols were
	// ever bound.
	Close() error
}

// SymbolLoader is the external collaborator (out of scope per spec) that
// opens a plug-in's native runtime library by path and later closes it.
// The core only ever calls Open/Close; symbol binding happens through
// the returned Library.
type SymbolLoader interface {
	Open(path string) (Library, error)
}

// DescriptorParser is the external collaborator (out of scope per spec)
// that turns a plug-in directory on disk into a Descriptor value. The
// core never calls it directly -- only the directory scan (§6 scan
// flags) and explicit LoadDescriptor operation do.
type DescriptorParser interface {
	Parse(installPath string) (*Descriptor, error)
}

// Severity classifies a log entry delivered to logger listeners (C7).
// Ordered so that a listener's minimum-severity filter is a simple
// numeric comparison.
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarn
	SeverityError
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarn:
		return "warn"
	case SeverityError:
		return "error"
	case SeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// LogEntry is a single message delivered to the framework's logger
// listeners. PluginID is empty for messages originating in the core
// itself rather than attributed to a specific plug-in.
type LogEntry struct {
	Severity Severity
	PluginID string
	Message  string
}

// StateEvent is delivered synchronously, in the thread causing the
// transition and while the owning context's lock is held, to every
// event listener registered on that context, in registration order.
type StateEvent struct {
	PluginID string
	OldState State
	NewState State
}

// StateListener observes plug-in lifecycle transitions on a context.
type StateListener func(event StateEvent, userData any)

// LogListener observes log entries. Listeners are registered with an
// optional minimum severity and an optional context filter; both are
// applied before the listener is invoked, never inside it.
type LogListener func(entry LogEntry, userData any)

// FatalHandler is invoked for conditions the core deems unrecoverable
// (a violated invariant, an unreachable-code guard). After it returns,
// the process is aborted; the handler exists so the host can flush
// state before that happens.
type FatalHandler func(detail string)

// ScanFlags control the behavior of a directory scan (§6).
type ScanFlags uint32

const (
	ScanUpgrade          ScanFlags = 1 << 0
	ScanStopAllOnUpgrade ScanFlags = 1 << 1
	ScanStopAllOnInstall ScanFlags = 1 << 2
	ScanRestartActive    ScanFlags = 1 << 3
)

// Has reports whether every bit in want is set in f.
func (f ScanFlags) Has(want ScanFlags) bool {
	return f&want == want
}

// ConfigProvider gives a plug-in type-safe access to its scoped
// configuration. It has no equivalent in spec.md's core data model but
// is carried as ambient per-plugin configuration, the way the teacher's
// plug-in contract threads one through every lifecycle callback.
type ConfigProvider interface {
	Get(key string) (any, bool)
	GetString(key string, defaultVal string) string
	GetInt(key string, defaultVal int) int
	GetBool(key string, defaultVal bool) bool
	Bind(target any) error
	IsEnabled() bool
}

// Activatable lets a plug-in built as an ordinary Go value (rather than
// a compiled native runtime library) participate in the lifecycle
// engine, for tests and in-process examples: InstallInProcess binds its
// Start/Stop directly instead of going through a SymbolLoader.
type Activatable interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context)
}
