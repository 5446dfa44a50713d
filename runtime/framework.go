package runtime

import (
	"sync"
	"sync/atomic"

	"github.com/gopluginhost/pluginhost/plugin"
)

// framework holds the process-wide state §9's design notes call for
// encapsulating behind explicit init/destroy rather than constructor-time
// statics: a reference count and an optional fatal-error handler, guarded
// by their own mutex, separate from any Context's lock.
type framework struct {
	mu           sync.Mutex
	refCount     int
	fatalHandler plugin.FatalHandler
	contexts     map[*Context]struct{}
}

var global = &framework{contexts: make(map[*Context]struct{})}

// Init is idempotent and reference-counted: it may be called multiple
// times; each call must be matched by a Destroy.
func Init() {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.refCount++
}

// Destroy decrements the framework reference count. The Nth call (the
// one that drops the count to zero) actually tears down: every live
// context is destroyed (which uninstalls all its plug-ins), and any
// descriptor still referenced by an outstanding host handle is reported
// as leaked rather than freed, per contract.
func Destroy() []string {
	global.mu.Lock()
	defer global.mu.Unlock()

	global.refCount--
	if global.refCount > 0 {
		return nil
	}

	var leaked []string
	for ctx := range global.contexts {
		leaked = append(leaked, reportLeakedDescriptors(ctx)...)
		ctx.Destroy()
	}
	global.contexts = make(map[*Context]struct{})
	return leaked
}

// reportLeakedDescriptors lists descriptors whose use-count is still
// above the one share a registered record holds for itself, meaning an
// outstanding GetInfo/ListInfo/Install handle the host never released.
// It must peek the count through Descriptors, not ListInfo: ListInfo
// mints a temporary handle per descriptor, which would bump every
// descriptor's use-count past one and report every live plug-in as
// leaked regardless of whether the host actually held anything.
func reportLeakedDescriptors(ctx *Context) []string {
	var leaked []string
	for _, d := range ctx.Descriptors() {
		if d.UseCount() > 1 {
			leaked = append(leaked, d.Identifier)
		}
	}
	return leaked
}

// trackContext registers ctx with the process-wide framework so Destroy
// can find it. Called by NewTrackedContext.
func trackContext(ctx *Context) {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.contexts[ctx] = struct{}{}
}

// NewTrackedContext creates a context exactly like NewContext, but also
// registers it so a subsequent framework Destroy() tears it down. Use
// NewContext directly for a context the host manages independently.
func NewTrackedContext(opts ...ContextOption) *Context {
	ctx := NewContext(opts...)
	trackContext(ctx)
	return ctx
}

// SetFatalHandler installs the handler invoked for conditions the core
// deems unrecoverable. Only one handler is active at a time; installing
// a new one replaces the old.
func SetFatalHandler(h plugin.FatalHandler) {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.fatalHandler = h
}

// Fatal invokes the installed fatal-error handler (if any) and then
// aborts the process, as the contract requires: after the handler
// returns, the condition is unrecoverable.
func Fatal(detail string) {
	global.mu.Lock()
	h := global.fatalHandler
	global.mu.Unlock()

	if h != nil {
		h(detail)
	}
	abort(detail)
}

var abortCount atomic.Int64

// abort is the process-termination step of Fatal, isolated so tests can
// observe that it would have been reached without actually exiting.
func abort(detail string) {
	abortCount.Add(1)
	panic("runtime: fatal condition: " + detail)
}
