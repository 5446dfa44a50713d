// Package loader implements plugin.SymbolLoader on top of purego, opening
// native runtime libraries and binding their exported symbols without
// cgo. It is the concrete collaborator the resolver (C4) and activator
// (C5) consume through the plugin.SymbolLoader/plugin.Library interfaces;
// within the module only cmd/pluginctl imports it directly, to hand it to
// the Context it builds.
package loader

import (
	"fmt"
	"sync"

	"github.com/ebitengine/purego"
	"github.com/gopluginhost/pluginhost/plugin"
)

// Loader opens native runtime libraries via dlopen/dlsym (or the
// platform equivalent purego selects).
type Loader struct{}

// New returns a ready-to-use Loader.
func New() *Loader {
	return &Loader{}
}

// Open implements plugin.SymbolLoader.
func (l *Loader) Open(path string) (plugin.Library, error) {
	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, fmt.Errorf("loader: open %s: %w", path, err)
	}
	return &library{path: path, handle: handle}, nil
}

// library is a single opened native runtime library.
type library struct {
	path   string
	handle uintptr

	mu     sync.Mutex
	closed bool
}

// Bind implements plugin.Library. fnPtr must be a pointer to a func type
// whose signature matches the symbol's native calling convention, per
// purego.RegisterFunc's contract.
func (lib *library) Bind(name string, fnPtr any) (err error) {
	lib.mu.Lock()
	defer lib.mu.Unlock()
	if lib.closed {
		return fmt.Errorf("loader: %s: library already closed", lib.path)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("loader: %s: symbol %s: %v", lib.path, name, r)
		}
	}()

	sym, symErr := purego.Dlsym(lib.handle, name)
	if symErr != nil {
		return fmt.Errorf("loader: %s: symbol %s not found: %w", lib.path, name, symErr)
	}
	purego.RegisterFunc(fnPtr, sym)
	return nil
}

// Close implements plugin.Library. Safe to call more than once.
func (lib *library) Close() error {
	lib.mu.Lock()
	defer lib.mu.Unlock()
	if lib.closed {
		return nil
	}
	lib.closed = true
	return purego.Dlclose(lib.handle)
}
