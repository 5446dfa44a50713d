package runtime

import (
	"path/filepath"
	"time"

	"github.com/gopluginhost/pluginhost/errors"
	"github.com/gopluginhost/pluginhost/plugin"
)

// resolveTraversal holds the per-call state for one resolve(P) invocation:
// the set of plug-ins visited on this traversal and the order they were
// first visited in. It lives only for the duration of one Resolve call --
// never stored on a RegisteredPlugin -- so concurrent traversals of
// disjoint contexts (or, after a successful commit, later traversals of
// the same context) never alias a leftover flag.
type resolveTraversal struct {
	processed map[string]bool
	order     []string
}

// Resolve brings id and all its transitive non-optional imports to state
// RESOLVED. It is idempotent once id is already RESOLVED or higher.
func (c *Context) Resolve(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	rp, ok := c.plugins[id]
	if !ok {
		return errors.NewUnknown(id)
	}
	return c.resolveLocked(rp)
}

func (c *Context) resolveLocked(rp *plugin.RegisteredPlugin) error {
	if rp.State >= plugin.StateResolved {
		return nil
	}

	if c.metrics != nil {
		start := time.Now()
		defer func() { c.metrics.ResolveSeconds.WithLabelValues(rp.ID()).Observe(time.Since(start).Seconds()) }()
	}

	t := &resolveTraversal{processed: make(map[string]bool)}
	_, err := c.resolvePhase1Locked(rp, t)
	if err != nil {
		c.rollbackResolveLocked(t)
		return err
	}
	c.commitResolveLocked(t)
	return nil
}

// resolvePhase1Locked is the depth-first preliminary phase of §4.2. It
// returns (preliminary, err): preliminary is true when this call (or one
// of its descendants) closed a cycle back to an ancestor still being
// processed, meaning the commit must happen in phase 2 rather than here.
func (c *Context) resolvePhase1Locked(rp *plugin.RegisteredPlugin, t *resolveTraversal) (bool, error) {
	if rp.State >= plugin.StateResolved {
		return false, nil
	}
	if t.processed[rp.ID()] {
		return true, nil
	}
	t.processed[rp.ID()] = true
	t.order = append(t.order, rp.ID())

	preliminary := false
	for _, imp := range rp.Descriptor.Imports {
		target, ok := c.plugins[imp.TargetID]
		if !ok {
			if imp.Optional {
				continue
			}
			return false, errors.NewDependency(rp.ID(), imp.TargetID, "not installed")
		}

		if imp.Version != nil && !plugin.VersionMatches(target.Descriptor.Version, imp.Version, imp.Rule) {
			if imp.Optional {
				continue
			}
			return false, errors.NewDependency(rp.ID(), imp.TargetID, "version mismatch")
		}

		plugin.Link(rp, target)
		p, err := c.resolvePhase1Locked(target, t)
		if err != nil {
			return false, err
		}
		if p {
			preliminary = true
		}
	}

	if rp.Descriptor.Lib != nil {
		lib, start, stop, err := c.bindRuntimeLocked(rp.Descriptor)
		if err != nil {
			return false, err
		}
		rp.Library = lib
		rp.Start = start
		rp.Stop = stop
	}

	if !preliminary {
		c.transitionLocked(rp, plugin.StateResolved)
	}
	return preliminary, nil
}

// commitResolveLocked is phase 2: every plug-in visited by the traversal
// that is still INSTALLED (i.e. deferred because it was part of a cycle)
// is committed to RESOLVED now, in first-visited order.
func (c *Context) commitResolveLocked(t *resolveTraversal) {
	for _, id := range t.order {
		rp, ok := c.plugins[id]
		if !ok {
			continue
		}
		if rp.State == plugin.StateInstalled {
			c.transitionLocked(rp, plugin.StateResolved)
		}
	}
}

// rollbackResolveLocked undoes every edge and runtime-library binding
// this traversal added to plug-ins that are still INSTALLED, leaving them
// in state INSTALLED. A plug-in that reached RESOLVED, before this call
// or earlier in it, keeps its state, edges and library.
func (c *Context) rollbackResolveLocked(t *resolveTraversal) {
	for _, id := range t.order {
		rp, ok := c.plugins[id]
		if !ok || rp.State >= plugin.StateResolved {
			continue
		}

		targets := make([]*plugin.RegisteredPlugin, 0, len(rp.Imported))
		for _, target := range rp.Imported {
			targets = append(targets, target)
		}
		for _, target := range targets {
			plugin.Unlink(rp, target)
		}

		if rp.Library != nil {
			rp.Library.Close()
			rp.Library = nil
			rp.Start = nil
			rp.Stop = nil
		}
	}
}

func (c *Context) bindRuntimeLocked(d *plugin.Descriptor) (plugin.Library, plugin.StartFunc, plugin.StopFunc, error) {
	if c.loader == nil {
		return nil, nil, nil, errors.NewRuntime(d.Identifier, "no symbol loader configured")
	}

	libPath := d.Lib.Path
	if !filepath.IsAbs(libPath) {
		libPath = filepath.Join(d.InstallPath, libPath)
	}

	lib, err := c.loader.Open(libPath)
	if err != nil {
		return nil, nil, nil, errors.NewRuntime(d.Identifier, "runtime library open failed: "+err.Error())
	}

	var start plugin.StartFunc
	var stop plugin.StopFunc

	if d.Lib.StartSymbol != "" {
		if err := lib.Bind(d.Lib.StartSymbol, &start); err != nil {
			lib.Close()
			return nil, nil, nil, errors.NewRuntime(d.Identifier, "start symbol "+d.Lib.StartSymbol+" not found")
		}
	}
	if d.Lib.StopSymbol != "" {
		if err := lib.Bind(d.Lib.StopSymbol, &stop); err != nil {
			lib.Close()
			return nil, nil, nil, errors.NewRuntime(d.Identifier, "stop symbol "+d.Lib.StopSymbol+" not found")
		}
	}

	return lib, start, stop, nil
}
