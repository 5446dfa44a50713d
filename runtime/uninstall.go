package runtime

import (
	"github.com/gopluginhost/pluginhost/errors"
	"github.com/gopluginhost/pluginhost/plugin"
)

// Uninstall stops id (and its dependents), unresolves it (and its
// dependents) back to INSTALLED, deregisters its extension points and
// extensions, and removes it from the id map. The descriptor's use-count
// is released; if the host still holds a handle, the descriptor itself
// survives until that handle is released too.
func (c *Context) Uninstall(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	rp, ok := c.plugins[id]
	if !ok {
		return errors.NewUnknown(id)
	}
	c.uninstallLocked(rp)
	return nil
}

func (c *Context) uninstallLocked(rp *plugin.RegisteredPlugin) {
	c.stopLocked(rp, make(map[string]bool))
	c.unresolveLocked(rp, make(map[string]bool))

	c.transitionLocked(rp, plugin.StateUninstalled)
	c.deregisterExtensionsLocked(rp.ID())
	delete(c.plugins, rp.ID())
	rp.Descriptor.Release()
}

// unresolveLocked walks importing (dependents) depth-first, moving each
// dependent down to INSTALLED before this plug-in, clearing imported
// edges and closing any open runtime library.
func (c *Context) unresolveLocked(rp *plugin.RegisteredPlugin, visited map[string]bool) {
	if rp.State < plugin.StateResolved {
		return
	}
	if visited[rp.ID()] {
		return
	}
	visited[rp.ID()] = true

	for _, dependent := range rp.Importing {
		c.unresolveLocked(dependent, visited)
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
	}
	rp.Start = nil
	rp.Stop = nil

	c.transitionLocked(rp, plugin.StateInstalled)
}

// UninstallAll stops every ACTIVE plug-in, then uninstalls every
// registered plug-in until the id map is empty.
func (c *Context) UninstallAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.uninstallAllLocked()
}

func (c *Context) uninstallAllLocked() {
	c.stopAllLocked()
	for len(c.plugins) > 0 {
		var next *plugin.RegisteredPlugin
		for _, rp := range c.plugins {
			next = rp
			break
		}
		c.uninstallLocked(next)
	}
}
