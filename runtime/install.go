package runtime

import (
	"github.com/gopluginhost/pluginhost/errors"
	"github.com/gopluginhost/pluginhost/plugin"
)

// LoadDescriptor turns an on-disk plug-in directory into a Descriptor via
// the configured parser, without installing it.
func (c *Context) LoadDescriptor(installPath string) (*plugin.Descriptor, error) {
	c.mu.Lock()
	parser := c.parser
	c.mu.Unlock()

	if parser == nil {
		return nil, errors.NewIO("no descriptor parser configured")
	}
	d, err := parser.Parse(installPath)
	if err != nil {
		return nil, errors.NewMalformed(installPath, err.Error())
	}
	return d, nil
}

// Install registers a descriptor in state INSTALLED. A duplicate
// identifier is a Conflict and leaves the existing registration
// untouched. Declared extension points are inserted into the context's
// global map; a conflicting global id aborts the whole install and
// rolls back any points already inserted for this call.
func (c *Context) Install(d *plugin.Descriptor) (*plugin.RegisteredPlugin, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.installLocked(d)
}

// InstallInProcess installs a descriptor and binds an in-process
// Activatable as its runtime, bypassing the native SymbolLoader. Used by
// tests and in-process example plug-ins.
func (c *Context) InstallInProcess(d *plugin.Descriptor, a plugin.Activatable) (*plugin.RegisteredPlugin, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rp, err := c.installLocked(d)
	if err != nil {
		return nil, err
	}
	rp.SetActivatable(a)
	return rp, nil
}

func (c *Context) installLocked(d *plugin.Descriptor) (*plugin.RegisteredPlugin, error) {
	if _, exists := c.plugins[d.Identifier]; exists {
		return nil, errors.NewConflict(d.Identifier)
	}

	inserted := make([]string, 0, len(d.ExtensionPoints))
	for _, ep := range d.ExtensionPoints {
		gid := ep.GlobalID(d.Identifier)
		if _, exists := c.extensionPoints[gid]; exists {
			for _, g := range inserted {
				delete(c.extensionPoints, g)
			}
			return nil, errors.NewConflict(gid)
		}
		c.extensionPoints[gid] = &registeredExtensionPoint{owner: d.Identifier, decl: ep}
		inserted = append(inserted, gid)
	}

	for _, ext := range d.Extensions {
		c.extensions[ext.ExtensionPoint] = append(c.extensions[ext.ExtensionPoint], &registeredExtension{owner: d.Identifier, decl: ext})
	}

	d.Acquire()
	rp := plugin.NewRegisteredPlugin(d)
	rp.State = plugin.StateInstalled
	c.plugins[d.Identifier] = rp
	c.logLocked(plugin.SeverityInfo, d.Identifier, "installed")
	return rp, nil
}

// deregisterExtensionsLocked removes every extension point still owned by
// pluginID, and strips pluginID's extensions out of every contribution
// list, dropping lists left empty. Called by uninstall (§4.5).
func (c *Context) deregisterExtensionsLocked(pluginID string) {
	for gid, ep := range c.extensionPoints {
		if ep.owner == pluginID {
			delete(c.extensionPoints, gid)
		}
	}
	for gid, list := range c.extensions {
		kept := make([]*registeredExtension, 0, len(list))
		for _, e := range list {
			if e.owner != pluginID {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			delete(c.extensions, gid)
		} else {
			c.extensions[gid] = kept
		}
	}
}
