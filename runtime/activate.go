package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/gopluginhost/pluginhost/errors"
	"github.com/gopluginhost/pluginhost/plugin"
)

// Start resolves id and its imports, then brings id to ACTIVE, starting
// every not-yet-active import first (dependency order). It is a no-op if
// id is already ACTIVE or higher.
func (c *Context) Start(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	rp, ok := c.plugins[id]
	if !ok {
		return errors.NewUnknown(id)
	}
	return c.startLocked(rp, make(map[string]bool))
}

func (c *Context) startLocked(rp *plugin.RegisteredPlugin, visited map[string]bool) error {
	if rp.State >= plugin.StateActive {
		return nil
	}
	if visited[rp.ID()] {
		return nil
	}
	visited[rp.ID()] = true

	if err := c.resolveLocked(rp); err != nil {
		return err
	}

	for _, target := range rp.Imported {
		if err := c.startLocked(target, visited); err != nil {
			return err
		}
	}

	c.transitionLocked(rp, plugin.StateStarting)

	c.startInvocations.Add(1)
	callbackStart := time.Now()
	var startErr error
	switch {
	case rp.Start != nil:
		if code := c.invokeStart(rp); code != 0 {
			startErr = errors.NewRuntime(rp.ID(), fmt.Sprintf("start callback returned %d", code))
		}
	case rp.Activatable() != nil:
		startErr = c.invokeActivatableStart(rp)
	}
	if c.metrics != nil {
		c.metrics.StartSeconds.WithLabelValues(rp.ID()).Observe(time.Since(callbackStart).Seconds())
	}
	c.startInvocations.Add(-1)

	if startErr != nil {
		c.transitionLocked(rp, plugin.StateStopping)
		c.stopInvocations.Add(1)
		c.invokeStop(rp)
		c.stopInvocations.Add(-1)
		c.transitionLocked(rp, plugin.StateResolved)
		return startErr
	}

	c.started = append(c.started, rp)
	c.transitionLocked(rp, plugin.StateActive)
	return nil
}

// invokeStart calls a plug-in's native start function, recovering a panic
// into a non-zero code since a start callback is arbitrary user code the
// core cannot trust not to panic.
func (c *Context) invokeStart(rp *plugin.RegisteredPlugin) (code int32) {
	defer func() {
		if err := errors.Recover(rp.ID()); err != nil {
			c.logLocked(plugin.SeverityError, rp.ID(), "recovered panic in start: %v", err)
			code = -1
		}
	}()
	code = rp.Start()
	return
}

func (c *Context) invokeActivatableStart(rp *plugin.RegisteredPlugin) (err error) {
	defer func() {
		if r := errors.Recover(rp.ID()); r != nil {
			err = r
		}
	}()
	err = rp.Activatable().Start(context.Background())
	return
}

func (c *Context) invokeStop(rp *plugin.RegisteredPlugin) {
	defer func() {
		if err := errors.Recover(rp.ID()); err != nil {
			c.logLocked(plugin.SeverityError, rp.ID(), "recovered panic in stop: %v", err)
		}
	}()
	if rp.Stop != nil {
		rp.Stop()
	}
	if a := rp.Activatable(); a != nil {
		a.Stop(context.Background())
	}
}

// Stop brings id back to RESOLVED, stopping every dependent first (the
// inverse of Start's dependency order). It is a no-op if id is already
// below ACTIVE. Stop never fails -- a stop callback cannot veto it.
func (c *Context) Stop(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	rp, ok := c.plugins[id]
	if !ok {
		return errors.NewUnknown(id)
	}
	c.stopLocked(rp, make(map[string]bool))
	return nil
}

func (c *Context) stopLocked(rp *plugin.RegisteredPlugin, visited map[string]bool) {
	if rp.State < plugin.StateActive {
		return
	}
	if visited[rp.ID()] {
		return
	}
	visited[rp.ID()] = true

	for _, dependent := range rp.Importing {
		c.stopLocked(dependent, visited)
	}

	c.transitionLocked(rp, plugin.StateStopping)
	c.stopInvocations.Add(1)
	callbackStart := time.Now()
	c.invokeStop(rp)
	if c.metrics != nil {
		c.metrics.StopSeconds.WithLabelValues(rp.ID()).Observe(time.Since(callbackStart).Seconds())
	}
	c.stopInvocations.Add(-1)
	c.removeFromStartedLocked(rp)
	c.transitionLocked(rp, plugin.StateResolved)
}

func (c *Context) removeFromStartedLocked(rp *plugin.RegisteredPlugin) {
	for i, p := range c.started {
		if p == rp {
			c.started = append(c.started[:i], c.started[i+1:]...)
			return
		}
	}
}

// StopAll repeatedly stops the last-activated plug-in until none remain
// ACTIVE, draining dependents before the dependencies they rely on.
func (c *Context) StopAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopAllLocked()
}

func (c *Context) stopAllLocked() {
	for len(c.started) > 0 {
		last := c.started[len(c.started)-1]
		c.stopLocked(last, make(map[string]bool))
	}
}
