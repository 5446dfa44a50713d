package plugin

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// DescriptorHandle is a borrowed, reference-counted view of a Descriptor
// returned to the host by GetInfo/ListInfo/Install (C9). The underlying
// Descriptor remains valid until Release is called, even after the
// plug-in it describes has been uninstalled.
//
// A handle carries a uuid token purely for host-side diagnostics (so a
// double-release or use-after-release bug can be attributed to a
// specific acquisition instead of an ambiguous pointer).
type DescriptorHandle struct {
	token      uuid.UUID
	descriptor *Descriptor
	released   atomic.Bool
}

// NewDescriptorHandle acquires a new share of d and returns a handle to
// it. The caller owns exactly one use-count until Release is called.
func NewDescriptorHandle(d *Descriptor) *DescriptorHandle {
	d.Acquire()
	return &DescriptorHandle{token: uuid.New(), descriptor: d}
}

// Token returns the handle's opaque diagnostic identifier.
func (h *DescriptorHandle) Token() uuid.UUID {
	return h.token
}

// Descriptor returns the borrowed descriptor. It remains valid (and safe
// to read) until Release is called, regardless of the plug-in's state.
func (h *DescriptorHandle) Descriptor() *Descriptor {
	return h.descriptor
}

// Release drops the handle's share of the descriptor's use-count.
// Double-release is a programming error: per spec it is logged and
// becomes a no-op rather than a panic or a negative count, so a log
// sink is threaded through by the caller (Context) rather than kept
// here -- Release itself just reports whether this call actually did
// the releasing, so the caller can log exactly once.
func (h *DescriptorHandle) Release() (did bool) {
	if h.released.Swap(true) {
		return false
	}
	h.descriptor.Release()
	return true
}

// NewDescriptorHandles acquires shares for every descriptor in ds and
// returns their handles. The acquisition is atomic: either every
// descriptor listed is counted, or (on no input) none are -- there is no
// partial-failure path since Acquire cannot fail.
func NewDescriptorHandles(ds []*Descriptor) []*DescriptorHandle {
	handles := make([]*DescriptorHandle, len(ds))
	for i, d := range ds {
		handles[i] = NewDescriptorHandle(d)
	}
	return handles
}
