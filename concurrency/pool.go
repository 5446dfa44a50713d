// Package concurrency carries the teacher's semaphore primitive forward
// to bound how many plug-in directories a scan walks at once.
package concurrency

// Semaphore is a counting semaphore backed by a buffered channel.
type Semaphore struct {
	tickets chan struct{}
}

// NewSemaphore creates a semaphore with the given capacity.
func NewSemaphore(capacity int) *Semaphore {
	return &Semaphore{tickets: make(chan struct{}, capacity)}
}

// Acquire blocks until a ticket is available.
func (s *Semaphore) Acquire() {
	s.tickets <- struct{}{}
}

// Release returns a ticket to the pool.
func (s *Semaphore) Release() {
	<-s.tickets
}

// WithSemaphore runs fn while holding a ticket.
func (s *Semaphore) WithSemaphore(fn func()) {
	s.Acquire()
	defer s.Release()
	fn()
}
