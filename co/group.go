// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package co runs the background routines of the executor.
package co

import "sync"

// Group runs routines sharing one stop signal. The zero value is not usable, see NewGroup.
type Group struct {
	wg       sync.WaitGroup
	stop     chan struct{}
	stopOnce sync.Once
}

// NewGroup creates an empty group.
func NewGroup() *Group {
	return &Group{stop: make(chan struct{})}
}

// Go runs f in a new goroutine. f should return soon after stop is closed.
func (g *Group) Go(f func(stop <-chan struct{})) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		f(g.stop)
	}()
}

// Stop signals every routine to return. Only the first call has effect.
func (g *Group) Stop() {
	g.stopOnce.Do(func() { close(g.stop) })
}

// Wait blocks until every routine returned.
func (g *Group) Wait() {
	g.wg.Wait()
}

// StopAndWait is Stop followed by Wait.
func (g *Group) StopAndWait() {
	g.Stop()
	g.Wait()
}

// Done returns a channel closed once every routine returned.
func (g *Group) Done() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	return done
}
