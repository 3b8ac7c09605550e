/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package debounce

import (
	"sync/atomic"
	"testing"
	"time"
)

// fakeClock records scheduled callbacks and fires them on demand.
type fakeClock struct {
	fns []func()
}

type fakeTimer struct{ stopped *bool }

func (t fakeTimer) Stop() bool { *t.stopped = true; return true }

func (c *fakeClock) after(_ time.Duration, f func()) Timer {
	stopped := false
	c.fns = append(c.fns, func() {
		if !stopped {
			f()
		}
	})
	return fakeTimer{&stopped}
}

func (c *fakeClock) fireAll() {
	fns := c.fns
	c.fns = nil
	for _, f := range fns {
		f()
	}
}

func TestSynchronousWhenDelayZero(t *testing.T) {
	var n int32
	d := New(0, func() { atomic.AddInt32(&n, 1) })
	d.Trigger()
	d.Trigger()
	if atomic.LoadInt32(&n) != 2 {
		t.Fatalf("expected 2 synchronous calls, got %d", n)
	}
}

func TestBurstCollapses(t *testing.T) {
	clk := &fakeClock{}
	var n int
	d := New(time.Second, func() { n++ }).WithAfterFunc(clk.after)
	for i := 0; i < 5; i++ {
		d.Trigger()
	}
	if !d.Pending() {
		t.Fatalf("expected pending call")
	}
	clk.fireAll()
	if n != 1 {
		t.Fatalf("expected one call after burst, got %d", n)
	}
	if d.Pending() {
		t.Fatalf("nothing should be pending after firing")
	}
}

func TestFlushAndCancel(t *testing.T) {
	clk := &fakeClock{}
	var n int
	d := New(time.Second, func() { n++ }).WithAfterFunc(clk.after)
	d.Trigger()
	if !d.Flush() || n != 1 {
		t.Fatalf("flush should run the pending call, n=%d", n)
	}
	clk.fireAll()
	if n != 1 {
		t.Fatalf("timer must not fire after flush, n=%d", n)
	}
	if d.Flush() {
		t.Fatalf("flush with nothing pending must report false")
	}
	d.Trigger()
	d.Cancel()
	clk.fireAll()
	if n != 1 {
		t.Fatalf("cancelled call ran, n=%d", n)
	}
}

func TestStopIgnoresLaterTriggers(t *testing.T) {
	var n int32
	d := New(0, func() { atomic.AddInt32(&n, 1) })
	d.Stop()
	d.Trigger()
	if atomic.LoadInt32(&n) != 0 {
		t.Fatalf("stopped debouncer must not call fn")
	}
}

func TestRealTimerFires(t *testing.T) {
	done := make(chan struct{}, 1)
	d := New(10*time.Millisecond, func() { done <- struct{}{} })
	d.Trigger()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("timer did not fire")
	}
}
