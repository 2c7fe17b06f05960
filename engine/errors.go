// Copyright (c) 2017 Uber Technologies, Inc.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package engine

import "fmt"

// ConfigurationError covers missing type info and malformed properties
// (spec.md §7). Handlers that hit it fail loudly and emit no confirmation.
type ConfigurationError struct {
	Op     string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error in %s: %s", e.Op, e.Reason)
}

// TransientError covers peer HTTP failures, storage flush exceptions, and
// pause/resume errors (spec.md §7). Always recovered locally: logged, with
// only the affected PV or peer abandoned for the current tick.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient error in %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// ProtocolContextError covers a command thread whose protocol context never
// became ready within the start-up barrier (spec.md §7). The affected slot
// is left unusable for direct lookups but DoesContextMatchThread defensively
// returns true rather than drop data.
type ProtocolContextError struct {
	CommandThreadID int
}

func (e *ProtocolContextError) Error() string {
	return fmt.Sprintf("command thread %d: protocol context not ready after start-up barrier", e.CommandThreadID)
}

// ProgrammerError covers misuse of the engine's single-assignment
// invariants (e.g. installing a second main scheduler, spec.md §3 invariant
// 6). It is never returned to a caller mid-operation; it is logged in place
// and the existing state is left untouched.
type ProgrammerError struct {
	Reason string
}

func (e *ProgrammerError) Error() string {
	return fmt.Sprintf("programmer error: %s", e.Reason)
}
