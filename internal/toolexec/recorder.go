// SPDX-License-Identifier: MPL-2.0

package toolexec

import (
	"context"
	"sync"
)

// Recorder is a Runner that records commands instead of running them.
// Handler, when set, decides each command's outcome; it can also create
// the files a real tool would have produced.
type Recorder struct {
	Handler func(cmd Command) ([]byte, error)

	mu       sync.Mutex
	commands []Command
}

// Run records cmd and returns the handler's error.
func (r *Recorder) Run(ctx context.Context, cmd Command) error {
	_, err := r.Output(ctx, cmd)
	return err
}

// Output records cmd and returns the handler's result.
func (r *Recorder) Output(ctx context.Context, cmd Command) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.commands = append(r.commands, cmd)
	r.mu.Unlock()
	if r.Handler == nil {
		return nil, nil
	}
	return r.Handler(cmd)
}

// Commands returns the recorded commands in call order.
func (r *Recorder) Commands() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Command(nil), r.commands...)
}
