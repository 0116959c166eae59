package automation

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

type taskState int

const (
	taskRunning taskState = iota + 1
	taskDone
)

// runner executes the tasks of one collaborator. Every task runs at most once.
type runner struct {
	tasks  map[string]*Task
	state  map[string]taskState
	env    []string
	stdout io.Writer
	stderr io.Writer
	dryRun bool
	force  bool
}

func newRunner(opts Options, buildID string) *runner {
	r := &runner{
		tasks:  make(map[string]*Task),
		state:  make(map[string]taskState),
		env:    append(os.Environ(), "BUILD_ID="+buildID),
		stdout: opts.Stdout,
		stderr: opts.Stderr,
		dryRun: opts.DryRun,
		force:  opts.Force,
	}

	if r.stdout == nil {
		r.stdout = os.Stdout
	}
	if r.stderr == nil {
		r.stderr = os.Stderr
	}

	return r
}

func (r *runner) add(t *Task) error {
	key := t.Key()
	if _, ok := r.tasks[key]; ok {
		return eris.Errorf("task %s has already been declared", key)
	}

	r.tasks[key] = t
	return nil
}

// lookup prefers the task declared for pkg and falls back to the project wide task of that name
func (r *runner) lookup(name, pkg string) (*Task, bool) {
	if t, ok := r.tasks[taskKey(name, pkg)]; ok {
		return t, true
	}

	t, ok := r.tasks[name]
	return t, ok
}

func (r *runner) run(ctx context.Context, t *Task) error {
	key := t.Key()
	switch r.state[key] {
	case taskDone:
		return nil
	case taskRunning:
		return eris.Errorf("task %s depends on itself", key)
	}

	r.state[key] = taskRunning
	err := r.runOnce(ctx, t)
	if err != nil {
		delete(r.state, key)
		return err
	}

	r.state[key] = taskDone
	return nil
}

func (r *runner) runOnce(ctx context.Context, t *Task) error {
	for _, dep := range t.Deps {
		depTask, ok := r.lookup(dep, t.Package)
		if !ok {
			return eris.Errorf("task %s depends on unknown task %s", t.Key(), dep)
		}

		if err := r.run(ctx, depTask); err != nil {
			return err
		}
	}

	logger := log(ctx).With().Str("task", t.Key()).Logger()
	if !r.force {
		upToDate, err := t.upToDate()
		if err != nil {
			return err
		}

		if upToDate {
			logger.Debug().Msg("outputs are up to date, skipping")
			return nil
		}
	}

	if len(t.Cmds) > 0 {
		logger.Info().Msgf("running %s", t.Key())
	}

	for idx, cmd := range t.Cmds {
		if r.dryRun {
			logger.Info().Str("dir", t.Dir).Msg(cmd)
			continue
		}

		if err := r.exec(ctx, t, idx, cmd); err != nil {
			return eris.Wrapf(err, "task %s failed", t.Key())
		}
	}

	return nil
}

func (r *runner) exec(ctx context.Context, t *Task, idx int, cmd string) error {
	prog, err := syntax.NewParser().Parse(strings.NewReader(cmd), fmt.Sprintf("%s#%d", t.Key(), idx))
	if err != nil {
		return eris.Wrapf(err, "failed to parse %q", cmd)
	}

	env := make([]string, 0, len(r.env)+len(t.Env)+2)
	env = append(env, r.env...)
	env = append(env, "PACKAGE_NAME="+t.Package, "PACKAGE_DIR="+t.Dir)
	for name, value := range t.Env {
		env = append(env, name+"="+value)
	}

	shell, err := interp.New(
		interp.Dir(t.Dir),
		interp.Env(expand.ListEnviron(env...)),
		interp.StdIO(nil, r.stdout, r.stderr),
		interp.Params("-e"),
	)
	if err != nil {
		return eris.Wrapf(err, "failed to prepare shell in %s", t.Dir)
	}

	if err := shell.Run(ctx, prog); err != nil {
		return eris.Wrapf(err, "%q failed", cmd)
	}

	return nil
}

// upToDate reports whether the newest output is newer than the newest input. Tasks without inputs
// or outputs always run, as do tasks with a pattern that matches nothing.
func (t *Task) upToDate() (bool, error) {
	if len(t.Inputs) == 0 || len(t.Outputs) == 0 {
		return false, nil
	}

	newestInput, complete, err := newestMatch(t.Dir, t.Inputs)
	if err != nil || !complete {
		return false, err
	}

	newestOutput, complete, err := newestMatch(t.Dir, t.Outputs)
	if err != nil || !complete {
		return false, err
	}

	return newestOutput.After(newestInput), nil
}

// newestMatch returns the latest modification time of all files matched by patterns. complete is
// false if any pattern matched nothing.
func newestMatch(dir string, patterns []string) (time.Time, bool, error) {
	var newest time.Time
	for _, pattern := range patterns {
		if !filepath.IsAbs(pattern) {
			pattern = filepath.Join(dir, filepath.FromSlash(pattern))
		}

		matches, err := filepath.Glob(pattern)
		if err != nil {
			return newest, false, eris.Wrapf(err, "invalid pattern %s", pattern)
		}

		if len(matches) == 0 {
			return newest, false, nil
		}

		for _, match := range matches {
			info, err := os.Stat(match)
			if err != nil {
				return newest, false, eris.Wrapf(err, "failed to check %s", match)
			}

			if info.ModTime().After(newest) {
				newest = info.ModTime()
			}
		}
	}

	return newest, true, nil
}
