package automation

import (
	"fmt"

	"github.com/rotisserie/eris"
	"go.starlark.net/starlark"

	"github.com/srp-packages/build-tools/pkg/registry"
)

// Task is a unit of work declared with task(). Package tasks run inside the package directory
// taken from the registry, all other tasks run in the project root.
type Task struct {
	Name    string
	Package string
	Dir     string
	Deps    []string
	Inputs  []string
	Outputs []string
	Env     map[string]string
	Cmds    []string
}

var _ starlark.HasAttrs = (*Task)(nil)

func taskKey(name, pkg string) string {
	if pkg == "" {
		return name
	}

	return name + "@" + pkg
}

// Key identifies the task; package tasks are named "<task>@<package>"
func (t *Task) Key() string {
	return taskKey(t.Name, t.Package)
}

func (t *Task) String() string {
	return fmt.Sprintf("<task %s>", t.Key())
}

func (t *Task) Type() string {
	return "task"
}

// Freeze is a no-op; tasks can't be modified after declaration.
func (t *Task) Freeze() {}

func (t *Task) Truth() starlark.Bool {
	return starlark.True
}

func (t *Task) Hash() (uint32, error) {
	return starlark.String(t.Key()).Hash()
}

func (t *Task) Attr(name string) (starlark.Value, error) {
	switch name {
	case "name":
		return starlark.String(t.Name), nil
	case "package":
		if t.Package == "" {
			return starlark.None, nil
		}
		return starlark.String(t.Package), nil
	case "dir":
		return starlark.String(t.Dir), nil
	}

	return nil, nil
}

func (t *Task) AttrNames() []string {
	return []string{"dir", "name", "package"}
}

func unpackStrings(fnName, param string, list *starlark.List) ([]string, error) {
	if list == nil {
		return nil, nil
	}

	result := make([]string, list.Len())
	for idx := range result {
		value, ok := starlark.AsString(list.Index(idx))
		if !ok {
			return nil, eris.Errorf("%s: %s[%d] must be a string, not %s", fnName, param, idx, list.Index(idx).Type())
		}
		result[idx] = value
	}

	return result, nil
}

// task(name, package?, cmds?, deps?, inputs?, outputs?, env?) declares a task
func declareTask(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		name, pkgName               string
		cmds, deps, inputs, outputs *starlark.List
		env                         *starlark.Dict
	)
	err := starlark.UnpackArgs(fn.Name(), args, kwargs, "name", &name, "package?", &pkgName, "cmds?", &cmds,
		"deps?", &deps, "inputs?", &inputs, "outputs?", &outputs, "env?", &env)
	if err != nil {
		return nil, err
	}

	if name == "" {
		return nil, eris.Errorf("%s: name must not be empty", fn.Name())
	}

	s := stateOf(thread)
	t := &Task{
		Name:    name,
		Package: pkgName,
		Dir:     s.projectRoot,
		Env:     make(map[string]string),
	}

	if pkgName != "" {
		t.Dir, err = s.packageDir(pkgName)
		if err != nil {
			return nil, eris.Wrapf(err, "%s: can't declare %s", fn.Name(), t.Key())
		}
	}

	if t.Cmds, err = unpackStrings(fn.Name(), "cmds", cmds); err != nil {
		return nil, err
	}
	if t.Deps, err = unpackStrings(fn.Name(), "deps", deps); err != nil {
		return nil, err
	}
	if t.Inputs, err = unpackStrings(fn.Name(), "inputs", inputs); err != nil {
		return nil, err
	}
	if t.Outputs, err = unpackStrings(fn.Name(), "outputs", outputs); err != nil {
		return nil, err
	}

	if env != nil {
		for _, item := range env.Items() {
			key, keyOk := starlark.AsString(item[0])
			value, valueOk := starlark.AsString(item[1])
			if !keyOk || !valueOk {
				return nil, eris.Errorf("%s: env must map strings to strings, found %s: %s", fn.Name(), item[0], item[1])
			}
			t.Env[key] = value
		}
	}

	if err := s.runner.add(t); err != nil {
		return nil, err
	}

	return t, nil
}

// run_task(task, package?) runs a task and its dependencies. The task can be passed by value or by
// name; names are resolved relative to the given package.
func runTask(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var target starlark.Value
	var pkgName string
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "task", &target, "package?", &pkgName); err != nil {
		return nil, err
	}

	s := stateOf(thread)
	var t *Task
	switch value := target.(type) {
	case *Task:
		t = value
	case starlark.String:
		var ok bool
		t, ok = s.runner.lookup(string(value), pkgName)
		if !ok {
			return nil, eris.Errorf("%s: unknown task %s", fn.Name(), taskKey(string(value), pkgName))
		}
	default:
		return nil, eris.Errorf("%s: expected a task or a task name but got %s", fn.Name(), target.Type())
	}

	if err := s.runner.run(s.ctx, t); err != nil {
		return nil, err
	}

	return starlark.None, nil
}

// run_packages(name, tests_only?) runs the task with the given name for every registered package
// that declared it, in registry order. It returns the names of those packages.
func runPackages(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	testsOnly := false
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "name", &name, "tests_only?", &testsOnly); err != nil {
		return nil, err
	}

	var names []string
	if testsOnly {
		names = registry.TestPackages()
	} else {
		for _, p := range registry.Packages() {
			names = append(names, p.Name)
		}
	}

	s := stateOf(thread)
	ran := make([]starlark.Value, 0, len(names))
	for _, pkgName := range names {
		t, ok := s.runner.tasks[taskKey(name, pkgName)]
		if !ok {
			log(s.ctx).Debug().Str("package", pkgName).Msgf("no %s task", name)
			continue
		}

		if err := s.runner.run(s.ctx, t); err != nil {
			return nil, err
		}
		ran = append(ran, starlark.String(pkgName))
	}

	return starlark.NewList(ran), nil
}
