package automation

import (
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.starlark.net/starlark"

	"github.com/srp-packages/build-tools/pkg/registry"
)

// packages_list() returns the registered packages as (name, path) tuples
func packagesList(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}

	pkgs := registry.Packages()
	items := make([]starlark.Value, len(pkgs))
	for idx, p := range pkgs {
		items[idx] = starlark.Tuple{starlark.String(p.Name), starlark.String(p.Path)}
	}

	return starlark.NewList(items), nil
}

// test_packages_list() returns the names of all packages with tests
func testPackagesList(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}

	names := registry.TestPackages()
	items := make([]starlark.Value, len(names))
	for idx, name := range names {
		items[idx] = starlark.String(name)
	}

	return starlark.NewList(items), nil
}

// package_dir(name) returns the absolute directory of a registered package
func packageDir(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "name", &name); err != nil {
		return nil, err
	}

	dir, err := stateOf(thread).packageDir(name)
	if err != nil {
		return nil, err
	}

	return starlark.String(dir), nil
}

func (s *scriptState) packageDir(name string) (string, error) {
	p, ok := registry.Lookup(name)
	if !ok {
		return "", eris.Errorf("unknown package %s", name)
	}

	return filepath.Join(s.projectRoot, filepath.FromSlash(p.Path)), nil
}
