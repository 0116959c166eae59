package automation

import (
	"bytes"
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0770))
	require.NoError(t, ioutil.WriteFile(path, []byte(content), 0660))
	return path
}

func setupScript(t *testing.T, script string, opts Options) (starlark.Value, *bytes.Buffer, error) {
	t.Helper()

	dir := t.TempDir()
	writeFile(t, dir, "unity_package_build.star", script)

	stdout := new(bytes.Buffer)
	opts.SearchPath = append([]string{dir}, opts.SearchPath...)
	opts.Stdout = stdout
	opts.Stderr = ioutil.Discard

	collab, err := Locate("unity_package_build", opts)
	require.NoError(t, err)
	require.NotNil(t, collab)

	result, err := collab.Setup(context.Background())
	return result, stdout, err
}

func TestLocateMissing(t *testing.T) {
	collab, err := Locate("unity_package_build", Options{
		SearchPath: []string{filepath.Join(t.TempDir(), "does-not-exist"), t.TempDir()},
	})
	require.NoError(t, err)
	assert.Nil(t, collab)
}

func TestLocateSearchOrder(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	writeFile(t, second, "tools.star", "def setup():\n    return 2\n")

	collab, err := Locate("tools", Options{SearchPath: []string{first, second}})
	require.NoError(t, err)
	require.NotNil(t, collab)
	assert.Equal(t, filepath.Join(second, "tools.star"), collab.File)

	writeFile(t, first, "tools.star", "def setup():\n    return 1\n")
	collab, err = Locate("tools", Options{SearchPath: []string{first, second}})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(first, "tools.star"), collab.File)
}

func TestLocateIgnoresDirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "tools.star"), 0770))

	collab, err := Locate("tools", Options{SearchPath: []string{dir}})
	require.NoError(t, err)
	assert.Nil(t, collab)
}

func TestSetupReturnsResult(t *testing.T) {
	result, _, err := setupScript(t, `
def setup():
    return [p[0] for p in packages_list()]
`, Options{})
	require.NoError(t, err)

	list, ok := result.(*starlark.List)
	require.True(t, ok)
	require.Equal(t, 4, list.Len())
	assert.Equal(t, starlark.String("com.unity.render-pipelines.core"), list.Index(0))
	assert.Equal(t, starlark.String("com.unity.shadergraph"), list.Index(3))
}

func TestSetupTestPackages(t *testing.T) {
	result, _, err := setupScript(t, `
def setup():
    names = [p[0] for p in packages_list()]
    return names == test_packages_list()
`, Options{})
	require.NoError(t, err)
	assert.Equal(t, starlark.True, result)
}

func TestSetupErrorPropagates(t *testing.T) {
	_, _, err := setupScript(t, `
def setup():
    fail("build exploded")
`, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "build exploded")
}

func TestSetupMissingFunction(t *testing.T) {
	_, _, err := setupScript(t, "value = 1\n", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not declare a setup function")

	_, _, err = setupScript(t, "setup = 1\n", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a function")
}

func TestSetupSyntaxError(t *testing.T) {
	_, _, err := setupScript(t, "def setup(:\n", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to execute")
}

func TestLoadFromSearchPath(t *testing.T) {
	libDir := t.TempDir()
	writeFile(t, libDir, "helpers.star", `
def greeting():
    return "hello"
`)

	result, _, err := setupScript(t, `
load("helpers", "greeting")

def setup():
    return greeting()
`, Options{SearchPath: []string{libDir}})
	require.NoError(t, err)
	assert.Equal(t, starlark.String("hello"), result)
}

func TestLoadCycle(t *testing.T) {
	libDir := t.TempDir()
	writeFile(t, libDir, "a.star", "load(\"b\", \"b\")\na = 1\n")
	writeFile(t, libDir, "b.star", "load(\"a\", \"a\")\nb = 1\n")

	_, _, err := setupScript(t, `
load("a", "a")

def setup():
    return a
`, Options{SearchPath: []string{libDir}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestLoadProjectRelative(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "tools/common.star", "GREETING = \"hi\"\n")
	writeFile(t, root, "unity_package_build.star", `
load("//tools/common", "GREETING")

def setup():
    return GREETING
`)

	collab, err := Locate("unity_package_build", Options{SearchPath: []string{root}, ProjectRoot: root})
	require.NoError(t, err)
	require.NotNil(t, collab)

	result, err := collab.Setup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, starlark.String("hi"), result)
}

func TestLoadMissingModule(t *testing.T) {
	_, _, err := setupScript(t, `
load("nowhere", "x")

def setup():
    return x
`, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "module nowhere not found")
}

func TestPackageDir(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "unity_package_build.star", `
def setup():
    return package_dir("com.unity.shadergraph")
`)

	collab, err := Locate("unity_package_build", Options{SearchPath: []string{root}, ProjectRoot: root})
	require.NoError(t, err)
	require.NotNil(t, collab)

	result, err := collab.Setup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, starlark.String(filepath.Join(root, "com.unity.shadergraph")), result)

	_, _, err = setupScript(t, `
def setup():
    return package_dir("com.unity.postprocessing")
`, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown package com.unity.postprocessing")
}

func TestBuildIDIsExposed(t *testing.T) {
	result, _, err := setupScript(t, `
def setup():
    return BUILD_ID
`, Options{})
	require.NoError(t, err)

	id, ok := starlark.AsString(result)
	require.True(t, ok)
	assert.NotEmpty(t, id)
}
