package cmd

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srp-packages/build-tools/pkg/dispatch"
	"github.com/srp-packages/build-tools/pkg/registry"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRootWithoutAutomationTools(t *testing.T) {
	dir := t.TempDir()
	stdout, _, err := execute(t, "--automation-dir", filepath.Join(dir, "automation-tools"), "--root", dir)
	require.NoError(t, err)
	assert.Equal(t, dispatch.NotFoundMessage+"\n", stdout)
}

func TestRootRunsAutomationTools(t *testing.T) {
	dir := t.TempDir()
	script := `
def setup():
    return len(packages_list())
`
	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, "unity_package_build.star"), []byte(script), 0660))

	stdout, _, err := execute(t, "--automation-dir", dir, "--root", dir)
	require.NoError(t, err)
	assert.NotContains(t, stdout, dispatch.NotFoundMessage)
}

func TestRootReportsSetupFailure(t *testing.T) {
	dir := t.TempDir()
	script := `
def setup():
    fail("no editor license")
`
	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, "unity_package_build.star"), []byte(script), 0660))

	_, stderr, err := execute(t, "--automation-dir", dir, "--root", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no editor license")
	// Execute reports the error once; cobra itself stays quiet
	assert.NotContains(t, stderr, "no editor license")
}

func TestRootIgnoresUnrelatedEnvironment(t *testing.T) {
	require.NoError(t, os.Setenv("SRP_BUILD_UNRELATED", "1"))
	t.Cleanup(func() {
		os.Unsetenv("SRP_BUILD_UNRELATED")
	})

	dir := t.TempDir()
	stdout, _, err := execute(t, "--automation-dir", filepath.Join(dir, "automation-tools"), "--root", dir)
	require.NoError(t, err)
	assert.Equal(t, dispatch.NotFoundMessage+"\n", stdout)
}

func TestPackagesJSON(t *testing.T) {
	stdout, _, err := execute(t, "packages", "--format", "json")
	require.NoError(t, err)

	var pkgs []registry.Package
	require.NoError(t, json.Unmarshal([]byte(stdout), &pkgs))
	assert.Equal(t, registry.Packages(), pkgs)
}

func TestPackagesText(t *testing.T) {
	stdout, _, err := execute(t, "packages", "--format", "text", "--check")
	require.NoError(t, err)

	for _, p := range registry.Packages() {
		assert.Contains(t, stdout, p.Name)
	}
}

func TestTestPackagesYAML(t *testing.T) {
	stdout, _, err := execute(t, "test-packages", "--format", "yaml")
	require.NoError(t, err)
	assert.Equal(t, "- com.unity.render-pipelines.core\n"+
		"- com.unity.render-pipelines.lightweight\n"+
		"- com.unity.render-pipelines.high-definition\n"+
		"- com.unity.shadergraph\n", stdout)
}

func TestPackagesUnknownFormat(t *testing.T) {
	_, _, err := execute(t, "packages", "--format", "xml")
	assert.Error(t, err)
}

func TestVerifyPackages(t *testing.T) {
	root := t.TempDir()
	pkgs := registry.Packages()

	err := verifyPackages(ioutil.Discard, root, pkgs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "4 package directories are missing")

	for _, p := range pkgs {
		require.NoError(t, os.Mkdir(filepath.Join(root, p.Path), 0770))
	}
	assert.NoError(t, verifyPackages(ioutil.Discard, root, pkgs))
}

func TestPackagesVerifyKeepsStdoutClean(t *testing.T) {
	root := t.TempDir()
	for _, p := range registry.Packages() {
		require.NoError(t, os.Mkdir(filepath.Join(root, p.Path), 0770))
	}

	stdout, stderr, err := execute(t, "packages", "--format", "json", "--verify", "--root", root)
	require.NoError(t, err)

	var pkgs []registry.Package
	require.NoError(t, json.Unmarshal([]byte(stdout), &pkgs))
	assert.Len(t, pkgs, 4)
	assert.Contains(t, stderr, "verifying package directories")
}

func TestConsoleWriter(t *testing.T) {
	out := new(bytes.Buffer)
	logger := zerolog.New(&consoleWriter{out: out})
	logger.Warn().Str("task", "bake@com.unity.shadergraph").Str("dir", "/tmp").Msg("outputs are stale")

	line := out.String()
	assert.Contains(t, line, "bake@com.unity.shadergraph: outputs are stale")
	assert.NotContains(t, line, "/tmp")

	out.Reset()
	logger = zerolog.New(&consoleWriter{out: out, debug: true})
	logger.Info().Str("dir", "/tmp").Msg("running")
	assert.Contains(t, out.String(), "dir: /tmp")
}
