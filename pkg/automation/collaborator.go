package automation

import (
	"context"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/aidarkhanov/nanoid"
	"github.com/rotisserie/eris"
	"go.starlark.net/starlark"
)

// ScriptExt is the file extension of collaborator modules
const ScriptExt = ".star"

// SetupFunc is the global a collaborator has to define
const SetupFunc = "setup"

// Options controls where collaborator modules are searched and how their tasks run
type Options struct {
	// SearchPath lists the directories that are searched for modules, in order
	SearchPath  []string
	ProjectRoot string
	DryRun      bool
	Force       bool
	Stdout      io.Writer
	Stderr      io.Writer
}

// Collaborator is a located automation module that hasn't been executed yet
type Collaborator struct {
	Module string
	File   string
	opts   Options
}

// Locate searches the search path for the named module. It returns nil if no directory contains
// the module; only unexpected filesystem errors are reported.
func Locate(module string, opts Options) (*Collaborator, error) {
	if module == "" {
		return nil, eris.New("no module name given")
	}

	file, err := findModule(opts.SearchPath, moduleFilename(module))
	if err != nil {
		return nil, err
	}

	if file == "" {
		return nil, nil
	}

	return &Collaborator{
		Module: module,
		File:   file,
		opts:   opts,
	}, nil
}

func moduleFilename(module string) string {
	if strings.HasSuffix(module, ScriptExt) {
		return module
	}

	return module + ScriptExt
}

func findModule(searchPath []string, filename string) (string, error) {
	for _, dir := range searchPath {
		info, err := os.Stat(dir)
		if err != nil {
			if eris.Is(err, os.ErrNotExist) {
				continue
			}
			return "", eris.Wrapf(err, "failed to check search path entry %s", dir)
		}

		if !info.IsDir() {
			continue
		}

		candidate := filepath.Join(dir, filename)
		info, err = os.Stat(candidate)
		if err == nil {
			if info.Mode().IsRegular() {
				return filepath.Abs(candidate)
			}
			continue
		}

		if !eris.Is(err, os.ErrNotExist) {
			return "", eris.Wrapf(err, "failed to check %s", candidate)
		}
	}

	return "", nil
}

// Setup executes the collaborator module and calls its setup() function. The value returned by
// setup() is passed through unchanged. Any error raised by the script is returned.
func (c *Collaborator) Setup(ctx context.Context) (starlark.Value, error) {
	projectRoot := c.opts.ProjectRoot
	if projectRoot == "" {
		projectRoot = filepath.Dir(c.File)
	}

	projectRoot, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, eris.Wrap(err, "failed to resolve project root")
	}

	buildID := nanoid.New()
	state := &scriptState{
		ctx:         ctx,
		projectRoot: projectRoot,
		searchPath:  c.opts.SearchPath,
		buildID:     buildID,
		modules:     make(map[string]*loadedModule),
		runner:      newRunner(c.opts, buildID),
	}

	log(ctx).Debug().Str("module", c.Module).Str("build_id", buildID).Msgf("executing %s", state.displayPath(c.File))
	thread := state.newThread(c.Module)
	globals, err := state.load(thread, c.File)
	if err != nil {
		return nil, err
	}

	setup, ok := globals[SetupFunc].(starlark.Callable)
	if !ok {
		if _, declared := globals[SetupFunc]; declared {
			return nil, eris.Errorf("%s declared %s but it's not a function", state.displayPath(c.File), SetupFunc)
		}
		return nil, eris.Errorf("%s did not declare a %s function", state.displayPath(c.File), SetupFunc)
	}

	result, err := starlark.Call(thread, setup, nil, nil)
	if err != nil {
		return nil, scriptError(err, "%s() failed in %s", SetupFunc, state.displayPath(c.File))
	}

	return result, nil
}

// scriptError keeps the Starlark backtrace which points at the failing line of the script
func scriptError(err error, format string, args ...interface{}) error {
	if evalError, ok := err.(*starlark.EvalError); ok {
		return eris.Errorf(format+":\n%s", append(args, evalError.Backtrace())...)
	}

	return eris.Wrapf(err, format, args...)
}

func (s *scriptState) newThread(name string) *starlark.Thread {
	thread := &starlark.Thread{
		Name: name,
		Print: func(thread *starlark.Thread, msg string) {
			log(s.ctx).Info().Str("module", thread.Name).Msg(msg)
		},
		Load: s.load,
	}
	thread.SetLocal(stateKey, s)

	return thread
}

func (s *scriptState) predeclared() starlark.StringDict {
	return starlark.StringDict{
		"PROJECT_ROOT":       starlark.String(s.projectRoot),
		"BUILD_ID":           starlark.String(s.buildID),
		"packages_list":      starlark.NewBuiltin("packages_list", packagesList),
		"test_packages_list": starlark.NewBuiltin("test_packages_list", testPackagesList),
		"package_dir":        starlark.NewBuiltin("package_dir", packageDir),
		"task":               starlark.NewBuiltin("task", declareTask),
		"run_task":           starlark.NewBuiltin("run_task", runTask),
		"run_packages":       starlark.NewBuiltin("run_packages", runPackages),
	}
}

// load resolves load() statements. Modules are looked up next to the loading file first and then
// on the search path; "//" paths are relative to the project root. Absolute paths are used as is.
func (s *scriptState) load(thread *starlark.Thread, module string) (starlark.StringDict, error) {
	file, err := s.resolveModule(module)
	if err != nil {
		return nil, err
	}

	entry, ok := s.modules[file]
	if ok {
		if entry == nil {
			return nil, eris.Errorf("cycle in load graph involving %s", s.displayPath(file))
		}
		return entry.globals, entry.err
	}

	// a nil entry marks a module that is still executing
	s.modules[file] = nil
	globals, err := s.execModule(file)
	s.modules[file] = &loadedModule{globals: globals, err: err}

	return globals, err
}

func (s *scriptState) resolveModule(module string) (string, error) {
	if filepath.IsAbs(module) {
		return module, nil
	}

	filename := moduleFilename(module)
	if strings.HasPrefix(filename, "//") {
		return filepath.Join(s.projectRoot, filepath.FromSlash(filename[2:])), nil
	}

	dirs := s.searchPath
	if s.file != "" {
		dirs = append([]string{filepath.Dir(s.file)}, dirs...)
	}

	file, err := findModule(dirs, filename)
	if err != nil {
		return "", err
	}

	if file == "" {
		return "", eris.Errorf("module %s not found", module)
	}

	return file, nil
}

func (s *scriptState) execModule(file string) (starlark.StringDict, error) {
	script, err := ioutil.ReadFile(file)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read %s", file)
	}

	prevFile := s.file
	s.file = file
	defer func() {
		s.file = prevFile
	}()

	thread := s.newThread(filepath.Base(file))
	globals, err := starlark.ExecFile(thread, s.displayPath(file), script, s.predeclared())
	if err != nil {
		return globals, scriptError(err, "failed to execute %s", s.displayPath(file))
	}

	return globals, nil
}
