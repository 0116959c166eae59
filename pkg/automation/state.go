package automation

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"go.starlark.net/starlark"
)

const stateKey = "srp-build.state"

type logKey struct{}

var nopLogger = zerolog.Nop()

func log(ctx context.Context) *zerolog.Logger {
	logger, ok := ctx.Value(logKey{}).(*zerolog.Logger)
	if !ok {
		return &nopLogger
	}

	return logger
}

// WithLogger attaches the given logger to the context. Script output and task progress are logged
// through it.
func WithLogger(ctx context.Context, logger *zerolog.Logger) context.Context {
	return context.WithValue(ctx, logKey{}, logger)
}

type loadedModule struct {
	globals starlark.StringDict
	err     error
}

// scriptState is shared by every thread of a single Setup call
type scriptState struct {
	ctx         context.Context
	projectRoot string
	searchPath  []string
	buildID     string
	// file is the module that is currently being executed
	file    string
	modules map[string]*loadedModule
	runner  *runner
}

func stateOf(thread *starlark.Thread) *scriptState {
	return thread.Local(stateKey).(*scriptState)
}

// displayPath shortens paths below the project root for messages
func (s *scriptState) displayPath(file string) string {
	rel, err := filepath.Rel(s.projectRoot, file)
	if err != nil || strings.HasPrefix(rel, "..") {
		return file
	}

	return filepath.ToSlash(rel)
}
