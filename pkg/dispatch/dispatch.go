// Package dispatch hands control to the automation collaborator if one is available.
package dispatch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/srp-packages/build-tools/pkg/automation"
)

// NotFoundMessage is printed when no collaborator could be located
const NotFoundMessage = "No Automation Tools found."

// DefaultAutomationDir is the collaborator directory relative to the working directory
var DefaultAutomationDir = filepath.Join("..", "automation-tools")

// DefaultModule is the collaborator module name
const DefaultModule = "unity_package_build"

// Options configures a single dispatch
type Options struct {
	// AutomationDir is prepended to SearchPath. Relative paths are resolved against the working directory.
	AutomationDir string
	Module        string
	SearchPath    []string
	ProjectRoot   string
	DryRun        bool
	Force         bool
	Stdout        io.Writer
	Stderr        io.Writer
	Logger        *zerolog.Logger
}

// Run locates the collaborator and calls its setup function. A missing collaborator only results in
// a message on Stdout; errors raised by the collaborator are returned.
func Run(ctx context.Context, opts Options) error {
	if opts.AutomationDir == "" {
		opts.AutomationDir = DefaultAutomationDir
	}
	if opts.Module == "" {
		opts.Module = DefaultModule
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Logger != nil {
		ctx = automation.WithLogger(ctx, opts.Logger)
	}
	logger := opts.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	automationDir, err := filepath.Abs(opts.AutomationDir)
	if err != nil {
		return eris.Wrapf(err, "failed to resolve %s", opts.AutomationDir)
	}

	searchPath := append([]string{automationDir}, opts.SearchPath...)
	logger.Debug().Strs("search_path", searchPath).Str("module", opts.Module).Msg("looking for automation tools")

	collab, err := automation.Locate(opts.Module, automation.Options{
		SearchPath:  searchPath,
		ProjectRoot: opts.ProjectRoot,
		DryRun:      opts.DryRun,
		Force:       opts.Force,
		Stdout:      opts.Stdout,
		Stderr:      opts.Stderr,
	})
	if err != nil {
		return eris.Wrap(err, "failed to look up automation tools")
	}

	if collab == nil {
		_, err = fmt.Fprintln(opts.Stdout, NotFoundMessage)
		return err
	}

	logger.Debug().Str("path", collab.File).Msg("found automation tools")
	buildLog, err := collab.Setup(ctx)
	if err != nil {
		return eris.Wrapf(err, "%s failed", opts.Module)
	}

	logger.Debug().Str("result", buildLog.String()).Msg("automation tools finished")
	return nil
}
