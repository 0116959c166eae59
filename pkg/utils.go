package pkg

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// FindProjectRoot walks up from start until it finds a directory containing .git
func FindProjectRoot(start string) (string, error) {
	mypath, err := filepath.Abs(start)
	if err != nil {
		return "", eris.Wrapf(err, "Failed to resolve %s", start)
	}

	for {
		gitPath := filepath.Join(mypath, ".git")
		_, err := os.Stat(gitPath)
		if err == nil {
			return mypath, nil
		}

		if !eris.Is(err, os.ErrNotExist) {
			return "", eris.Wrap(err, "Error ocurred while searching for project root")
		}

		nextPath := filepath.Dir(mypath)
		if mypath == nextPath {
			break
		}
		mypath = nextPath
	}

	return "", eris.New("Project root not found")
}

// GetProjectRoot returns the configured root or, if that is empty, the project root above the
// working directory. Falls back to the working directory outside of a repository.
func GetProjectRoot(configured string) (string, error) {
	if configured != "" {
		return filepath.Abs(configured)
	}

	wd, err := os.Getwd()
	if err != nil {
		return "", eris.Wrap(err, "Failed to retrieve the current working directory")
	}

	root, err := FindProjectRoot(wd)
	if err != nil {
		return wd, nil
	}
	return root, nil
}
