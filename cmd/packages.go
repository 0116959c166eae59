package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/srp-packages/build-tools/pkg"
	"github.com/srp-packages/build-tools/pkg/registry"
)

var packagesCmd = &cobra.Command{
	Use:   "packages",
	Short: "Lists the registered packages and their paths",
	Long: `Prints the package registry. --check compares it with the test package list and
--verify makes sure every package directory exists below the project root.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := cmd.Flags().GetString("format")
		if err != nil {
			return err
		}

		check, err := cmd.Flags().GetBool("check")
		if err != nil {
			return err
		}

		strict, err := cmd.Flags().GetBool("strict")
		if err != nil {
			return err
		}

		verify, err := cmd.Flags().GetBool("verify")
		if err != nil {
			return err
		}

		pkgs := registry.Packages()
		err = writeList(cmd.OutOrStdout(), format, pkgs, func(w io.Writer) error {
			maxNameLen := 0
			for _, p := range pkgs {
				if len(p.Name) > maxNameLen {
					maxNameLen = len(p.Name)
				}
			}

			lineFmt := fmt.Sprintf(" * %%-%ds %%s\n", maxNameLen+3)
			for _, p := range pkgs {
				if _, err := fmt.Fprintf(w, lineFmt, p.Name, p.Path); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}

		if check || strict {
			drift := registry.Audit()
			for _, item := range drift {
				logger.Warn().Str("package", item.Name).Msgf("%s is %s", item.Name, item.Kind)
			}

			if strict && len(drift) > 0 {
				return eris.Errorf("package lists disagree in %d places", len(drift))
			}
		}

		if verify {
			projectRoot, err := pkg.GetProjectRoot(cfg.Root)
			if err != nil {
				return err
			}

			logger.Info().Str("path", projectRoot).Msgf("verifying package directories in %s", projectRoot)
			return verifyPackages(cmd.ErrOrStderr(), projectRoot, pkgs)
		}

		return nil
	},
}

var testPackagesCmd = &cobra.Command{
	Use:   "test-packages",
	Short: "Lists the packages that have tests",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := cmd.Flags().GetString("format")
		if err != nil {
			return err
		}

		names := registry.TestPackages()
		return writeList(cmd.OutOrStdout(), format, names, func(w io.Writer) error {
			for _, name := range names {
				if _, err := fmt.Fprintf(w, " * %s\n", name); err != nil {
					return err
				}
			}
			return nil
		})
	},
}

func writeList(out io.Writer, format string, value interface{}, text func(io.Writer) error) error {
	switch format {
	case "", "text":
		return text(out)
	case "yaml":
		encoder := yaml.NewEncoder(out)
		encoder.SetIndent(2)
		if err := encoder.Encode(value); err != nil {
			return eris.Wrap(err, "failed to encode YAML")
		}
		return encoder.Close()
	case "json":
		data, err := json.MarshalIndent(value, "", "  ")
		if err != nil {
			return eris.Wrap(err, "failed to encode JSON")
		}

		_, err = fmt.Fprintln(out, string(data))
		return err
	}

	return eris.Errorf("unsupported format %s", format)
}

func verifyPackages(out io.Writer, projectRoot string, pkgs []registry.Package) error {
	bar := progressbar.NewOptions(len(pkgs),
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription("Checking packages"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetVisibility(os.Getenv("CI") != "true"),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(out, "\n")
		}),
	)

	missing := make([]string, 0)
	for _, p := range pkgs {
		bar.Describe(p.Name)
		info, err := os.Stat(filepath.Join(projectRoot, p.Path))
		if err != nil {
			if !eris.Is(err, os.ErrNotExist) {
				return eris.Wrapf(err, "Failed to check %s", p.Path)
			}
			missing = append(missing, p.Path)
		} else if !info.IsDir() {
			missing = append(missing, p.Path)
		}

		if err := bar.Add(1); err != nil {
			return err
		}
	}

	if len(missing) > 0 {
		return eris.Errorf("%d package directories are missing below %s: %v", len(missing), projectRoot, missing)
	}

	return nil
}

func init() {
	packagesCmd.Flags().String("format", "text", "output format (text, yaml or json)")
	packagesCmd.Flags().Bool("check", false, "report differences between the package and test package lists")
	packagesCmd.Flags().Bool("strict", false, "fail if the package and test package lists differ (implies --check)")
	packagesCmd.Flags().Bool("verify", false, "check that every package directory exists")
	testPackagesCmd.Flags().String("format", "text", "output format (text, yaml or json)")

	rootCmd.AddCommand(packagesCmd)
	rootCmd.AddCommand(testPackagesCmd)
}
