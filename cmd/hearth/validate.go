package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hearth-home/hearth-core/internal/infrastructure/config"
	"github.com/hearth-home/hearth-core/internal/model"
)

// newValidateCmd checks model files without starting the runtime.
func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <dir|file>",
		Short: "Validate YAML model files",
		Long: `Parse the given model file or every model file under the given
directory, printing errors and warnings. Exits non-zero when any file
has errors.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateModels(cmd, args[0])
		},
	}
}

// newConfigCmd groups configuration inspection commands.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration commands",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Load and validate the configuration file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := getConfigPath()
			if _, err := config.Load(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration ok: %s\n", path)
			return nil
		},
	})
	return cmd
}

// validateModels feeds the target files through a model repository and
// reports per-model errors and warnings.
func validateModels(cmd *cobra.Command, target string) error {
	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("reading %s: %w", target, err)
	}

	dir := target
	var files []string
	if info.IsDir() {
		files, err = collectModelFiles(target)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "no model files under %s\n", target)
			return nil
		}
	} else {
		dir = filepath.Dir(target)
		files = []string{filepath.Base(target)}
	}

	// Register the real providers so element definitions decode exactly
	// as they would at runtime.
	repo := model.NewRepository(dir, nil)
	repo.AddListener(model.NewYAMLItemProvider(nil))
	repo.AddListener(model.NewYAMLThingProvider(nil))
	repo.AddListener(model.NewYAMLRuleProvider(nil))

	failed := 0
	for _, name := range files {
		content, readErr := os.ReadFile(filepath.Join(dir, name))
		if readErr != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", name, readErr)
			failed++
			continue
		}
		if procErr := repo.ProcessFile(name, content); procErr != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", name, procErr)
		}
		bad := false
		for _, msg := range repo.Errors(name) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: error: %s\n", name, msg)
			bad = true
		}
		for _, msg := range repo.Warnings(name) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: warning: %s\n", name, msg)
		}
		if bad {
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d model files have errors", failed, len(files))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d model files ok\n", len(files))
	return nil
}

// collectModelFiles lists YAML files under dir, by repository-relative
// name, skipping hidden files and directories.
func collectModelFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		base := filepath.Base(path)
		if strings.HasPrefix(base, ".") && path != dir {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(base))
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			return relErr
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}
	return files, nil
}
