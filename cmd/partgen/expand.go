package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tablekit/partgen/internal/ddl"
	"github.com/tablekit/partgen/internal/specfile"
	"github.com/tablekit/partgen/pkg/catalog"
	"github.com/tablekit/partgen/pkg/partition"
)

// expandCmd represents the expand command
var expandCmd = &cobra.Command{
	Use:   "expand <spec-file>...",
	Short: "Expand specifications into CREATE TABLE scripts",
	Long: `Expand one or more partition specification files into CREATE TABLE
scripts. Each file is expanded independently against an empty catalog;
the scripts go to stdout, or to one .sql file per specification when
--output-dir is set.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		outputDir, _ := cmd.Flags().GetString("output-dir")
		return runExpand(cmd.Context(), args, outputDir)
	},
}

func init() {
	expandCmd.Flags().String("output-dir", "", "Write one .sql file per specification to this directory")
}

func runExpand(ctx context.Context, paths []string, outputDir string) error {
	scripts := make([]string, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			children, err := expandFile(ctx, path)
			if err != nil {
				return err
			}
			scripts[i] = ddl.Script(children)
			log.Debugf("expanded %s into %d partitions", path, countChildren(children))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if outputDir == "" {
		for i, script := range scripts {
			if i > 0 {
				fmt.Println()
			}
			fmt.Print(script)
		}
		return nil
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %v", err)
	}
	for i, path := range paths {
		base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		target := filepath.Join(outputDir, base+".sql")
		if err := os.WriteFile(target, []byte(scripts[i]), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %v", target, err)
		}
		log.Infof("wrote %s", target)
	}
	return nil
}

// expandFile runs one specification through the generator against an
// in-memory catalog.
func expandFile(ctx context.Context, path string) ([]partition.Child, error) {
	spec, err := specfile.Load(path)
	if err != nil {
		return nil, err
	}
	gen := partition.NewGenerator(catalog.NewMemoryNamer(), catalog.NewMemoryTemplateStore())
	children, err := gen.GenerateTree(ctx, spec.Relation, spec.Definition, spec.SubPartition)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return children, nil
}

func countChildren(children []partition.Child) int {
	n := 0
	for i := range children {
		n += 1 + countChildren(children[i].Children)
	}
	return n
}
