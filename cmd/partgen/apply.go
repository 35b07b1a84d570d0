package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tablekit/partgen/internal/database/postgres"
	"github.com/tablekit/partgen/internal/ddl"
	"github.com/tablekit/partgen/internal/specfile"
	"github.com/tablekit/partgen/pkg/database"
	"github.com/tablekit/partgen/pkg/partition"
)

// applyCmd represents the apply command
var applyCmd = &cobra.Command{
	Use:   "apply <spec-file>",
	Short: "Expand a specification and create the partitions",
	Long: `Apply expands a specification against the live catalog and creates
every child table inside one transaction. Child names are de-duplicated
against relations that already exist, and sub-partition templates are
recorded for later levels.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		fromCatalog, _ := cmd.Flags().GetBool("from-catalog")
		storePw, _ := cmd.Flags().GetBool("store-password")
		yes, _ := cmd.Flags().GetBool("yes")
		return runApply(cmd, args[0], dryRun, fromCatalog, storePw, yes)
	},
}

func init() {
	applyCmd.Flags().Bool("dry-run", false, "Print the script instead of executing it")
	applyCmd.Flags().Bool("from-catalog", false, "Read parent table metadata from the live catalog instead of the specification")
	applyCmd.Flags().Bool("store-password", false, "Store a prompted password in the system keyring")
	applyCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
}

func runApply(cmd *cobra.Command, path string, dryRun, fromCatalog, storePw, yes bool) error {
	ctx := cmd.Context()

	spec, err := specfile.Load(path)
	if err != nil {
		return err
	}

	pgCfg := database.FromConfig(cfg)
	if pgCfg.Password == "" {
		password, err := promptPassword(fmt.Sprintf("Password for %s@%s: ", pgCfg.User, pgCfg.Host))
		if err != nil {
			return err
		}
		pgCfg.Password = password
		if storePw {
			if err := database.StorePassword(pgCfg.User, password); err != nil {
				log.Warnf("could not store password: %v", err)
			} else {
				log.Infof("stored password for %q in the keyring", pgCfg.User)
			}
		}
	}

	db, err := database.New(ctx, pgCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %v", err)
	}
	defer db.Close()

	rel := spec.Relation
	if fromCatalog {
		accessor, err := postgres.NewAccessor(db.Pool())
		if err != nil {
			return err
		}
		live, err := accessor.LookupRelation(ctx, rel.Namespace, rel.Name)
		if err != nil {
			return err
		}
		rel = mergeRelation(live, spec.Relation)
	}

	store := postgres.NewTemplateStore(db.Pool())
	if err := store.EnsureTable(ctx); err != nil {
		return err
	}

	gen := partition.NewGenerator(postgres.NewNamer(db.Pool()), store)
	children, err := gen.GenerateTree(ctx, rel, spec.Definition, spec.SubPartition)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	statements := ddl.Statements(children)

	if dryRun {
		fmt.Print(ddl.Script(children))
		return nil
	}

	if !yes {
		fmt.Printf("About to create %d partitions under %s.%s (%d statements).\n",
			countChildren(children), rel.Namespace, rel.Name, len(statements))
		fmt.Print("Continue? (y/N): ")
		reader := bufio.NewReader(os.Stdin)
		response, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %v", err)
		}
		if answer := strings.ToLower(strings.TrimSpace(response)); answer != "y" && answer != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	executor := postgres.NewExecutor(db.Pool(), log)
	runID, err := executor.Apply(ctx, statements)
	if err != nil {
		return err
	}
	fmt.Printf("✅ Created %d partitions under %s.%s (run %s)\n",
		countChildren(children), rel.Namespace, rel.Name, runID)
	return nil
}

// mergeRelation prefers the live catalog's identity, key and storage
// attributes, keeping specification-only attributes the catalog cannot
// provide.
func mergeRelation(live, declared *partition.Relation) *partition.Relation {
	merged := *live
	if len(merged.DistributedBy) == 0 {
		merged.DistributedBy = declared.DistributedBy
	}
	if len(merged.Encodings) == 0 {
		merged.Encodings = declared.Encodings
	}
	return &merged
}

func promptPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", fmt.Errorf("failed to read password: %v", err)
	}
	fmt.Println() // Add newline after password input
	password := strings.TrimSpace(string(passwordBytes))
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	return password, nil
}
