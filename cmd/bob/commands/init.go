package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/babybob/babybob/pkg/stores"
)

func newInitCommand() *cobra.Command {
	var seed bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create and migrate the review database",
		Long: `Create the review database at the configured path and apply the embedded
schema migrations. Running init against an existing database only applies
pending migrations; it never destroys data.`,
		Example: `  # Create the database at the configured path
  bob init

  # Create and populate with deterministic sample units
  bob init --seed`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			store, err := stores.NewSQLiteStore(stores.Config{
				Path:            cfg.Database.Path,
				MaxOpenConns:    cfg.Database.MaxOpenConns,
				MaxIdleConns:    cfg.Database.MaxIdleConns,
				ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			})
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Init(ctx); err != nil {
				return err
			}
			if err := store.Migrate(ctx); err != nil {
				return err
			}
			fmt.Printf("Database ready at %s\n", store.Path())

			if seed {
				n, err := store.Seed(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("Seeded %d sample units\n", n)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&seed, "seed", false, "populate the database with sample units")

	return cmd
}
