package main

import (
	"fmt"

	"github.com/lychee-technology/lowcoder/factory"
	"github.com/spf13/cobra"
)

var initDBCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Create the PostgreSQL tables backing project schemas",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		pool, err := factory.NewPool(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := factory.InitDatabase(ctx, pool, cfg.Database.TableNames); err != nil {
			return err
		}
		names := cfg.Database.TableNames
		fmt.Printf("Initialized tables: %s, %s, %s, %s, %s, %s, %s\n",
			names.Schemas, names.Documents, names.Sheets, names.Headlines, names.Columns, names.Tables, names.Fields)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initDBCmd)
}
