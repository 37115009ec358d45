package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/lychee-technology/lowcoder"
	"github.com/spf13/cobra"
)

var (
	schemaProject int64
	schemaJSON    bool
	moveDown      bool
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Show a project schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSchemaManager(cmd, func(ctx context.Context, sm lowcoder.SchemaManager) error {
			snapshot, err := sm.GetSchema(ctx, schemaProject)
			if err != nil {
				return err
			}
			if schemaJSON {
				return printJSON(snapshot)
			}
			printSnapshot(snapshot)
			return nil
		})
	},
}

var tableCmd = &cobra.Command{Use: "table", Short: "Reorder or delete tables"}
var fieldCmd = &cobra.Command{Use: "field", Short: "Reorder or delete fields"}
var documentCmd = &cobra.Command{Use: "document", Short: "Manage imported documents"}

func withSchemaManager(cmd *cobra.Command, fn func(ctx context.Context, sm lowcoder.SchemaManager) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sm, cleanup, err := schemaSession(cmd.Context(), cfg, false)
	if err != nil {
		return err
	}
	defer cleanup()
	return fn(cmd.Context(), sm)
}

func idCommand(use, short string, run func(ctx context.Context, sm lowcoder.SchemaManager, id int64) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id %q", args[0])
			}
			return withSchemaManager(cmd, func(ctx context.Context, sm lowcoder.SchemaManager) error {
				if err := run(ctx, sm, id); err != nil {
					return err
				}
				infoColor.Printf("%s %d: done\n", use, id)
				return nil
			})
		},
	}
}

func init() {
	schemaCmd.Flags().Int64Var(&schemaProject, "project", 0, "project id")
	schemaCmd.Flags().BoolVar(&schemaJSON, "json", false, "print the schema as JSON")
	_ = schemaCmd.MarkFlagRequired("project")

	tableMove := idCommand("move", "Move a table one position", func(ctx context.Context, sm lowcoder.SchemaManager, id int64) error {
		if moveDown {
			return sm.MoveTableDown(ctx, id)
		}
		return sm.MoveTableUp(ctx, id)
	})
	tableMove.Flags().BoolVar(&moveDown, "down", false, "move down instead of up")
	tableCmd.AddCommand(tableMove, idCommand("delete", "Delete a table", func(ctx context.Context, sm lowcoder.SchemaManager, id int64) error {
		return sm.DeleteTable(ctx, id)
	}))

	fieldMove := idCommand("move", "Move a field one position", func(ctx context.Context, sm lowcoder.SchemaManager, id int64) error {
		if moveDown {
			return sm.MoveFieldDown(ctx, id)
		}
		return sm.MoveFieldUp(ctx, id)
	})
	fieldMove.Flags().BoolVar(&moveDown, "down", false, "move down instead of up")
	fieldCmd.AddCommand(fieldMove, idCommand("delete", "Delete a field", func(ctx context.Context, sm lowcoder.SchemaManager, id int64) error {
		return sm.DeleteField(ctx, id)
	}))

	documentCmd.AddCommand(idCommand("delete", "Delete a document and its stored upload", func(ctx context.Context, sm lowcoder.SchemaManager, id int64) error {
		return sm.DeleteDocument(ctx, id)
	}))

	rootCmd.AddCommand(schemaCmd, tableCmd, fieldCmd, documentCmd)
}
