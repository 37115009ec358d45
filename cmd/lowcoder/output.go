package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lychee-technology/lowcoder"
	"github.com/lychee-technology/lowcoder/factory"
)

var (
	infoColor  = color.New(color.FgGreen)
	warnColor  = color.New(color.FgYellow)
	titleColor = color.New(color.FgCyan, color.Bold)
)

func printNotices(notices lowcoder.Notices) {
	for _, n := range notices {
		if n.Level == lowcoder.NoticeWarning {
			warnColor.Printf("  ! %s\n", n.Message)
			continue
		}
		infoColor.Printf("  - %s\n", n.Message)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSnapshot(s *lowcoder.SchemaSnapshot) {
	titleColor.Printf("Schema %d (project %d)\n", s.Schema.ID, s.Schema.ProjectID)
	for _, tm := range s.Tables {
		marker := ""
		if tm.Table.IsMainEntity {
			marker = " [main]"
		}
		fmt.Printf("%2d. %s (id %d)%s\n", tm.Table.Index, tm.Table.Name, tm.Table.ID, marker)
		for _, f := range tm.Fields {
			fmt.Printf("      %2d. %-24s %s\n", f.Index, f.Name, f.Datatype)
		}
	}
}

// schemaSession opens a SchemaManager against PostgreSQL, or an in-memory
// repository when dryRun is set.
func schemaSession(ctx context.Context, cfg *lowcoder.Config, dryRun bool) (lowcoder.SchemaManager, func(), error) {
	if dryRun {
		return factory.NewInMemorySchemaManager(ctx, cfg)
	}
	pool, err := factory.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	sm, cleanup, err := factory.NewSchemaManagerWithConfig(ctx, cfg, pool)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return sm, closeAll(cleanup, pool), nil
}

func closeAll(cleanup func(), pool *pgxpool.Pool) func() {
	return func() {
		cleanup()
		pool.Close()
	}
}
