package main

import (
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/lychee-technology/lowcoder"
	"github.com/lychee-technology/lowcoder/internal"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	importProject    int64
	importDocument   int64
	importParamsFile string
	importHeader     int
	importSkipRows   int
	importSkipFooter int
	importDecimal    string
	importReplace    bool
	importDryRun     bool
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a spreadsheet or CSV file into a project schema",
	Long: `Import reads every sheet of the file, infers field types and
synchronizes the project's tables with it.

Examples:
  lowcoder import --project 1 staff.xlsx
  lowcoder import --project 1 --document 4 --replace staff.xlsx
  lowcoder import --project 1 --dry-run --sheet-params params.yaml staff.xlsx
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		file := args[0]

		req := &lowcoder.ImportRequest{
			ProjectID: importProject,
			Path:      file,
			FileName:  filepath.Base(file),
			DefaultParams: lowcoder.SheetReaderParams{
				Header:     importHeader,
				SkipRows:   importSkipRows,
				SkipFooter: importSkipFooter,
				Decimal:    importDecimal,
			},
			ReplaceExisting: importReplace,
		}
		if importDocument > 0 {
			req.DocumentID = &importDocument
		}
		if importParamsFile != "" {
			if req.SheetParams, err = readSheetParams(importParamsFile); err != nil {
				return err
			}
		}

		if !importDryRun && req.DocumentID == nil {
			key, err := storeUpload(cmd, cfg, file)
			if err != nil {
				return err
			}
			req.StorageKey = key
		}

		sm, cleanup, err := schemaSession(ctx, cfg, importDryRun)
		if err != nil {
			return err
		}
		defer cleanup()

		result, err := sm.ImportDocument(ctx, req)
		if err != nil {
			return err
		}

		titleColor.Printf("Imported %s as document %d\n", result.Document.FileName, result.Document.ID)
		for _, t := range result.Tables {
			fmt.Printf("%2d. %s (%d fields)\n", t.Table.Index, t.Table.Name, len(t.Fields))
			for _, f := range t.Fields {
				hint := ""
				if f.ProposeUnique {
					hint = " unique?"
				}
				fmt.Printf("      %-24s %s%s\n", f.Field.Name, f.Field.Datatype, hint)
			}
		}
		printNotices(result.Notices)
		return nil
	},
}

// readSheetParams decodes a sheet name to read parameter map.
func readSheetParams(file string) (map[string]lowcoder.SheetReaderParams, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read sheet params: %w", err)
	}
	params := map[string]lowcoder.SheetReaderParams{}
	if err := yaml.Unmarshal(data, &params); err != nil {
		return nil, fmt.Errorf("parse sheet params %s: %w", file, err)
	}
	return params, nil
}

func storeUpload(cmd *cobra.Command, cfg *lowcoder.Config, file string) (string, error) {
	blobs, err := internal.NewBlobStore(cmd.Context(), cfg.Storage)
	if err != nil {
		return "", err
	}
	f, err := os.Open(file)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", file, err)
	}
	defer f.Close()

	key := path.Join("documents", fmt.Sprintf("%d", importProject), uuid.NewString()+"-"+filepath.Base(file))
	if err := blobs.Put(cmd.Context(), key, f); err != nil {
		return "", err
	}
	return key, nil
}

func init() {
	importCmd.Flags().Int64Var(&importProject, "project", 0, "project id")
	importCmd.Flags().Int64Var(&importDocument, "document", 0, "re-import into an existing document")
	importCmd.Flags().StringVar(&importParamsFile, "sheet-params", "", "yaml file with read parameters per sheet")
	importCmd.Flags().IntVar(&importHeader, "header", 0, "header row offset")
	importCmd.Flags().IntVar(&importSkipRows, "skip-rows", 0, "rows to skip before the header")
	importCmd.Flags().IntVar(&importSkipFooter, "skip-footer", 0, "rows to drop at the end")
	importCmd.Flags().StringVar(&importDecimal, "decimal", "", "decimal separator (default from config)")
	importCmd.Flags().BoolVar(&importReplace, "replace", false, "reset edited fields and prune extra ones")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "import into memory only")
	_ = importCmd.MarkFlagRequired("project")
	rootCmd.AddCommand(importCmd)
}
