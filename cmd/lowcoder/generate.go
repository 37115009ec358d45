package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lychee-technology/lowcoder"
	"github.com/lychee-technology/lowcoder/factory"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// projectDescriptor is the file passed to generate. It carries what the
// hosting application would otherwise supply.
type projectDescriptor struct {
	Project      lowcoder.Project         `yaml:"project"`
	Settings     lowcoder.ProjectSettings `yaml:"settings"`
	User         lowcoder.User            `yaml:"user"`
	CodeTemplate lowcoder.CodeTemplate    `yaml:"codeTemplate"`
	DeployType   string                   `yaml:"deployType"`
}

func readDescriptor(file string) (*lowcoder.GenerateRequest, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read descriptor: %w", err)
	}
	// yaml.v3 also accepts JSON documents.
	var d projectDescriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse descriptor %s: %w", file, err)
	}
	deploy := lowcoder.DeployTypeLocal
	if strings.TrimSpace(d.DeployType) != "" {
		if deploy, err = lowcoder.ParseDeployType(d.DeployType); err != nil {
			return nil, err
		}
	}
	return &lowcoder.GenerateRequest{
		Project:      d.Project,
		Settings:     d.Settings,
		User:         d.User,
		CodeTemplate: d.CodeTemplate,
		DeployType:   deploy,
	}, nil
}

var generateCmd = &cobra.Command{
	Use:   "generate <descriptor.yaml>",
	Short: "Generate an application from a project schema",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := readDescriptor(args[0])
		if err != nil {
			return err
		}
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

		gen, err := factory.NewProjectGeneratorWithConfig(ctx, cfg, pool)
		if err != nil {
			return err
		}
		result, err := gen.Generate(ctx, req)
		if err != nil {
			return err
		}

		titleColor.Printf("Run %s\n", result.RunID)
		if result.OutputRoot != "" {
			fmt.Printf("  output:  %s\n", filepath.Clean(result.OutputRoot))
		}
		if result.ArchiveKey != "" {
			fmt.Printf("  archive: %s\n", result.ArchiveKey)
		}
		printNotices(result.Notices)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)
}
