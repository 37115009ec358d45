package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lychee-technology/lowcoder"
	"go.uber.org/zap"
)

// ExpandRequest is one invocation of the template expansion tool.
type ExpandRequest struct {
	Template          string
	ConfigFile        string
	OutputDir         string
	ExtraContext      map[string]any
	NoInput           bool
	OverwriteIfExists bool
}

// WriteExpanderConfig writes the expanded parameters together with the
// directory layout keys to path as JSON.
func WriteExpanderConfig(path string, params map[string]any, dirs Directories) error {
	config := make(map[string]any, len(params)+3)
	for k, v := range params {
		config[k] = v
	}
	config["_output_dir"] = dirs.OutputDir()
	config["cookiecutters_dir"] = dirs.CookiecuttersDir()
	config["replay_dir"] = dirs.ReplayDir()

	data, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("encode expander config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write expander config: %w", err)
	}
	return nil
}

// CookiecutterExpander runs the cookiecutter command line tool.
type CookiecutterExpander struct {
	binary string
}

func NewCookiecutterExpander(binary string) *CookiecutterExpander {
	if binary == "" {
		binary = "cookiecutter"
	}
	return &CookiecutterExpander{binary: binary}
}

func (e *CookiecutterExpander) args(req ExpandRequest) []string {
	args := []string{req.Template}
	if req.NoInput {
		args = append(args, "--no-input")
	}
	if req.OverwriteIfExists {
		args = append(args, "--overwrite-if-exists")
	}
	if req.ConfigFile != "" {
		args = append(args, "--config-file", req.ConfigFile)
	}
	if req.OutputDir != "" {
		args = append(args, "--output-dir", req.OutputDir)
	}

	keys := make([]string, 0, len(req.ExtraContext))
	for k := range req.ExtraContext {
		// Keys with a leading underscore are private to the config file.
		if strings.HasPrefix(k, "_") {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, fmt.Sprintf("%s=%v", k, req.ExtraContext[k]))
	}
	return args
}

// Expand blocks until the tool exits. A failing run is a generation error
// carrying the tool output.
func (e *CookiecutterExpander) Expand(ctx context.Context, req ExpandRequest) error {
	if req.Template == "" {
		return lowcoder.NewGenerationError(lowcoder.ErrCodeTemplateExpansion, "template expansion",
			fmt.Errorf("code template has no path"))
	}
	cmd := exec.CommandContext(ctx, e.binary, e.args(req)...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		zap.S().Errorw("template expansion failed", "template", req.Template, "err", err)
		return lowcoder.NewGenerationError(lowcoder.ErrCodeTemplateExpansion, "template expansion",
			fmt.Errorf("%s: %w: %s", e.binary, err, strings.TrimSpace(string(output))))
	}
	zap.S().Infow("template expanded", "template", req.Template, "output_dir", req.OutputDir)
	return nil
}
