package internal

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/lychee-technology/lowcoder"
)

// CommandFormatter rewrites a file in place by running an external
// formatter such as black.
type CommandFormatter struct {
	binary string
	args   []string
}

func NewCommandFormatter(binary string, args ...string) *CommandFormatter {
	if binary == "" {
		binary = "black"
	}
	if len(args) == 0 && binary == "black" {
		args = []string{"--quiet"}
	}
	return &CommandFormatter{binary: binary, args: args}
}

func (f *CommandFormatter) Format(ctx context.Context, path string) error {
	args := append(append([]string{}, f.args...), path)
	output, err := exec.CommandContext(ctx, f.binary, args...).CombinedOutput()
	if err != nil {
		return lowcoder.NewGenerationError(lowcoder.ErrCodeFormatterFailed, "source formatting",
			fmt.Errorf("%s %s: %w: %s", f.binary, path, err, strings.TrimSpace(string(output))))
	}
	return nil
}

// NopFormatter leaves files untouched.
type NopFormatter struct{}

func (NopFormatter) Format(context.Context, string) error { return nil }
