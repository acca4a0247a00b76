package app

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"pcc-go/internal/pcc"
)

// CommandAnalyzer implements pcc.ModuleAnalyzer by running a configured
// external command once per module. The command receives the module name and
// workspace path via PCC_MODULE and PCC_WORKSPACE and writes the module
// document to stdout.
type CommandAnalyzer struct {
	command []string
}

var _ pcc.ModuleAnalyzer = (*CommandAnalyzer)(nil)

// NewCommandAnalyzer creates a CommandAnalyzer for the given argv. Returns an
// error if argv is empty.
func NewCommandAnalyzer(command []string) (*CommandAnalyzer, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("analyzer command not configured")
	}
	return &CommandAnalyzer{command: command}, nil
}

func (a *CommandAnalyzer) AnalyzeModule(ctx context.Context, workspace, module string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, a.command[0], a.command[1:]...)
	cmd.Dir = workspace
	cmd.Env = append(os.Environ(),
		"PCC_MODULE="+module,
		"PCC_WORKSPACE="+workspace,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("analyzer %s (module %s): %w: %s",
			a.command[0], module, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}
