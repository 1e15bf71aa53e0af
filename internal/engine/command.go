/*
PURPOSE:
  Builds and runs the `go test -json -v` process whose stdout feeds the
  event decoder.

REQUIREMENTS:
  User-specified:
  - Target specifiers are passed through to go test (default ./...).
  - -run, -timeout and extra go test flags are configurable.

  Implementation-discovered:
  - -json and -v are always set; without -v passing tests emit no
    "=== RUN" framing and test2json cannot time them.
  - -count=1 by default: a cached result replays old timings.
  - stderr carries compiler and vet output; it is copied through so the
    user still sees it.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine/runner.go
  - Uses: os/exec, golang.org/x/sync/errgroup

ERROR HANDLING:
  - A non-zero exit of the go tool is not an error: the code is returned.
  - Failure to start the process or a consume error is returned.
  - When consume fails the process is cancelled and reaped; pipes held
    open by grandchildren are closed after waitDelay.

USAGE:
  cmd := engine.NewCommand(cfg, []string{"./..."})
  code, err := cmd.Exec(ctx, consume, os.Stderr)
*/

package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/chainguard-dev/clog"
	"golang.org/x/sync/errgroup"

	"github.com/daryltucker/gotest-jtl/internal/config"
)

// waitDelay is how long Exec waits for output pipes after the go process exits.
const waitDelay = 2 * time.Second

// DefaultTargets is used when no target specifier is given.
var DefaultTargets = []string{"./..."}

// Command describes one go test invocation.
type Command struct {
	GoBinary string
	Run      string
	Timeout  time.Duration
	NoCache  bool
	Flags    []string
	Targets  []string
	Dir      string
}

// NewCommand builds a Command from configuration and target specifiers.
func NewCommand(cfg *config.Config, targets []string) Command {
	if len(targets) == 0 {
		targets = DefaultTargets
	}
	return Command{
		GoBinary: cfg.GoBinary,
		Run:      cfg.Run,
		Timeout:  cfg.Timeout,
		NoCache:  cfg.NoCache,
		Flags:    cfg.TestFlags,
		Targets:  targets,
	}
}

// Args returns the arguments passed to the go binary.
func (c Command) Args() []string {
	args := []string{"test", "-json", "-v"}
	if c.NoCache {
		args = append(args, "-count=1")
	}
	if c.Run != "" {
		args = append(args, "-run", c.Run)
	}
	if c.Timeout > 0 {
		args = append(args, "-timeout", c.Timeout.String())
	}
	args = append(args, c.Flags...)
	return append(args, c.Targets...)
}

// Exec runs the command. consume reads stdout on the calling goroutine,
// stderr is copied to errOut. It returns the exit code of the go tool.
func (c Command) Exec(ctx context.Context, consume func(context.Context, io.Reader) error, errOut io.Writer) (int, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.GoBinary, c.Args()...)
	cmd.Dir = c.Dir
	// Bounds the wait for pipes still held by grandchildren once go is killed.
	cmd.WaitDelay = waitDelay

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return -1, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return -1, err
	}

	log := clog.FromContext(ctx)
	log.Info("Starting go test", "binary", c.GoBinary, "args", c.Args())
	if err := cmd.Start(); err != nil {
		return -1, fmt.Errorf("failed to start %s: %w", c.GoBinary, err)
	}

	var g errgroup.Group
	g.Go(func() error {
		_, err := io.Copy(errOut, stderr)
		return err
	})

	if consumeErr := consume(ctx, stdout); consumeErr != nil {
		// Wait closes both pipes, which also ends the stderr copy.
		cancel()
		_ = cmd.Wait()
		_ = g.Wait()
		return -1, consumeErr
	}
	if err := g.Wait(); err != nil {
		log.Warn("Copying go test stderr failed", "error", err)
	}
	waitErr := cmd.Wait()

	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		if exitErr.ExitCode() < 0 {
			return -1, fmt.Errorf("go test was terminated: %w", waitErr)
		}
		log.Info("go test finished", "exit_code", exitErr.ExitCode())
		return exitErr.ExitCode(), nil
	}
	if waitErr != nil {
		return -1, fmt.Errorf("go test did not finish: %w", waitErr)
	}
	log.Info("go test finished", "exit_code", 0)
	return 0, nil
}
