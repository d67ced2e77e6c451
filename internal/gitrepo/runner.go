package gitrepo

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/simplesurance/prmerger/internal/logfields"
)

const loggerName = "git"

// Runner runs git commands in a local directory.
type Runner struct {
	gitPath string
	// Dir is the directory the commands are run in.
	Dir    string
	logger *zap.Logger
}

// NewRunner returns a Runner executing git in dir.
func NewRunner(dir string) (*Runner, error) {
	p, err := exec.LookPath("git")
	if err != nil {
		return nil, fmt.Errorf("no 'git' program on path: %w", err)
	}

	return &Runner{
		gitPath: p,
		Dir:     dir,
		logger:  zap.L().Named(loggerName).With(logfields.Path(dir)),
	}, nil
}

type RunResult struct {
	Stdout string
	Stderr string
}

// ExecError is returned when a git command exits with a non-zero status.
type ExecError struct {
	Args   []string
	Err    error
	Stdout string
	Stderr string
}

func (e *ExecError) Error() string {
	b := new(strings.Builder)
	b.WriteString("git ")
	b.WriteString(strings.Join(e.Args, " "))
	b.WriteString(" failed: ")
	b.WriteString(e.Err.Error())
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		b.WriteString(": ")
		b.WriteString(stderr)
	}
	return b.String()
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// Run runs a git command, omit the 'git' part of the command.
// Stderr of the command is logged line by line with debug level while the
// command is running.
func (r *Runner) Run(ctx context.Context, args ...string) (RunResult, error) {
	cmd := exec.CommandContext(ctx, r.gitPath, args...)
	cmd.Dir = r.Dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0", "LC_ALL=C")

	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return RunResult{}, err
	}

	r.logger.Debug(
		"running git command",
		logfields.Event("git_command_started"),
		zap.Strings("git.args", args),
	)

	if err := cmd.Start(); err != nil {
		return RunResult{}, &ExecError{Args: args, Err: err}
	}

	stderrCh := make(chan string, 1)
	go func() {
		stderrCh <- r.drain(stderrPipe)
	}()

	stderr := <-stderrCh
	err = cmd.Wait()
	if err != nil {
		return RunResult{}, &ExecError{
			Args:   args,
			Err:    err,
			Stdout: stdout.String(),
			Stderr: stderr,
		}
	}

	return RunResult{
		Stdout: stdout.String(),
		Stderr: stderr,
	}, nil
}

func (r *Runner) drain(rd io.Reader) string {
	var buf strings.Builder

	sc := bufio.NewScanner(rd)
	for sc.Scan() {
		line := sc.Text()
		buf.WriteString(line)
		buf.WriteByte('\n')

		r.logger.Debug(line, logfields.Event("git_command_output"))
	}

	// the pipe must be read until EOF before Wait() is called
	_, _ = io.Copy(io.Discard, rd)

	return buf.String()
}

// Output runs a git command and returns its stdout with surrounding
// whitespace removed.
func (r *Runner) Output(ctx context.Context, args ...string) (string, error) {
	res, err := r.Run(ctx, args...)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(res.Stdout), nil
}

func splitLines(s string) []string {
	var result []string

	for _, l := range strings.Split(s, "\n") {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}

		result = append(result, l)
	}

	return result
}
