// Package runner invokes external validator binaries with a wall-clock
// timeout and records how they exited.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"
)

// Output flag spellings understood by validators.
const (
	OutputBaseFlag = "--output_base"
	OutputFlag     = "--output"
)

// Invocation is one validator run.
type Invocation struct {
	Input     string
	OutputDir string
	Args      []string
}

// Result is how a run ended. ReturnCode is nil when the process timed out or
// could not be started; in both cases Duration is zero.
type Result struct {
	Success    bool
	ReturnCode *int
	Duration   time.Duration
	TimedOut   bool
	Stdout     []byte
	Stderr     []byte
	Err        error
}

// Runner is the interface for invoking a validator.
type Runner interface {
	Run(ctx context.Context, inv Invocation) Result
}

// BinaryRunner shells out to a validator binary.
type BinaryRunner struct {
	argv       []string
	outputFlag string
	timeout    time.Duration

	// Stdout and Stderr, when set, receive the child's output as it is
	// produced in addition to it being captured.
	Stdout io.Writer
	Stderr io.Writer
}

// NewBinaryRunner creates a BinaryRunner. argv is the program followed by any
// fixed leading arguments, for example ["java", "-Xmx8G", "-jar", "v.jar"].
// A zero timeout disables the limit.
func NewBinaryRunner(argv []string, outputFlag string, timeout time.Duration) *BinaryRunner {
	if outputFlag == "" {
		outputFlag = OutputBaseFlag
	}
	return &BinaryRunner{
		argv:       append([]string(nil), argv...),
		outputFlag: outputFlag,
		timeout:    timeout,
	}
}

// CommandLine returns the full argument vector for inv.
func (r *BinaryRunner) CommandLine(inv Invocation) []string {
	line := append([]string(nil), r.argv...)
	line = append(line, "--input", inv.Input, r.outputFlag, inv.OutputDir)
	return append(line, inv.Args...)
}

// Timeout returns the configured limit.
func (r *BinaryRunner) Timeout() time.Duration {
	return r.timeout
}

// Run executes the validator and waits for it. It never retries.
func (r *BinaryRunner) Run(ctx context.Context, inv Invocation) Result {
	if len(r.argv) == 0 {
		return Result{Err: errors.New("runner: empty command")}
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	line := r.CommandLine(inv)
	cmd := exec.CommandContext(ctx, line[0], line[1:]...)
	cmd.WaitDelay = 5 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = tee(&stdout, r.Stdout)
	cmd.Stderr = tee(&stderr, r.Stderr)

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if ctx.Err() != nil {
		res.TimedOut = errors.Is(ctx.Err(), context.DeadlineExceeded)
		res.Err = fmt.Errorf("runner: %s: %w", line[0], ctx.Err())
		return res
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		code := 0
		res.ReturnCode = &code
		res.Success = true
		res.Duration = elapsed
	case errors.As(err, &exitErr):
		code := exitErr.ExitCode()
		res.ReturnCode = &code
		res.Duration = elapsed
		res.Err = fmt.Errorf("runner: %s exited with code %d", line[0], code)
	default:
		res.Err = fmt.Errorf("runner: start %s: %w", line[0], err)
	}
	return res
}

func tee(buf *bytes.Buffer, w io.Writer) io.Writer {
	if w == nil {
		return buf
	}
	return io.MultiWriter(buf, w)
}
