// Package exec runs the user supplied hook commands.
package exec

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	osexec "os/exec"
	"strings"

	"github.com/google/shlex"
	log "github.com/sirupsen/logrus"
	"github.com/srl-labs/vault-ssh-renew/constants"
)

// Shell runs every hook command line.
const Shell = "/bin/sh"

// ErrEmptyCommand is returned for commands without a single word.
var ErrEmptyCommand = errors.New("empty command")

// ExecCmd represents an exec command.
type ExecCmd struct {
	Cmd []string `json:"cmd"` // Cmd is the argv handed to the shell.
}

// NewExecCmdFromString creates ExecCmd for a string-based command.
// The string is run by Shell, so pipes, redirections and variables work
// as they do on a command line.
func NewExecCmdFromString(cmd string) (*ExecCmd, error) {
	result := &ExecCmd{}
	if err := result.SetCmd(cmd); err != nil {
		return nil, err
	}
	return result, nil
}

// SetCmd sets the command that is to be executed. Unterminated quotes
// and escapes are rejected before anything runs.
func (e *ExecCmd) SetCmd(cmd string) error {
	cmd = strings.TrimSpace(cmd)

	words, err := shlex.Split(cmd)
	if err != nil {
		return err
	}
	if len(words) == 0 {
		return ErrEmptyCommand
	}
	e.Cmd = []string{Shell, "-c", cmd}
	return nil
}

// GetCmd returns the command that is to be executed.
func (e *ExecCmd) GetCmd() []string {
	return e.Cmd
}

// Run executes the command and waits for it to finish.
// A command that can't be started gets return code -1 and the error on stderr.
func (e *ExecCmd) Run(ctx context.Context) *ExecResult {
	res := NewExecResult(e)

	var stdout, stderr bytes.Buffer

	c := osexec.CommandContext(ctx, e.Cmd[0], e.Cmd[1:]...)
	c.Stdout = &stdout
	c.Stderr = &stderr

	err := c.Run()

	res.SetStdOut(stdout.Bytes())
	res.SetStdErr(stderr.Bytes())

	var exitErr *osexec.ExitError

	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		res.SetReturnCode(exitErr.ExitCode())
	default:
		res.SetReturnCode(-1)
		res.SetStdErr([]byte(err.Error()))
	}

	return res
}

// Stdout type alias for a string is an artificial type
// to allow for custom marshaling of stdout output which can be either
// a valid or non valid JSON.
type Stdout string

// MarshalJSON implements a custom marshaller for a custom Stdout type.
func (s Stdout) MarshalJSON() ([]byte, error) {
	switch {
	case json.Valid([]byte(s)):
		return []byte(s), nil
	default:
		return json.Marshal(string(s))
	}
}

// ExecResult represents a result of a command execution.
type ExecResult struct {
	Cmd        []string `json:"cmd"`
	ReturnCode int      `json:"return-code"`
	Stdout     Stdout   `json:"stdout"`
	Stderr     string   `json:"stderr"`
}

func NewExecResult(op *ExecCmd) *ExecResult {
	return &ExecResult{Cmd: op.GetCmd()}
}

func (e *ExecResult) String() string {
	var s strings.Builder

	s.WriteString(fmt.Sprintf("Cmd: %s\nReturnCode: %d", e.GetCmdString(), e.GetReturnCode()))

	if e.Stdout != "" {
		s.WriteString(fmt.Sprintf("\nStdout: %q", e.Stdout))
	}
	if e.Stderr != "" {
		s.WriteString(fmt.Sprintf("\nStderr: %q", e.Stderr))
	}

	return s.String()
}

// Dump dumps execution result as a string in one of the provided formats.
func (e *ExecResult) Dump(format string) (string, error) {
	switch format {
	case constants.FormatJSON:
		byteData, err := json.MarshalIndent(e, "", "  ")
		if err != nil {
			return "", err
		}
		return string(byteData), nil
	case constants.FormatPlain:
		return e.String(), nil
	}
	return "", fmt.Errorf("unsupported output format %q", format)
}

// GetCmdString returns the command line given to the shell.
func (e *ExecResult) GetCmdString() string {
	if len(e.Cmd) == 0 {
		return ""
	}
	return e.Cmd[len(e.Cmd)-1]
}

func (e *ExecResult) GetReturnCode() int {
	return e.ReturnCode
}

func (e *ExecResult) SetReturnCode(rc int) {
	e.ReturnCode = rc
}

func (e *ExecResult) SetStdOut(data []byte) {
	e.Stdout = Stdout(data)
}

func (e *ExecResult) SetStdErr(data []byte) {
	e.Stderr = string(data)
}

// Log writes the result to the log, using the error level for
// non zero return codes.
func (e *ExecResult) Log(name string) {
	fields := log.Fields{
		"hook":    name,
		"command": e.GetCmdString(),
		"rc":      e.GetReturnCode(),
	}

	if e.Stdout != "" {
		fields["stdout"] = strings.TrimSpace(string(e.Stdout))
	}

	if log.IsLevelEnabled(log.DebugLevel) {
		if d, err := e.Dump(constants.FormatJSON); err == nil {
			log.Debugf("%s hook result:\n%s", name, d)
		}
	}

	if e.GetReturnCode() != 0 {
		if e.Stderr != "" {
			fields["stderr"] = strings.TrimSpace(e.Stderr)
		}
		log.WithFields(fields).Error("Hook command failed")
		return
	}

	log.WithFields(fields).Info("Executed hook command")
}

// RunHook parses and runs cmd, logging its outcome. The result never
// influences the caller, an empty cmd is a no-op.
func RunHook(ctx context.Context, name, cmd string) *ExecResult {
	if strings.TrimSpace(cmd) == "" {
		return nil
	}

	c, err := NewExecCmdFromString(cmd)
	if err != nil {
		log.Errorf("Failed to parse %s hook %q: %v", name, cmd, err)
		return nil
	}

	res := c.Run(ctx)
	res.Log(name)

	return res
}
