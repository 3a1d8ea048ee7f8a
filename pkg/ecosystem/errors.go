package ecosystem

import (
	"errors"
	"fmt"
	"strings"
)

// A CommandError is returned when a shell command exits with a non-zero status.
// It carries the captured output of the command.
type CommandError struct {
	Command string // The command line that was run
	Dir     string // The directory the command was run in
	Output  string // Combined stdout and stderr of the command
	Err     error  // The underlying exec error
}

func (e *CommandError) Error() string {
	out := strings.TrimSpace(e.Output)
	if out == "" {
		return fmt.Sprintf("command %q in %s failed - %v", e.Command, e.Dir, e.Err)
	}
	return fmt.Sprintf("command %q in %s failed - %v, output: %s", e.Command, e.Dir, e.Err, out)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// A SyncError is returned by [Synchronizer.Sync] when git fails to clone, fetch or checkout a repository.
type SyncError struct {
	Repo string
	Dir  string
	Err  error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("failed to sync %s into %s - %v", e.Repo, e.Dir, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// An UnsupportedManagerError is returned when a package manager is not able to apply overrides,
// or when no package manager could be determined at all. It is never recovered from.
type UnsupportedManagerError struct {
	Manager string
	Dir     string
}

func (e *UnsupportedManagerError) Error() string {
	if e.Manager == "" {
		return fmt.Sprintf("failed to detect package manager in %s", e.Dir)
	}
	if e.Dir == "" {
		return fmt.Sprintf("unsupported package manager %q", e.Manager)
	}
	return fmt.Sprintf("unsupported package manager %q detected in %s", e.Manager, e.Dir)
}

// A DetectionError is returned by [DetectAgent] if neither a packageManager field nor a known lockfile is present.
type DetectionError struct {
	Dir string
}

func (e *DetectionError) Error() string {
	return fmt.Sprintf("failed to detect package manager in %s", e.Dir)
}

// A ConfigurationError represents conflicting or missing options, unknown suites or tasks referencing missing scripts.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string {
	return e.Msg
}

func configErrorf(format string, args ...any) error {
	return &ConfigurationError{Msg: fmt.Sprintf(format, args...)}
}

// IsConfigurationError reports whether err or any error it wraps is a [ConfigurationError].
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}
