package ecosystem

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dchest/uniuri"
	"github.com/sirupsen/logrus"
)

// A Session holds the state of one top-level run: where repositories live, which environment commands see,
// how commands are executed and where the core library is checked out.
// It is passed explicitly to every operation instead of living in globals.
type Session struct {
	ID string // Random ID of this run, attached to every log line

	Workspace string // Absolute directory all working copies are placed in
	Root      string // Absolute directory relative override paths are resolved against

	Env    []string // Environment of every command
	Runner Runner   // Executes every command

	Core CoreConfig // The core library under test

	PinRules []PinRule // Package manager pin fixes, DefaultPinRules if nil

	Log *logrus.Entry
}

// NewSession creates a session placing working copies below workspace.
// A nil log mutes all output.
func NewSession(workspace string, core CoreConfig, log *logrus.Logger) (*Session, error) {
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}

	absWorkspace, err := filepath.Abs(workspace)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to resolve workspace %s", workspace), err)
	}
	if err := os.MkdirAll(absWorkspace, 0755); err != nil {
		return nil, errors.Join(fmt.Errorf("failed to create workspace %s", absWorkspace), err)
	}
	root, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	id := uniuri.NewLen(8)
	entry := log.WithField("run-id", id)

	return &Session{
		ID: id,

		Workspace: absWorkspace,
		Root:      root,

		Env:    processEnv(),
		Runner: NewShellRunner(entry.WithField("prefix", "exec")),

		Core: core,

		Log: entry,
	}, nil
}

// logger returns the session's log entry with the given component prefix
func (s *Session) logger(prefix string) *logrus.Entry {
	return s.Log.WithField("prefix", prefix)
}

func (s *Session) synchronizer(log *logrus.Entry) *Synchronizer {
	return &Synchronizer{Runner: s.Runner, Env: s.Env, Log: log}
}

func (s *Session) overrideEngine(log *logrus.Entry) *OverrideEngine {
	return &OverrideEngine{Runner: s.Runner, Env: s.Env, Log: log, Base: s.Root, PinRules: s.PinRules}
}

// CoreDir returns the directory of the core library checkout
func (s *Session) CoreDir() string {
	return filepath.Join(s.Workspace, s.Core.Name)
}

// Bisector returns a bisector operating on the core library checkout
func (s *Session) Bisector() *Bisector {
	return &Bisector{Runner: s.Runner, Env: s.Env, Dir: s.CoreDir(), Log: s.logger("bisect")}
}
