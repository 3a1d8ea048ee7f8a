package ecosystem

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// An Agent is a package manager flavour, e.g. "pnpm" or "yarn@berry".
type Agent string

const (
	AgentNpm       Agent = "npm"
	AgentYarn      Agent = "yarn"
	AgentYarnBerry Agent = "yarn@berry"
	AgentPnpm      Agent = "pnpm"
	AgentPnpm6     Agent = "pnpm@6"
	AgentBun       Agent = "bun"
)

// Agents lists every known agent
var Agents = []Agent{AgentNpm, AgentYarn, AgentYarnBerry, AgentPnpm, AgentPnpm6, AgentBun}

// Manager returns the name of the package manager binary of the agent, i.e. the agent without its version suffix
func (a Agent) Manager() string {
	name, _, _ := strings.Cut(string(a), "@")
	return name
}

// Valid reports whether a is one of the known [Agents]
func (a Agent) Valid() bool {
	for _, known := range Agents {
		if a == known {
			return true
		}
	}
	return false
}

// ParseAgent validates name as an agent. An unknown name is a [ConfigurationError].
func ParseAgent(name string) (Agent, error) {
	agent := Agent(name)
	if !agent.Valid() {
		names := make([]string, len(Agents))
		for i, a := range Agents {
			names[i] = string(a)
		}
		return "", configErrorf("invalid agent %s. Allowed values: %s", name, strings.Join(names, ", "))
	}
	return agent, nil
}

// Lockfiles mapped to the agent owning them, checked in order
var lockfiles = []struct {
	name  string
	agent Agent
}{
	{"bun.lockb", AgentBun},
	{"pnpm-lock.yaml", AgentPnpm},
	{"yarn.lock", AgentYarn},
	{"package-lock.json", AgentNpm},
	{"npm-shrinkwrap.json", AgentNpm},
}

// DetectAgent determines the agent used by the project in dir.
// A packageManager field in the project's package.json wins over lockfiles.
func DetectAgent(dir string) (Agent, error) {
	var agent Agent
	for _, lock := range lockfiles {
		if _, err := os.Stat(filepath.Join(dir, lock.name)); err == nil {
			agent = lock.agent
			break
		}
	}

	if manifest, err := LoadManifest(dir); err == nil {
		if pinned, ok := agentFromPin(manifest.PackageManager()); ok {
			agent = pinned
		}
	}

	if agent == "" {
		return "", &DetectionError{Dir: dir}
	}
	return agent, nil
}

// agentFromPin maps a packageManager field such as "yarn@3.6.1" to an agent
func agentFromPin(pin string) (Agent, bool) {
	name, version, found := strings.Cut(pin, "@")
	if !found || name == "" {
		return "", false
	}
	major, _ := strconv.Atoi(strings.SplitN(version, ".", 2)[0])
	switch {
	case name == "yarn" && major > 1:
		return AgentYarnBerry, true
	case name == "pnpm" && major < 7:
		return AgentPnpm6, true
	}
	agent := Agent(name)
	return agent, agent.Valid()
}

// A Verb names a package manager operation
type Verb int

const (
	VerbFrozen          Verb = iota // Install exactly what the lockfile states
	VerbRun                         // Run a package.json script, args[0] is the script name
	VerbOverrideInstall             // Install after overrides were applied, preferring the lockfile with relaxed peer dependency checks
)

// Command returns the shell command performing verb with agent.
// VerbOverrideInstall is only defined for agents the override engine supports.
func Command(agent Agent, verb Verb, args ...string) (string, error) {
	quoted := make([]string, len(args))
	for i, arg := range args {
		quoted[i] = shellQuote(arg)
	}

	switch verb {
	case VerbFrozen:
		switch agent {
		case AgentNpm:
			return "npm ci", nil
		case AgentYarn, AgentPnpm, AgentPnpm6, AgentBun:
			return agent.Manager() + " install --frozen-lockfile", nil
		case AgentYarnBerry:
			return "yarn install --immutable", nil
		}
	case VerbRun:
		if len(args) == 0 {
			return "", fmt.Errorf("no script passed to run with %s", agent)
		}
		script := quoted[0]
		rest := quoted[1:]
		if agent == AgentNpm && len(rest) > 0 {
			// npm passes arguments after -- to the script
			rest = append([]string{"--"}, rest...)
		}
		if agent.Valid() {
			return strings.Join(append([]string{agent.Manager(), "run", script}, rest...), " "), nil
		}
	case VerbOverrideInstall:
		switch agent.Manager() {
		case "pnpm":
			return "pnpm install --prefer-frozen-lockfile --strict-peer-dependencies false", nil
		case "yarn":
			return "yarn install", nil
		case "npm":
			return "npm install", nil
		}
		return "", &UnsupportedManagerError{Manager: agent.Manager()}
	}
	return "", &UnsupportedManagerError{Manager: string(agent)}
}
