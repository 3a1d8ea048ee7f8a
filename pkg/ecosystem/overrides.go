package ecosystem

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/sirupsen/logrus"
)

// Overrides maps package names to a local path or an explicit version.
// Values that are not strings, e.g. a false used to opt out of a default override, are dropped before application.
type Overrides map[string]any

// Sanitize drops all non-string values and rewrites values naming an existing local directory to a "file:" reference
// of its absolute path. Relative paths are resolved against base.
// The returned names are sorted and determine the order in which new manifest entries are written.
func (o Overrides) Sanitize(base string) (map[string]string, []string, error) {
	sanitized := make(map[string]string, len(o))
	for name, value := range o {
		str, ok := value.(string)
		if !ok {
			continue
		}
		local, err := isLocalOverride(str, base)
		if err != nil {
			return nil, nil, err
		}
		if local {
			str = "file:" + resolvePath(str, base)
		}
		sanitized[name] = str
	}
	return sanitized, sortedKeys(sanitized), nil
}

// isLocalOverride reports whether v is a path to an existing directory.
// Scoped package names ("@scope/name") and values without a path separator never are.
func isLocalOverride(v, base string) (bool, error) {
	if !strings.Contains(v, "/") || strings.HasPrefix(v, "@") {
		return false, nil
	}
	info, err := os.Lstat(resolvePath(v, base))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}

func resolvePath(p, base string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(base, p)
}

// A PinRule replaces an exact package manager version that is known to be broken for overrides with a fixed one.
type PinRule struct {
	Manager string // Package manager binary, e.g. "pnpm"
	Version string // The exact version the rule triggers on
	Fixed   string // The version to pin instead
}

// DefaultPinRules are applied by an [OverrideEngine] without explicit rules.
var DefaultPinRules = []PinRule{
	// pnpm 7.18.0 mishandles absolute path overrides
	{Manager: "pnpm", Version: "7.18.0", Fixed: "7.18.1"},
}

// match returns whether the rule applies to manager at version
func (r PinRule) match(manager, version string) bool {
	if r.Manager != manager {
		return false
	}
	inUse, err := semver.NewVersion(version)
	if err != nil {
		return false
	}
	broken, err := semver.NewVersion(r.Version)
	if err != nil {
		return false
	}
	return inUse.Equal(broken)
}

// An OverrideEngine rewrites a project's manifest so that packages resolve to overridden sources, then reinstalls.
type OverrideEngine struct {
	Runner Runner
	Env    []string
	Log    *logrus.Entry

	Base     string    // Directory relative override paths are resolved against
	PinRules []PinRule // Package manager pin fixes, DefaultPinRules if nil
}

// Apply merges overrides into the manifest of the project in dir according to the conventions of its package manager,
// persists it and reinstalls the project's dependencies.
func (e *OverrideEngine) Apply(ctx context.Context, dir string, manifest *Manifest, overrides Overrides) error {
	values, names, err := overrides.Sanitize(e.Base)
	if err != nil {
		return err
	}

	// Remove the current install so a stale one cannot mask the overrides
	if _, err := e.Runner.Run(ctx, dir, e.Env, "git clean -fdxq"); err != nil {
		return err
	}

	agent, err := DetectAgent(dir)
	if err != nil {
		return &UnsupportedManagerError{Dir: dir}
	}
	pm := agent.Manager()

	if err := e.fixManagerPin(ctx, dir, manifest, pm); err != nil {
		return err
	}

	switch pm {
	case "pnpm":
		// Overrides only take effect if the package is also a direct dependency
		if err := manifest.Merge(values, names, "devDependencies"); err != nil {
			return err
		}
		if err := manifest.Merge(values, names, "pnpm", "overrides"); err != nil {
			return err
		}
	case "yarn":
		if err := manifest.Merge(values, names, "resolutions"); err != nil {
			return err
		}
	case "npm":
		if err := manifest.Merge(values, names, "overrides"); err != nil {
			return err
		}
		// npm refuses to override direct dependencies, so patch them directly
		for _, name := range names {
			for _, block := range []string{"dependencies", "devDependencies"} {
				if _, ok := manifest.Lookup(block, name); ok {
					if err := manifest.Set(values[name], block, name); err != nil {
						return err
					}
				}
			}
		}
	default:
		return &UnsupportedManagerError{Manager: pm, Dir: dir}
	}

	if err := manifest.Save(); err != nil {
		return errors.Join(fmt.Errorf("failed to write overridden manifest %s", manifest.Path), err)
	}
	e.Log.Infof("Applied %d overrides to %s using %s", len(names), manifest.Path, pm)
	for _, name := range names {
		e.Log.Debugf("Override %s -> %s", name, values[name])
	}

	install, err := Command(agent, VerbOverrideInstall)
	if err != nil {
		return err
	}
	_, err = e.Runner.Run(ctx, dir, e.Env, install)
	return err
}

// fixManagerPin pins a fixed package manager version if the one in use matches a pin rule
func (e *OverrideEngine) fixManagerPin(ctx context.Context, dir string, manifest *Manifest, pm string) error {
	rules := e.PinRules
	if rules == nil {
		rules = DefaultPinRules
	}

	var candidates []PinRule
	for _, rule := range rules {
		if rule.Manager == pm {
			candidates = append(candidates, rule)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	version, err := e.managerVersion(ctx, dir, manifest, pm)
	if err != nil {
		return err
	}

	for _, rule := range candidates {
		if !rule.match(pm, version) {
			continue
		}
		e.Log.Warnf("Detected %s@%s used in %s, changing packageManager and engines.%s to enforce use of %s@%s", pm, version, manifest.Name(), pm, pm, rule.Fixed)
		if err := manifest.Set(pm+"@"+rule.Fixed, "packageManager"); err != nil {
			return err
		}
		if err := manifest.Set(rule.Fixed, "engines", pm); err != nil {
			return err
		}
		// A local package manager dependency would be preferred over the pinned one
		if _, ok := manifest.Lookup("devDependencies", pm); ok {
			if err := manifest.Set(rule.Fixed, "devDependencies", pm); err != nil {
				return err
			}
		}
		return nil
	}
	return nil
}

// managerVersion returns the version of pm the project uses, asking the binary if the manifest does not pin one
func (e *OverrideEngine) managerVersion(ctx context.Context, dir string, manifest *Manifest, pm string) (string, error) {
	if pin := manifest.PackageManager(); strings.HasPrefix(pin, pm+"@") {
		return strings.TrimPrefix(pin, pm+"@"), nil
	}
	out, err := e.Runner.Run(ctx, dir, e.Env, pm+" --version")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
