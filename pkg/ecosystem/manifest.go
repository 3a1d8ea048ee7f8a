package ecosystem

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ManifestFile is the name of a project's dependency manifest
const ManifestFile = "package.json"

// A Manifest is a parsed package.json.
// Edits keep the key order of the original document, new keys are appended to their object.
type Manifest struct {
	Path string // Where the manifest is persisted

	data []byte
}

// LoadManifest reads the package.json in dir
func LoadManifest(dir string) (*Manifest, error) {
	path := filepath.Join(dir, ManifestFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseManifest(path, data)
}

// ParseManifest parses data as the manifest persisted at path
func ParseManifest(path string, data []byte) (*Manifest, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%s is not valid JSON", path)
	}
	if !gjson.ParseBytes(data).IsObject() {
		return nil, fmt.Errorf("%s does not contain a JSON object", path)
	}
	return &Manifest{Path: path, data: data}, nil
}

// manifestPath joins the keys into a gjson path, escaping characters like the dots and slashes found in package names
func manifestPath(keys ...string) string {
	escaped := make([]string, len(keys))
	for i, key := range keys {
		escaped[i] = gjson.Escape(key)
	}
	return strings.Join(escaped, ".")
}

func (m *Manifest) get(keys ...string) gjson.Result {
	return gjson.GetBytes(m.data, manifestPath(keys...))
}

// Name returns the package name
func (m *Manifest) Name() string {
	return m.get("name").String()
}

// PackageManager returns the packageManager pin, e.g. "pnpm@8.6.0", or an empty string
func (m *Manifest) PackageManager() string {
	return m.get("packageManager").String()
}

// HasScript reports whether the manifest defines the given script
func (m *Manifest) HasScript(name string) bool {
	return m.get("scripts", name).Exists()
}

// Lookup returns the string stored at the given keys, e.g. Lookup("devDependencies", "vite")
func (m *Manifest) Lookup(keys ...string) (string, bool) {
	res := m.get(keys...)
	if !res.Exists() || res.Type != gjson.String {
		return "", false
	}
	return res.String(), true
}

// Has reports whether any value exists at the given keys
func (m *Manifest) Has(keys ...string) bool {
	return m.get(keys...).Exists()
}

// Set stores value at the given keys, creating missing objects on the way
func (m *Manifest) Set(value string, keys ...string) error {
	data, err := sjson.SetBytes(m.data, manifestPath(keys...), value)
	if err != nil {
		return errors.Join(fmt.Errorf("failed to set %s in %s", strings.Join(keys, "."), m.Path), err)
	}
	m.data = data
	return nil
}

// Merge sets every entry of values inside the object at the given keys, in the order of names.
// Existing entries keep their position, new entries are appended.
func (m *Manifest) Merge(values map[string]string, names []string, keys ...string) error {
	if len(names) == 0 && !m.Has(keys...) {
		// Mirror an empty object spread: the block exists afterwards
		data, err := sjson.SetRawBytes(m.data, manifestPath(keys...), []byte("{}"))
		if err != nil {
			return err
		}
		m.data = data
		return nil
	}
	for _, name := range names {
		path := append(append([]string{}, keys...), name)
		if err := m.Set(values[name], path...); err != nil {
			return err
		}
	}
	return nil
}

// Bytes returns the manifest indented by two spaces
func (m *Manifest) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	// Indent keeps trailing whitespace of its input
	if err := json.Indent(&buf, bytes.TrimSpace(m.data), "", "  "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// Save writes the manifest back to its path
func (m *Manifest) Save() error {
	data, err := m.Bytes()
	if err != nil {
		return err
	}
	return os.WriteFile(m.Path, data, 0644)
}
