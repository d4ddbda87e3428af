package packages

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/silkedit/silkedit-helper/internal/silk"
)

const (
	manifestFilename = "package.json"
	keymapFilename   = "keymap.yml"
	menuFilename     = "menu.yml"
	toolbarFilename  = "toolbar.yml"
	configFilename   = "config.yml"
)

// Manifest is the subset of package.json the helper reads.
type Manifest struct {
	Name    string            `json:"name"`
	Version string            `json:"version"`
	Main    string            `json:"main"`
	Engines map[string]string `json:"engines"`
}

// readManifest parses dir/package.json and returns it with its raw bytes.
func readManifest(dir string) (*Manifest, []byte, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestFilename))
	if err != nil {
		return nil, nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, nil, fmt.Errorf("parse manifest: %w", err)
	}
	if strings.Contains(m.Main, "..") {
		return nil, nil, fmt.Errorf("main contains path traversal: %s", m.Main)
	}
	return &m, data, nil
}

// checkEngine reports whether engine satisfies the manifest's engines.silkedit constraint.
// A manifest without a constraint accepts any engine.
func (m *Manifest) checkEngine(engine *semver.Version) error {
	raw := strings.TrimSpace(m.Engines["silkedit"])
	if raw == "" || engine == nil {
		return nil
	}
	c, err := semver.NewConstraint(raw)
	if err != nil {
		return fmt.Errorf("invalid engines.silkedit %q: %w", raw, err)
	}
	if !c.Check(engine) {
		return fmt.Errorf("requires silkedit %s, running %s", raw, engine)
	}
	return nil
}

// configFile is the layout of a package's config.yml.
type configFile struct {
	Config map[string]silk.ConfigDefinition `yaml:"config"`
}

func readConfigFile(path string) (map[string]silk.ConfigDefinition, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	var doc configFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, data, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc.Config, data, nil
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
