package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/cwygoda/fetchdata/internal/domain"
)

// Manifest is the parsed dataset configuration.
type Manifest struct {
	DestinationDir string          `toml:"destination_dir" json:"destination_dir"`
	Entries        []ManifestEntry `toml:"entries" json:"entries"`
}

// ManifestEntry is one {name, url} pair.
type ManifestEntry struct {
	Name string `toml:"name" json:"name"`
	URL  string `toml:"url" json:"url"`
}

// jsonManifest also accepts the legacy HCP_DIR / DATA_FILES keys.
type jsonManifest struct {
	Manifest
	LegacyDir     string          `json:"HCP_DIR"`
	LegacyEntries []ManifestEntry `json:"DATA_FILES"`
}

// LoadManifest reads and validates the manifest at path. The format is
// chosen by extension: .json is JSON, anything else TOML.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.ConfigError{Source: path, Err: err}
	}

	var m Manifest
	if strings.EqualFold(filepath.Ext(path), ".json") {
		var jm jsonManifest
		if err := json.Unmarshal(data, &jm); err != nil {
			return nil, &domain.ConfigError{Source: path, Err: err}
		}
		m = jm.Manifest
		if m.DestinationDir == "" {
			m.DestinationDir = jm.LegacyDir
		}
		if len(m.Entries) == 0 {
			m.Entries = jm.LegacyEntries
		}
	} else {
		md, err := toml.Decode(string(data), &m)
		if err != nil {
			return nil, &domain.ConfigError{Source: path, Err: err}
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, &domain.ConfigError{Source: path, Err: fmt.Errorf("unknown key %q", undecoded[0].String())}
		}
	}

	if err := m.validate(); err != nil {
		return nil, &domain.ConfigError{Source: path, Err: err}
	}

	dir, err := ExpandPath(m.DestinationDir)
	if err != nil {
		return nil, &domain.ConfigError{Source: path, Err: err}
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(filepath.Dir(path), dir)
	}
	m.DestinationDir = dir

	return &m, nil
}

func (m *Manifest) validate() error {
	if m.DestinationDir == "" {
		return errors.New("destination_dir is required")
	}
	if len(m.Entries) == 0 {
		return errors.New("entries must not be empty")
	}
	seen := make(map[string]bool, len(m.Entries))
	for i, e := range m.Entries {
		switch {
		case e.Name == "":
			return fmt.Errorf("entry %d: name is required", i)
		case e.URL == "":
			return fmt.Errorf("entry %s: url is required", e.Name)
		case strings.ContainsAny(e.Name, `/\`) || e.Name == "." || e.Name == "..":
			return fmt.Errorf("entry %s: name must be a plain file name", e.Name)
		case seen[e.Name]:
			return fmt.Errorf("entry %s: duplicate name", e.Name)
		}
		seen[e.Name] = true
	}
	return nil
}

// Request builds the batch request. A non-empty dest overrides the
// manifest's destination_dir.
func (m *Manifest) Request(dest string, force bool) (domain.BatchRequest, error) {
	dir := m.DestinationDir
	if dest != "" {
		expanded, err := ExpandPath(dest)
		if err != nil {
			return domain.BatchRequest{}, &domain.ConfigError{Source: "dest", Err: err}
		}
		dir = expanded
	}

	entries := make([]domain.DatasetEntry, len(m.Entries))
	for i, e := range m.Entries {
		entries[i] = domain.NewEntry(e.Name, e.URL)
	}
	return domain.BatchRequest{
		Entries:        entries,
		DestinationDir: dir,
		Force:          force,
	}, nil
}

// ExpandPath replaces a leading ~ with the user's home directory.
func ExpandPath(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
