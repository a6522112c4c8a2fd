package adapter

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
	m "snare.dev/pkg/snare/internal/model"
)

// ManifestVersion is the oracle manifest format this build reads and writes.
const ManifestVersion = 1

// ErrManifestVersion is returned for manifests written by a newer format.
var ErrManifestVersion = errors.New("unsupported manifest version")

// OracleStore loads and saves the fixture oracle manifest.
type OracleStore interface {
	Load(path m.Path) (m.OracleManifest, error)
	Save(path m.Path, manifest m.OracleManifest) error
}

// YAMLOracleStore keeps the manifest as a YAML file.
type YAMLOracleStore struct{}

// NewYAMLOracleStore creates a YAMLOracleStore.
func NewYAMLOracleStore() *YAMLOracleStore {
	return &YAMLOracleStore{}
}

// Load reads the manifest. Entries that fail validation are kept so the
// comparator can report them as missing oracles instead of hiding the unit.
func (s *YAMLOracleStore) Load(path m.Path) (m.OracleManifest, error) {
	data, err := os.ReadFile(string(path))
	if err != nil {
		return m.OracleManifest{}, fmt.Errorf("read oracle manifest: %w", err)
	}

	var manifest m.OracleManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return m.OracleManifest{}, fmt.Errorf("decode oracle manifest %s: %w", path, err)
	}

	if manifest.Version == 0 {
		manifest.Version = ManifestVersion
	}

	if manifest.Version > ManifestVersion {
		return m.OracleManifest{}, fmt.Errorf("%s: version %d: %w", path, manifest.Version, ErrManifestVersion)
	}

	if manifest.Mode != "" {
		mode, err := m.ParseCompareMode(string(manifest.Mode))
		if err != nil {
			return m.OracleManifest{}, fmt.Errorf("%s: %w", path, err)
		}

		manifest.Mode = mode
	}

	fixtures := make(map[string]m.ExpectedOracle, len(manifest.Fixtures))

	for unit, entry := range manifest.Fixtures {
		key := filepath.ToSlash(unit)
		entry.Unit = key

		if err := entry.Validate(); err != nil {
			slog.Warn("Invalid oracle entry", "unit", key, "error", err)
		}

		fixtures[key] = entry
	}

	manifest.Fixtures = fixtures

	return manifest, nil
}

// Save writes the manifest with its keys in sorted order.
func (s *YAMLOracleStore) Save(path m.Path, manifest m.OracleManifest) error {
	if manifest.Version == 0 {
		manifest.Version = ManifestVersion
	}

	var buf bytes.Buffer

	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)

	if err := encoder.Encode(manifest); err != nil {
		return fmt.Errorf("encode oracle manifest: %w", err)
	}

	if err := encoder.Close(); err != nil {
		return fmt.Errorf("encode oracle manifest: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(string(path)), 0o750); err != nil {
		return fmt.Errorf("create manifest directory: %w", err)
	}

	if err := os.WriteFile(string(path), buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write oracle manifest: %w", err)
	}

	return nil
}

var (
	expectedHeader = regexp.MustCompile(`(?i)expected:\s*(.*)$`)
	expectedCount  = regexp.MustCompile(`(\d+)\s*\+?`)
)

// headerLines bounds how far into a fixture the expectation header is searched.
const headerLines = 10

// ParseExpectationHeader reads an "Expected:" comment from the top of a
// fixture. "Expected: 30+ CRITICAL issues" becomes a buggy entry expecting 30
// findings in total; a header without a count becomes a clean entry.
func ParseExpectationHeader(content []byte) (m.ExpectedOracle, bool) {
	scanner := bufio.NewScanner(bytes.NewReader(content))

	for i := 0; i < headerLines && scanner.Scan(); i++ {
		match := expectedHeader.FindStringSubmatch(scanner.Text())
		if match == nil {
			continue
		}

		text := strings.TrimSpace(match[1])

		count := expectedCount.FindStringSubmatch(text)
		if count == nil {
			return m.ExpectedOracle{Classification: m.Clean, Expect: map[string]int{}}, true
		}

		n, err := strconv.Atoi(count[1])
		if err != nil {
			return m.ExpectedOracle{}, false
		}

		return m.ExpectedOracle{
			Classification: m.Buggy,
			Expect:         map[string]int{m.TotalKey: n},
		}, true
	}

	return m.ExpectedOracle{}, false
}
