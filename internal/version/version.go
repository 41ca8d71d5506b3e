// Package version reads the project's version manifest used in artifact names.
package version

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ManifestName is the version manifest expected in the project root.
const ManifestName = "version.json"

type manifest struct {
	FullVersion string `json:"FullVersion"`
}

// Load returns the full version string declared in <projectDir>/version.json.
func Load(projectDir string) (string, error) {
	path := filepath.Join(projectDir, ManifestName)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read version manifest %s: %w", path, err)
	}

	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return "", fmt.Errorf("parse version manifest %s: %w", path, err)
	}
	if strings.TrimSpace(m.FullVersion) == "" {
		return "", fmt.Errorf("version manifest %s declares no FullVersion", path)
	}
	return m.FullVersion, nil
}
