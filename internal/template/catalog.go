// Copyright Contributors to the Orchestrator project

package template

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"
)

// LoadCatalog reads the docs tool catalog document at path. A missing file is not an error: it
// yields an empty catalog, and the rendered prompt simply reports a tool count of zero.
func LoadCatalog(path string) ([]Tool, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading tool catalog %s: %w", path, err)
	}

	var tools []Tool
	if err := yaml.Unmarshal(raw, &tools); err != nil {
		return nil, fmt.Errorf("parsing tool catalog %s: %w", path, err)
	}
	return tools, nil
}
