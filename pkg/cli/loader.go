package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-canvas/pkg/models"
)

// LoadGraph reads a query graph from a .json, .yaml or .yml file, or from
// stdin when path is "-" (parsed as JSON).
func LoadGraph(path string, stdin io.Reader) (models.QueryGraph, error) {
	var graph models.QueryGraph
	if err := decodeFile(path, stdin, &graph); err != nil {
		return graph, err
	}
	return graph, nil
}

// LoadSchema reads a schema as returned by GET /api/connections/{id}/schema.
// The ApiResponse envelope is unwrapped when present.
func LoadSchema(path string, stdin io.Reader) (*models.Schema, error) {
	var envelope struct {
		Data *models.Schema `json:"data" yaml:"data"`
		models.Schema `yaml:",inline"`
	}
	if err := decodeFile(path, stdin, &envelope); err != nil {
		return nil, err
	}
	if envelope.Data != nil {
		return envelope.Data, nil
	}
	schema := envelope.Schema
	return &schema, nil
}

func decodeFile(path string, stdin io.Reader, dst any) error {
	data, err := readInput(path, stdin)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, dst); err != nil {
			return fmt.Errorf("failed to parse YAML %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, dst); err != nil {
			return fmt.Errorf("failed to parse JSON %s: %w", path, err)
		}
	}
	return nil
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("no input file given")
	}
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
