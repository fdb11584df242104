package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

const validJSON = `{
	"name": "classic",
	"description": "Classic 4x4 board",
	"board_size": 4,
	"max_agents": 4,
	"max_traps_per_cell": 4,
	"error_display_ms": 2000
}`

const validYAML = `name: quick
description: Two agents on a small board
board_size: 3
max_agents: 2
max_traps_per_cell: 2
error_display_ms: 1500
`

func TestValidateConfig_ValidConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "classic.json", validJSON)

	result := validateConfig(path)
	if !result.Valid {
		t.Errorf("Expected valid config, but got errors: %v", result.Errors)
	}
	if result.File != "classic.json" {
		t.Errorf("Expected file name classic.json, got %s", result.File)
	}
	if result.ConfigID != "classic" {
		t.Errorf("Expected config ID classic, got %s", result.ConfigID)
	}
	if !contains(strings.Join(result.Errors, "\n"), "4x4 board, 4 agents on 16 cells") {
		t.Errorf("Expected board summary, got %v", result.Errors)
	}
}

func TestValidateConfig_ValidYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "quick.yaml", validYAML)

	result := validateConfig(path)
	if !result.Valid {
		t.Errorf("Expected valid YAML config, got errors: %v", result.Errors)
	}
	if !contains(strings.Join(result.Errors, "\n"), "Up to 18 traps (2 per cell)") {
		t.Errorf("Expected trap summary, got %v", result.Errors)
	}
}

func TestValidateConfig_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "broken.json", `{"name": "test", invalid json}`)

	result := validateConfig(path)
	if result.Valid {
		t.Error("Expected invalid config for malformed JSON")
	}
	if len(result.Errors) == 0 || !contains(result.Errors[0], "Invalid format") {
		t.Errorf("Expected format error, got %v", result.Errors)
	}
}

func TestValidateConfig_MissingFile(t *testing.T) {
	result := validateConfig("/non/existent/file.json")
	if result.Valid {
		t.Error("Expected invalid result for missing file")
	}
	if len(result.Errors) == 0 || !contains(result.Errors[0], "Failed to read file") {
		t.Errorf("Expected read error, got %v", result.Errors)
	}
}

func TestValidateConfig_Limits(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "missing name",
			content: `{"description": "d", "board_size": 4, "max_agents": 4, "max_traps_per_cell": 4, "error_display_ms": 2000}`,
			want:    "name is required",
		},
		{
			name:    "board too small",
			content: `{"name": "n", "description": "d", "board_size": 1, "max_agents": 1, "max_traps_per_cell": 4, "error_display_ms": 2000}`,
			want:    "board_size must be between",
		},
		{
			name:    "more agents than cells",
			content: `{"name": "n", "description": "d", "board_size": 2, "max_agents": 5, "max_traps_per_cell": 4, "error_display_ms": 2000}`,
			want:    "max_agents must be between 1 and 4",
		},
		{
			name:    "no traps allowed",
			content: `{"name": "n", "description": "d", "board_size": 4, "max_agents": 4, "max_traps_per_cell": 0, "error_display_ms": 2000}`,
			want:    "max_traps_per_cell must be between",
		},
		{
			name:    "error display too short",
			content: `{"name": "n", "description": "d", "board_size": 4, "max_agents": 4, "max_traps_per_cell": 4, "error_display_ms": 10}`,
			want:    "error_display_ms must be between",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), "rules.json", tt.content)
			result := validateConfig(path)
			if result.Valid {
				t.Fatal("Expected invalid config")
			}
			if !contains(result.Errors[0], tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, result.Errors)
			}
		})
	}
}

func TestValidateConfig_WideBoard(t *testing.T) {
	content := `{"name": "big", "description": "d", "board_size": 8, "max_agents": 4, "max_traps_per_cell": 4, "error_display_ms": 2000}`
	path := writeConfig(t, t.TempDir(), "big.json", content)

	result := validateConfig(path)
	if !result.Valid {
		t.Fatalf("Expected a wide board to stay valid, got %v", result.Errors)
	}
	if !contains(strings.Join(result.Errors, "\n"), "Terminal client needs") {
		t.Errorf("Expected terminal width warning, got %v", result.Errors)
	}
}

func TestValidateDir_ShadowedConfig(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "quick.yaml", validYAML)
	writeConfig(t, dir, "quick.json", validJSON)
	writeConfig(t, dir, "classic.yml", validYAML)
	writeConfig(t, dir, "notes.txt", "ignored")

	results, err := validateDir(dir)
	if err != nil {
		t.Fatalf("validateDir failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}

	byFile := make(map[string]ValidationResult)
	for _, r := range results {
		byFile[r.File] = r
	}
	if !byFile["quick.json"].Valid || !byFile["classic.yml"].Valid {
		t.Errorf("Expected quick.json and classic.yml to be valid: %+v", results)
	}
	shadowed := byFile["quick.yaml"]
	if shadowed.Valid {
		t.Error("Expected quick.yaml to be shadowed by quick.json")
	}
	if len(shadowed.Errors) == 0 || !contains(shadowed.Errors[0], "shadowed by quick.json") {
		t.Errorf("Unexpected errors: %v", shadowed.Errors)
	}
	if results[0].File != "classic.yml" {
		t.Errorf("Expected results sorted by file, got %s first", results[0].File)
	}
}

func contains(s, substr string) bool {
	return strings.Contains(s, substr)
}
