// Command validate provides a small CLI that validates rules configuration
// files (JSON or YAML) in a configs directory, ../configs by default. It checks:
//   - JSON/YAML structure
//   - Required fields and limits (board size, agents, traps per cell, error display time)
//   - Config IDs shadowed by another file with the same name
//   - Whether the board fits an 80 column terminal
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wricardo/mcp-training/trapgrid/game/engine"
	"github.com/wricardo/mcp-training/trapgrid/ui/terminal"
)

const terminalColumns = 80

// Lookup order used by the config manager
var extensions = []string{".json", ".yaml", ".yml"}

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Errors contains informational messages; otherwise it
// accumulates the validation errors that were found.
type ValidationResult struct {
	File     string
	ConfigID string
	Valid    bool
	Errors   []string
}

// validateConfig loads and validates a single rules file
func validateConfig(filePath string) ValidationResult {
	result := ValidationResult{
		File:     filepath.Base(filePath),
		ConfigID: strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath)),
		Valid:    true,
		Errors:   []string{},
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Failed to read file: %v", err))
		return result
	}

	rules, err := engine.ParseRules(data, filePath)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Invalid format: %v", err))
		return result
	}

	if err := engine.ValidateRules(rules); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, strings.TrimPrefix(err.Error(), "config validation: "))
		return result
	}

	cells := rules.BoardSize * rules.BoardSize
	result.Errors = append(result.Errors,
		fmt.Sprintf("✓ %dx%d board, %d agents on %d cells", rules.BoardSize, rules.BoardSize, rules.MaxAgents, cells),
		fmt.Sprintf("✓ Up to %d traps (%d per cell)", cells*rules.MaxTrapsPerCell, rules.MaxTrapsPerCell),
	)

	if width := terminal.RequiredWidth(rules.BoardSize); width > terminalColumns {
		result.Errors = append(result.Errors,
			fmt.Sprintf("⚠️  Terminal client needs %d columns for this board", width))
	}

	return result
}

// validateDir validates every rules file in dir. A file whose config ID is
// already taken by an earlier extension in lookup order is invalid, since
// sessions can never load it.
func validateDir(dir string) ([]ValidationResult, error) {
	var files []string
	for _, ext := range extensions {
		matches, err := filepath.Glob(filepath.Join(dir, "*"+ext))
		if err != nil {
			return nil, fmt.Errorf("error finding config files: %w", err)
		}
		files = append(files, matches...)
	}

	results := make([]ValidationResult, 0, len(files))
	seen := make(map[string]string)
	for _, file := range files {
		result := validateConfig(file)
		if owner, ok := seen[result.ConfigID]; ok {
			result.Valid = false
			result.Errors = append([]string{fmt.Sprintf("Config ID %q is shadowed by %s", result.ConfigID, owner)}, result.Errors...)
		} else {
			seen[result.ConfigID] = result.File
		}
		results = append(results, result)
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].File < results[j].File })
	return results, nil
}

// main validates each rules file, printing a concise report and exiting
// with non-zero status if any are invalid.
func main() {
	configDir := "../configs"
	if len(os.Args) > 1 {
		configDir = os.Args[1]
	}

	results, err := validateDir(configDir)
	if err != nil {
		fmt.Printf("%v\n", err)
		os.Exit(1)
	}

	allValid := true
	for _, result := range results {
		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Println("✅ VALID")
			for _, info := range result.Errors {
				fmt.Println("  " + info)
			}
		} else {
			fmt.Println("❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				if !strings.HasPrefix(err, "✓") {
					fmt.Println("  ❌ " + err)
				}
			}
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Println("✅ All configurations are valid!")
	} else {
		fmt.Println("❌ Some configurations have errors")
		os.Exit(1)
	}
}
