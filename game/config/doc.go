// Package config provides rules configuration management for the trap grid game.
//
// The config package handles:
//   - Loading rules from JSON or YAML files
//   - Validation through engine.ValidateRules
//   - Default configuration management
//   - Configuration discovery and listing
//
// Configuration Format:
//
// Each file in the configs directory defines one ruleset:
//
//	name: quick
//	description: Two agents on a 4x4 board
//	board_size: 4
//	max_agents: 2
//	max_traps_per_cell: 2
//	error_display_ms: 2000
//
// The config ID is the file name without extension. The default is "classic"
// when present, otherwise the first valid file, otherwise the built-in
// engine.DefaultRules.
//
// Usage:
//
//	manager, err := config.NewManager("configs")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	rules, err := manager.LoadConfig("quick")
//	configs, err := manager.ListConfigs()
package config
