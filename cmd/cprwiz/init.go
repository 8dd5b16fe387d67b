package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/cprwiz/internal/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Set up cprwiz for a project",
	Long: `Prepare a directory for use with cprwiz.

This command:
  - Writes a commented .cprwiz.yaml template (unless one exists)
  - Checks that an API key is available for the configured provider
  - Creates and migrates the session database

The directory argument is optional and defaults to the current directory.

Examples:
  cprwiz init              # Initialize current directory
  cprwiz init ./team-cprs  # Initialize specific directory
  cprwiz init --force      # Overwrite an existing .cprwiz.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing .cprwiz.yaml")
}

func runInit(cmd *cobra.Command, args []string) error {
	targetDir := "."
	if len(args) > 0 {
		targetDir = args[0]
	}
	absPath, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("resolving absolute path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", absPath, err)
	}

	fmt.Printf("Initializing cprwiz in %s...\n\n", absPath)

	created, err := createProjectConfig(absPath, initForce)
	if err != nil {
		return fmt.Errorf("creating project config: %w", err)
	}
	if created {
		printStatus("✓", "Created "+config.ProjectConfigName+" template", color.FgGreen)
	} else {
		printStatus("•", config.ProjectConfigName+" already exists (use --force to overwrite)", color.FgHiBlack)
	}

	cfg, err := config.LoadFromPath(filepath.Join(absPath, config.ProjectConfigName))
	if err != nil {
		printStatus("✗", "Configuration is invalid", color.FgRed)
		return err
	}

	checkAPIKey(cfg)

	db, err := openStore(cfg)
	if err != nil {
		printStatus("✗", "Database unavailable", color.FgRed)
		return err
	}
	defer db.Close()
	printStatus("✓", "Database ready at "+db.Path(), color.FgGreen)

	fmt.Println()
	fmt.Println("Next: cprwiz wizard --owner <your-id>   or   cprwiz serve")
	return nil
}

// checkAPIKey reports whether the configured provider has credentials.
func checkAPIKey(cfg *config.Config) {
	provider := cfg.LLM.Provider
	if !config.NeedsAPIKey(provider) {
		printStatus("✓", "Provider "+provider+" needs no API key", color.FgGreen)
		return
	}
	key, err := config.GetAPIKey(cfg)
	if err != nil {
		printStatus("⚠", config.KeyEnvVar(provider)+" not set (you can set it later)", color.FgYellow)
		return
	}
	if err := config.ValidateAPIKey(provider, key); err != nil {
		printStatus("⚠", fmt.Sprintf("API key looks wrong: %v", err), color.FgYellow)
		return
	}
	source := config.GetAPIKeySource(cfg)
	printStatus("✓", fmt.Sprintf("API key %s found (%s)", config.MaskAPIKey(key), source), color.FgGreen)
}

// createProjectConfig writes the .cprwiz.yaml template. It reports whether
// a file was written.
func createProjectConfig(dir string, force bool) (bool, error) {
	configPath := filepath.Join(dir, config.ProjectConfigName)
	if _, err := os.Stat(configPath); err == nil && !force {
		return false, nil
	}

	template := `# cprwiz project configuration
# This file overrides defaults from ~/.config/cprwiz/config.yaml

# llm:
#   provider: openai        # openai, anthropic, bedrock or offline
#   model: gpt-4o-mini      # empty uses the provider default
#   call_timeout: 30s

# validation:
#   example_threshold: 3    # offer an example from this failed attempt on
#   max_parallel: 4         # concurrent checks for Results items
#   banned_terms: [success, excellence, transform, optimize]
#   vague_verbs: [improve, enhance, support, optimize, leverage]

# server:
#   addr: ":8080"

# storage:
#   driver: sqlite          # sqlite (pure Go) or sqlite3 (cgo)

# drafts:
#   backend: memory         # memory or file
`
	if err := os.WriteFile(configPath, []byte(template), 0644); err != nil {
		return false, err
	}
	return true, nil
}
