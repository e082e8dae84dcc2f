// Package setup provides the bootstrap CLI for standalone deployments:
// initializing the data directory and managing the file-backed role
// assignments consumed by the permission gate.
package setup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/genecurator/gene-validity-server/internal/config"
	"github.com/genecurator/gene-validity-server/internal/domain"
	"github.com/genecurator/gene-validity-server/internal/repository"
)

// CLI provides command-line setup operations for the lite server.
type CLI struct {
	cfg *config.LiteConfig
}

// NewCLI creates a new setup CLI instance.
func NewCLI() *CLI {
	return &CLI{cfg: config.LoadLiteConfig()}
}

// Run executes the setup command based on the provided arguments.
func (c *CLI) Run(args []string) error {
	if len(args) == 0 {
		return c.showHelp()
	}

	switch args[0] {
	case "init":
		return c.initDataDir()
	case "grant":
		return c.grant(args[1:])
	case "status":
		return c.showStatus()
	case "validate":
		return c.validate()
	case "help", "--help", "-h":
		return c.showHelp()
	default:
		fmt.Printf("Unknown command: %s\n\n", args[0])
		return c.showHelp()
	}
}

func (c *CLI) showHelp() error {
	help := `
Gene-Validity Curation Server Setup

Usage:
  server-lite setup <command> [options]

Commands:
  init                  Create the data directory and an empty role file
  grant <actor> <role>  Grant a role (curator, reviewer, admin) to an actor
  status                Show current setup status
  validate              Validate the role assignment file
  help                  Show this help

Environment:
  GENE_VALIDITY_DATA_DIR  Data directory (default ~/.gene-validity)
`
	fmt.Print(help)
	return nil
}

func (c *CLI) rolesPath() string {
	return filepath.Join(c.cfg.DataDir, "roles.json")
}

// initDataDir creates the data directory and, if absent, an empty role
// assignment file. Existing files are never overwritten.
func (c *CLI) initDataDir() error {
	if err := c.cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	fmt.Printf("Data directory ready: %s\n", c.cfg.DataDir)

	path := c.rolesPath()
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("Role file already exists: %s\n", path)
		return nil
	}
	if err := os.WriteFile(path, []byte("{}\n"), 0o600); err != nil {
		return fmt.Errorf("writing role file: %w", err)
	}
	fmt.Printf("Created empty role file: %s\n", path)
	fmt.Println("Grant roles with: server-lite setup grant <actor> <role>")
	return nil
}

// grant adds a role to an actor in the role file, creating the file if
// needed.
func (c *CLI) grant(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: setup grant <actor> <role>")
	}
	actorID, role := args[0], domain.Role(args[1])
	if !role.IsValid() {
		return fmt.Errorf("unknown role %q (expected curator, reviewer, or admin)", args[1])
	}

	if err := c.cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	assignments, err := c.readAssignments()
	if err != nil {
		return err
	}
	for _, held := range assignments[actorID] {
		if held == string(role) {
			fmt.Printf("Actor %s already holds role %s\n", actorID, role)
			return nil
		}
	}
	assignments[actorID] = append(assignments[actorID], string(role))

	payload, err := json.MarshalIndent(assignments, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding role file: %w", err)
	}
	if err := os.WriteFile(c.rolesPath(), append(payload, '\n'), 0o600); err != nil {
		return fmt.Errorf("writing role file: %w", err)
	}
	fmt.Printf("Granted %s to %s\n", role, actorID)
	return nil
}

func (c *CLI) readAssignments() (map[string][]string, error) {
	raw, err := os.ReadFile(c.rolesPath())
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string][]string), nil
		}
		return nil, fmt.Errorf("reading role file: %w", err)
	}
	assignments := make(map[string][]string)
	if err := json.Unmarshal(raw, &assignments); err != nil {
		return nil, fmt.Errorf("parsing role file: %w", err)
	}
	return assignments, nil
}

// showStatus reports the data directory, database, and role file state.
func (c *CLI) showStatus() error {
	fmt.Printf("Data directory: %s\n", c.cfg.DataDir)

	if _, err := os.Stat(c.cfg.DataDir); err != nil {
		fmt.Println("  (missing — run: server-lite setup init)")
		return nil
	}

	dbPath := c.cfg.CurationDBPath()
	if info, err := os.Stat(dbPath); err == nil {
		fmt.Printf("Curation database: %s (%d bytes)\n", dbPath, info.Size())
	} else {
		fmt.Printf("Curation database: %s (not yet created)\n", dbPath)
	}

	assignments, err := c.readAssignments()
	if err != nil {
		fmt.Printf("Role file: %s (invalid: %v)\n", c.rolesPath(), err)
		return nil
	}
	fmt.Printf("Role file: %s (%d actors)\n", c.rolesPath(), len(assignments))
	for actorID, roles := range assignments {
		fmt.Printf("  %s: %v\n", actorID, roles)
	}
	return nil
}

// validate loads the role file through the same path the server uses.
func (c *CLI) validate() error {
	if _, err := repository.LoadStaticGate(c.rolesPath()); err != nil {
		return fmt.Errorf("role file validation failed: %w", err)
	}
	fmt.Println("Configuration valid")
	return nil
}
