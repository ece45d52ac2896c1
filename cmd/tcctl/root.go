package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	outputFmt string
	orgID     string
	workspace string
	asUser    string
	asGroups  string
)

var rootCmd = &cobra.Command{
	Use:   "tcctl",
	Short: "CLI for the template center server",
	Long: `tcctl is a CLI for interacting with the template center governance API.

It covers the template catalog, template apply, document lifecycle actions,
gate decisions, evidence packs, and the audit log. Every command acts within
the org (and optionally workspace) given via --org/--workspace; identity is
passed through as-is, the way a trusted front proxy would.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Template center server URL")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "Output format: table, json, yaml")
	rootCmd.PersistentFlags().StringVar(&orgID, "org", "", "Organization ID (default: from TC_ORG env)")
	rootCmd.PersistentFlags().StringVar(&workspace, "workspace", "", "Workspace ID (default: from TC_WORKSPACE env)")
	rootCmd.PersistentFlags().StringVar(&asUser, "as", "", "Actor identity to act as")
	rootCmd.PersistentFlags().StringVar(&asGroups, "as-groups", "", "Comma-separated group list for the actor")

	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(templatesCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(documentsCmd)
	rootCmd.AddCommand(gatesCmd)
	rootCmd.AddCommand(evidenceCmd)
	rootCmd.AddCommand(auditCmd)
}

// resolvedOrg returns the effective org.
// Priority: --org flag > TC_ORG env var.
func resolvedOrg() string {
	if orgID != "" {
		return orgID
	}
	return os.Getenv("TC_ORG")
}

// resolvedWorkspace returns the effective workspace.
// Priority: --workspace flag > TC_WORKSPACE env var.
func resolvedWorkspace() string {
	if workspace != "" {
		return workspace
	}
	return os.Getenv("TC_WORKSPACE")
}
