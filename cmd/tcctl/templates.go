package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/planhub/template-center/pkg/templatecenter"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Browse the template catalog",
}

var templatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List template definitions visible to the org",
	RunE:  runTemplatesList,
}

var templatesGetCmd = &cobra.Command{
	Use:   "get <template-key>",
	Short: "Show a template definition and its versions",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplatesGet,
}

func init() {
	templatesCmd.AddCommand(templatesListCmd)
	templatesCmd.AddCommand(templatesGetCmd)
}

func runTemplatesList(cmd *cobra.Command, args []string) error {
	client := newClient()

	var resp struct {
		Templates     []templatecenter.TemplateDefinitionRecord `json:"templates"`
		NextPageToken string                                    `json:"nextPageToken"`
	}
	if err := client.getJSON("/templates", &resp); err != nil {
		return err
	}

	if outputFmt == "json" || outputFmt == "yaml" {
		return printOutput(resp)
	}

	rows := make([][]string, 0, len(resp.Templates))
	for _, t := range resp.Templates {
		scopeCol := t.OrgID
		if scopeCol == "" {
			scopeCol = "(global)"
		}
		rows = append(rows, []string{t.Key, truncate(t.DisplayName, 40), scopeCol})
	}
	printTable([]string{"Key", "Name", "Org"}, rows)
	return nil
}

func runTemplatesGet(cmd *cobra.Command, args []string) error {
	client := newClient()

	var resp struct {
		Template templatecenter.TemplateDefinitionRecord `json:"template"`
		Versions []templatecenter.TemplateVersionRecord  `json:"versions"`
	}
	if err := client.getJSON("/templates/"+args[0], &resp); err != nil {
		return err
	}

	if outputFmt == "json" || outputFmt == "yaml" {
		return printOutput(resp)
	}

	fmt.Printf("Template: %s (%s)\n\n", resp.Template.DisplayName, resp.Template.Key)
	rows := make([][]string, 0, len(resp.Versions))
	for _, v := range resp.Versions {
		rows = append(rows, []string{strconv.Itoa(v.Version), v.Status, v.ID})
	}
	printTable([]string{"Version", "Status", "ID"}, rows)
	return nil
}
