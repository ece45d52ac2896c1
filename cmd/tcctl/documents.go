package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/planhub/template-center/pkg/templatecenter"
)

var (
	transitionContent string
	transitionLink    string
	transitionFileID  string
	transitionSummary string

	assignOwner     string
	assignReviewers string
)

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "Inspect and drive document lifecycles",
}

var documentsListCmd = &cobra.Command{
	Use:   "list <project-id>",
	Short: "List a project's document instances",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentsList,
}

var documentsGetCmd = &cobra.Command{
	Use:   "get <project-id> <document-id>",
	Short: "Show a document with its current version content",
	Args:  cobra.ExactArgs(2),
	RunE:  runDocumentsGet,
}

var documentsHistoryCmd = &cobra.Command{
	Use:   "history <project-id> <document-id>",
	Short: "List a document's version history, newest first",
	Args:  cobra.ExactArgs(2),
	RunE:  runDocumentsHistory,
}

var documentsTransitionCmd = &cobra.Command{
	Use:   "transition <project-id> <document-id> <action>",
	Short: "Apply a lifecycle action to a document",
	Long: `Actions: start_draft, submit_for_review, approve, request_changes,
mark_complete, create_new_version. Which actor may run which action depends
on the document's owner, reviewers, and the project-managers group.`,
	Args: cobra.ExactArgs(3),
	RunE: runDocumentsTransition,
}

var documentsAssignCmd = &cobra.Command{
	Use:   "assign <project-id> <document-id>",
	Short: "Set a document's owner and reviewers",
	Args:  cobra.ExactArgs(2),
	RunE:  runDocumentsAssign,
}

func init() {
	documentsTransitionCmd.Flags().StringVar(&transitionContent, "content", "", "Inline content for the new version row")
	documentsTransitionCmd.Flags().StringVar(&transitionLink, "link", "", "External link for the new version row")
	documentsTransitionCmd.Flags().StringVar(&transitionFileID, "file-id", "", "Stored file reference for the new version row")
	documentsTransitionCmd.Flags().StringVar(&transitionSummary, "summary", "", "Change summary for the new version row")

	documentsAssignCmd.Flags().StringVar(&assignOwner, "owner", "", "Owner user ID")
	documentsAssignCmd.Flags().StringVar(&assignReviewers, "reviewers", "", "Comma-separated reviewer user IDs")

	documentsCmd.AddCommand(documentsListCmd)
	documentsCmd.AddCommand(documentsGetCmd)
	documentsCmd.AddCommand(documentsHistoryCmd)
	documentsCmd.AddCommand(documentsTransitionCmd)
	documentsCmd.AddCommand(documentsAssignCmd)
}

func runDocumentsList(cmd *cobra.Command, args []string) error {
	client := newClient()

	var resp struct {
		Documents []templatecenter.DocumentInstanceRecord `json:"documents"`
	}
	if err := client.getJSON("/projects/"+args[0]+"/documents", &resp); err != nil {
		return err
	}

	if outputFmt == "json" || outputFmt == "yaml" {
		return printOutput(resp)
	}

	rows := make([][]string, 0, len(resp.Documents))
	for _, d := range resp.Documents {
		rows = append(rows, []string{
			d.DocKey,
			string(d.Status),
			strconv.Itoa(d.CurrentVersion),
			d.OwnerID,
			d.ID,
		})
	}
	printTable([]string{"Key", "Status", "Version", "Owner", "ID"}, rows)
	return nil
}

func runDocumentsGet(cmd *cobra.Command, args []string) error {
	client := newClient()

	var resp templatecenter.DocumentWithVersion
	path := fmt.Sprintf("/projects/%s/documents/%s", args[0], args[1])
	if err := client.getJSON(path, &resp); err != nil {
		return err
	}
	return printOutput(resp)
}

func runDocumentsHistory(cmd *cobra.Command, args []string) error {
	client := newClient()

	var resp struct {
		Versions []templatecenter.DocumentVersionRecord `json:"versions"`
	}
	path := fmt.Sprintf("/projects/%s/documents/%s/versions", args[0], args[1])
	if err := client.getJSON(path, &resp); err != nil {
		return err
	}

	if outputFmt == "json" || outputFmt == "yaml" {
		return printOutput(resp)
	}

	rows := make([][]string, 0, len(resp.Versions))
	for _, v := range resp.Versions {
		rows = append(rows, []string{
			strconv.Itoa(v.Version),
			v.CreatedBy,
			truncate(v.ChangeSummary, 50),
		})
	}
	printTable([]string{"Version", "By", "Summary"}, rows)
	return nil
}

func runDocumentsTransition(cmd *cobra.Command, args []string) error {
	client := newClient()

	req := templatecenter.TransitionRequest{
		Action:        templatecenter.Action(args[2]),
		Content:       transitionContent,
		Link:          transitionLink,
		FileID:        transitionFileID,
		ChangeSummary: transitionSummary,
	}

	var doc templatecenter.DocumentInstanceRecord
	path := fmt.Sprintf("/projects/%s/documents/%s/transitions", args[0], args[1])
	if err := client.postJSON(path, req, &doc); err != nil {
		return err
	}

	if outputFmt == "json" || outputFmt == "yaml" {
		return printOutput(doc)
	}
	fmt.Printf("Document %s is now %s (version %d)\n", doc.DocKey, doc.Status, doc.CurrentVersion)
	return nil
}

func runDocumentsAssign(cmd *cobra.Command, args []string) error {
	client := newClient()

	req := templatecenter.AssignRequest{}
	if cmd.Flags().Changed("owner") {
		req.OwnerID = &assignOwner
	}
	if cmd.Flags().Changed("reviewers") {
		var reviewers []string
		for _, r := range strings.Split(assignReviewers, ",") {
			if r = strings.TrimSpace(r); r != "" {
				reviewers = append(reviewers, r)
			}
		}
		req.ReviewerIDs = &reviewers
	}

	var doc templatecenter.DocumentInstanceRecord
	path := fmt.Sprintf("/projects/%s/documents/%s/assignments", args[0], args[1])
	if err := client.postJSON(path, req, &doc); err != nil {
		return err
	}

	if outputFmt == "json" || outputFmt == "yaml" {
		return printOutput(doc)
	}
	fmt.Printf("Document %s: owner=%s reviewers=%s\n",
		doc.DocKey, doc.OwnerID, strings.Join(doc.ReviewerIDs, ","))
	return nil
}
