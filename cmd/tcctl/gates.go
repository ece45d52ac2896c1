package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/planhub/template-center/pkg/templatecenter"
)

var gateComment string

var gatesCmd = &cobra.Command{
	Use:   "gates",
	Short: "Check gate readiness and record decisions",
}

var gatesBlockersCmd = &cobra.Command{
	Use:   "blockers <project-id> <gate-key>",
	Short: "Preview a gate's unmet prerequisites",
	Args:  cobra.ExactArgs(2),
	RunE:  runGatesBlockers,
}

var gatesDecideCmd = &cobra.Command{
	Use:   "decide <project-id> <gate-key> <decision>",
	Short: "Record a gate decision",
	Long: `Decisions: approved, approved_with_comments, rejected. Approving
decisions are refused while the gate has unmet prerequisites; a rejection is
always recorded.`,
	Args: cobra.ExactArgs(3),
	RunE: runGatesDecide,
}

func init() {
	gatesDecideCmd.Flags().StringVar(&gateComment, "comment", "", "Decision comment")

	gatesCmd.AddCommand(gatesBlockersCmd)
	gatesCmd.AddCommand(gatesDecideCmd)
}

func runGatesBlockers(cmd *cobra.Command, args []string) error {
	client := newClient()

	var resp struct {
		GateKey  string                   `json:"gateKey"`
		Blockers []templatecenter.Blocker `json:"blockers"`
	}
	path := fmt.Sprintf("/projects/%s/gates/%s/blockers", args[0], args[1])
	if err := client.getJSON(path, &resp); err != nil {
		return err
	}

	if outputFmt == "json" || outputFmt == "yaml" {
		return printOutput(resp)
	}

	if len(resp.Blockers) == 0 {
		fmt.Printf("Gate %s has no blockers\n", resp.GateKey)
		return nil
	}
	rows := make([][]string, 0, len(resp.Blockers))
	for _, b := range resp.Blockers {
		rows = append(rows, []string{b.Type, b.Key, b.Reason})
	}
	printTable([]string{"Type", "Key", "Reason"}, rows)
	return nil
}

func runGatesDecide(cmd *cobra.Command, args []string) error {
	client := newClient()

	req := templatecenter.DecideRequest{
		Decision: templatecenter.GateDecision(args[2]),
		Comment:  gateComment,
	}

	var approval templatecenter.GateApprovalRecord
	path := fmt.Sprintf("/projects/%s/gates/%s/decisions", args[0], args[1])
	if err := client.postJSON(path, req, &approval); err != nil {
		return err
	}

	if outputFmt == "json" || outputFmt == "yaml" {
		return printOutput(approval)
	}
	fmt.Printf("Recorded %s for gate %s (approval %s)\n", approval.Decision, approval.GateKey, approval.ID)
	return nil
}
