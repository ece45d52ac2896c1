package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/planhub/template-center/pkg/audit"
)

var (
	auditProject   string
	auditEventType string
	auditPageSize  int
	auditPageToken string
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Read the governance audit log",
	RunE:  runAudit,
}

func init() {
	auditCmd.Flags().StringVar(&auditProject, "project", "", "Limit to one project's events")
	auditCmd.Flags().StringVar(&auditEventType, "event-type", "", "Filter by event type")
	auditCmd.Flags().IntVar(&auditPageSize, "page-size", 20, "Events per page")
	auditCmd.Flags().StringVar(&auditPageToken, "page-token", "", "Continuation token from a previous page")
}

func runAudit(cmd *cobra.Command, args []string) error {
	client := newClient()

	path := "/audit/events"
	if auditProject != "" {
		path = "/audit/projects/" + auditProject + "/events"
	}
	path += "?pageSize=" + strconv.Itoa(auditPageSize)
	if auditPageToken != "" {
		path += "&pageToken=" + auditPageToken
	}
	if auditEventType != "" && auditProject == "" {
		path += "&eventType=" + auditEventType
	}

	var list audit.EventList
	if err := client.getJSON(path, &list); err != nil {
		return err
	}

	if outputFmt == "json" || outputFmt == "yaml" {
		return printOutput(list)
	}

	rows := make([][]string, 0, len(list.Events))
	for _, e := range list.Events {
		rows = append(rows, []string{
			e.CreatedAt,
			e.EventType,
			e.Outcome,
			e.Actor,
			e.ProjectID,
			truncate(e.Reason, 30),
		})
	}
	printTable([]string{"At", "Event", "Outcome", "Actor", "Project", "Reason"}, rows)
	if list.NextPageToken != "" {
		fmt.Printf("\nNext page token: %s\n", list.NextPageToken)
	}
	return nil
}
