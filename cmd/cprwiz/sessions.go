package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/cprwiz/internal/wizard"
)

var sessionsOwner string

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List authoring sessions",
	Long: `List sessions newest first with their progress.

Use --owner to show only one author's sessions.`,
	Args: cobra.NoArgs,
	RunE: runSessions,
}

func init() {
	sessionsCmd.Flags().StringVar(&sessionsOwner, "owner", "", "Only list sessions of this owner")
}

func runSessions(cmd *cobra.Command, args []string) error {
	svc, db, err := openService()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	sessions, err := svc.ListSessions(ctx, sessionsOwner)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions. Run 'cprwiz wizard --owner <id>' to start one.")
		return nil
	}

	for _, s := range sessions {
		doc, err := svc.Load(ctx, s.ID)
		if err != nil {
			return fmt.Errorf("load session %s: %w", s.ID, err)
		}
		name := s.UserName
		if name == "" {
			name = s.OwnerID
		}
		fmt.Printf("%s  %-12s %-4s %s  %s\n",
			s.ID,
			name,
			s.Pathway,
			phaseLabel(doc.Progress.Phase),
			formatAge(time.Since(s.CreatedAt)),
		)
	}
	return nil
}

// phaseLabel colours a phase name.
func phaseLabel(p wizard.Phase) string {
	label := fmt.Sprintf("%-15s", p)
	switch p {
	case wizard.PhaseCommitted:
		return color.New(color.FgGreen).Sprint(label)
	case wizard.PhaseReadyToCommit:
		return color.New(color.FgCyan).Sprint(label)
	default:
		return color.New(color.FgYellow).Sprint(label)
	}
}

// formatAge renders a duration as a short "ago" string.
func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
