package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/cprwiz/internal/authoring"
	"github.com/ShayCichocki/cprwiz/internal/wizard"
	"github.com/ShayCichocki/cprwiz/pkg/models"
)

var statusCmd = &cobra.Command{
	Use:   "status <session-id>",
	Short: "Show the progress of a session",
	Long: `Display the state of one session.

Shows:
  - Pathway and communication mode
  - Lock state and attempt count of each section, in pathway order
  - The section to work on next`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	svc, db, err := openService()
	if err != nil {
		return err
	}
	defer db.Close()

	doc, err := svc.Load(context.Background(), args[0])
	if err != nil {
		return err
	}
	displayStatus(doc)
	return nil
}

func displayStatus(doc *authoring.Document) {
	s := doc.Session
	fmt.Printf("Session: %s\n", s.ID)
	fmt.Printf("  Owner: %s", s.OwnerID)
	if s.UserName != "" {
		fmt.Printf(" (%s)", s.UserName)
	}
	fmt.Println()
	fmt.Printf("  Pathway: %s\n", valueOr(string(s.Pathway), "(not chosen)"))
	fmt.Printf("  Mode: %s\n", valueOr(string(s.Mode), "executive"))
	if s.Deadline != nil {
		fmt.Printf("  Deadline: %s\n", s.Deadline)
	}
	fmt.Printf("  Phase: %s\n", phaseLabel(doc.Progress.Phase))
	fmt.Println()

	for _, step := range doc.Progress.Steps {
		switch {
		case step.State == wizard.StateLocked:
			printStatus("✓", fmt.Sprintf("%-8s locked after %d attempt(s)", step.Kind.Title(), step.Attempts), color.FgGreen)
		case step.Editable:
			printStatus("●", fmt.Sprintf("%-8s in progress, %d attempt(s)", step.Kind.Title(), step.Attempts), color.FgCyan)
		default:
			printStatus("○", fmt.Sprintf("%-8s waiting", step.Kind.Title()), color.FgHiBlack)
		}
	}

	if doc.Progress.Current != "" {
		fmt.Printf("\nNext: %s\n", doc.Progress.Current.Title())
	}
	if doc.Context != nil {
		fmt.Printf("\nContext: %s\n", doc.Context.Content)
	}
	if doc.Purpose != nil {
		fmt.Printf("Purpose: %s\n", doc.Purpose.Content)
	}
	for i, r := range doc.Results {
		fmt.Printf("Result %d: %s%s\n", i+1, r.Content, dateSuffix(r))
	}
}

func dateSuffix(r models.SectionRecord) string {
	if r.CompletionDate == nil {
		return ""
	}
	return " (" + r.CompletionDate.String() + ")"
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// printStatus prints a message with a coloured symbol.
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}
