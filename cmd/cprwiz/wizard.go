package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/cprwiz/internal/authoring"
	"github.com/ShayCichocki/cprwiz/internal/tui"
	"github.com/ShayCichocki/cprwiz/pkg/models"
)

var (
	wizardOwner   string
	wizardName    string
	wizardPathway string
	wizardMode    string
)

var wizardCmd = &cobra.Command{
	Use:   "wizard [session-id]",
	Short: "Author a CPR document in the terminal",
	Long: `Open the terminal wizard for a session.

Without a session id a new session is created for --owner. The pathway
(cpr or rpc) and communication mode (friendly or executive) are fixed when
the session is created.

Examples:
  cprwiz wizard --owner sam --name Sam --pathway rpc
  cprwiz wizard 3f0c9a1e-...`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWizard,
}

func init() {
	wizardCmd.Flags().StringVar(&wizardOwner, "owner", "", "Owner id for a new session")
	wizardCmd.Flags().StringVar(&wizardName, "name", "", "How the wizard addresses you")
	wizardCmd.Flags().StringVar(&wizardPathway, "pathway", string(models.PathwayCPR), "Section order for a new session: cpr or rpc")
	wizardCmd.Flags().StringVar(&wizardMode, "mode", string(models.ModeFriendly), "Feedback tone for a new session: friendly or executive")
}

func runWizard(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(true)
	if err != nil {
		return err
	}
	defer rt.Close()

	var sessionID string
	if len(args) > 0 {
		sessionID = args[0]
	} else {
		if wizardOwner == "" {
			return fmt.Errorf("pass a session id or --owner to start a new session")
		}
		sess, err := rt.svc.CreateSession(context.Background(), authoring.NewSession{
			OwnerID:  wizardOwner,
			UserName: wizardName,
			Mode:     models.CommunicationMode(wizardMode),
			Pathway:  models.Pathway(wizardPathway),
		})
		if err != nil {
			return err
		}
		sessionID = sess.ID
	}

	program, err := tui.NewProgram(rt.svc, sessionID)
	if err != nil {
		return err
	}
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("wizard: %w", err)
	}
	fmt.Printf("Session %s saved. Resume with: cprwiz wizard %s\n", sessionID, sessionID)
	return nil
}
