package cmd

import (
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/giantswarm/sharekeeper/internal/formatting"
)

var syncQuiet bool

func newSyncCmd() *cobra.Command {
	syncCmd := &cobra.Command{
		Use:   "sync <instance-id>",
		Short: "Reconcile the access rules of a share instance once",
		Long: `Reconcile a share instance immediately.

If a manifest exists for the instance its rules are applied first. Otherwise
the recorded rules are pushed to the driver again, which also clears an
error or out_of_sync access-rules status.`,
		Args: cobra.ExactArgs(1),
		RunE: runSync,
	}
	syncCmd.Flags().BoolVarP(&syncQuiet, "quiet", "q", false, "Suppress the progress spinner")
	return syncCmd
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	env, err := openEnvironment(ctx, loadedConfig)
	if err != nil {
		return err
	}
	defer env.Close()

	instanceID := args[0]

	var s *spinner.Spinner
	if !syncQuiet {
		s = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(cmd.ErrOrStderr()))
		s.Suffix = fmt.Sprintf(" Reconciling %s...", instanceID)
		s.Start()
	}

	err = env.reconciler.Sync(ctx, instanceID)
	if s != nil {
		if err != nil {
			s.FinalMSG = text.FgRed.Sprintf("Reconcile of %s failed", instanceID) + "\n"
		}
		s.Stop()
	}
	if err != nil {
		return err
	}

	instance, err := env.store.GetShareInstance(ctx, instanceID)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Share instance %s: access rules %s\n",
		instance.ID, formatting.ColorRulesStatus(instance.AccessRulesStatus))
	return nil
}
