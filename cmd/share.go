package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/giantswarm/sharekeeper/internal/api"
)

var (
	shareID         string
	shareServerID   string
	shareServerHost string
	createStatus    string
	newStatus       string
	newRulesStatus  string
)

func newShareCmd() *cobra.Command {
	shareCmd := &cobra.Command{
		Use:   "share",
		Short: "Manage share instances",
	}

	createCmd := &cobra.Command{
		Use:   "create <instance-id>",
		Short: "Record a share instance",
		Long: `Record a share instance in the store so that access rules can be
attached to it. With --server-host a share server record is created as well.`,
		Args: cobra.ExactArgs(1),
		RunE: runShareCreate,
	}
	createCmd.Flags().StringVar(&shareID, "share-id", "", "Logical share this instance belongs to")
	createCmd.Flags().StringVar(&shareServerID, "server", "", "Share server hosting the instance")
	createCmd.Flags().StringVar(&shareServerHost, "server-host", "", "Create the share server with this host")
	createCmd.Flags().StringVar(&createStatus, "status", string(api.StatusAvailable), "Instance status")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List share instances",
		Args:  cobra.NoArgs,
		RunE:  runShareList,
	}
	addOutputFlags(listCmd)

	setStatusCmd := &cobra.Command{
		Use:   "set-status <instance-id>",
		Short: "Set the status or access-rules status of an instance",
		Long: `Set the status or access-rules status of a share instance.

Marking the access rules out_of_sync makes the next resync of
'sharekeeper serve' push the full rule set to the driver again.`,
		Args: cobra.ExactArgs(1),
		RunE: runShareSetStatus,
	}
	setStatusCmd.Flags().StringVar(&newStatus, "status", "", "Instance status (available, creating, migrating, error, deleting)")
	setStatusCmd.Flags().StringVar(&newRulesStatus, "access-rules-status", "", "Access-rules status (active, error, out_of_sync)")

	shareCmd.AddCommand(createCmd, listCmd, setStatusCmd)
	return shareCmd
}

func parseInstanceStatus(s string) (api.InstanceStatus, error) {
	switch st := api.InstanceStatus(s); st {
	case api.StatusAvailable, api.StatusCreating, api.StatusMigrating, api.StatusError, api.StatusDeleting:
		return st, nil
	default:
		return "", api.NewInvalidError("unknown instance status %q", s)
	}
}

func parseRulesStatus(s string) (api.AccessRulesStatus, error) {
	st := api.AccessRulesStatus(s)
	if !st.Valid() {
		return "", api.NewInvalidError("unknown access-rules status %q", s)
	}
	return st, nil
}

func runShareCreate(cmd *cobra.Command, args []string) error {
	status, err := parseInstanceStatus(createStatus)
	if err != nil {
		return err
	}
	if shareServerHost != "" && shareServerID == "" {
		return api.NewInvalidError("--server-host requires --server")
	}

	ctx := cmd.Context()
	env, err := openEnvironment(ctx, loadedConfig)
	if err != nil {
		return err
	}
	defer env.Close()

	if shareServerHost != "" {
		err := env.store.CreateShareServer(ctx, api.ShareServer{ID: shareServerID, Host: shareServerHost})
		if err != nil {
			return fmt.Errorf("failed to create share server %s: %w", shareServerID, err)
		}
	} else if shareServerID != "" {
		if _, err := env.store.GetShareServer(ctx, shareServerID); err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	instance := api.ShareInstance{
		ID:                args[0],
		ShareID:           shareID,
		ShareServerID:     shareServerID,
		Status:            status,
		AccessRulesStatus: api.AccessRulesActive,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := env.store.CreateShareInstance(ctx, instance); err != nil {
		return fmt.Errorf("failed to create share instance %s: %w", instance.ID, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Share instance %s created\n", instance.ID)
	return nil
}

func runShareList(cmd *cobra.Command, args []string) error {
	formatter, err := newFormatter(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	env, err := openEnvironment(ctx, loadedConfig)
	if err != nil {
		return err
	}
	defer env.Close()

	instances, err := env.store.ListShareInstances(ctx)
	if err != nil {
		return err
	}
	return formatter.FormatInstances(instances)
}

func runShareSetStatus(cmd *cobra.Command, args []string) error {
	if newStatus == "" && newRulesStatus == "" {
		return api.NewInvalidError("one of --status or --access-rules-status is required")
	}

	var (
		status   api.InstanceStatus
		rulesSet api.AccessRulesStatus
		err      error
	)
	if newStatus != "" {
		if status, err = parseInstanceStatus(newStatus); err != nil {
			return err
		}
	}
	if newRulesStatus != "" {
		if rulesSet, err = parseRulesStatus(newRulesStatus); err != nil {
			return err
		}
	}

	ctx := cmd.Context()
	env, err := openEnvironment(ctx, loadedConfig)
	if err != nil {
		return err
	}
	defer env.Close()

	id := args[0]
	if status != "" {
		if err := env.store.SetShareInstanceStatus(ctx, id, status); err != nil {
			return err
		}
	}
	if rulesSet != "" {
		if err := env.store.SetAccessRulesStatus(ctx, id, rulesSet); err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Share instance %s updated\n", id)
	return nil
}
