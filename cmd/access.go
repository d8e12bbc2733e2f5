package cmd

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/giantswarm/sharekeeper/internal/api"
)

var accessLevel string

func newAccessCmd() *cobra.Command {
	accessCmd := &cobra.Command{
		Use:   "access",
		Short: "Grant, revoke and list access rules",
	}

	allowCmd := &cobra.Command{
		Use:   "allow <instance-id> <access-to>",
		Short: "Grant a principal access to a share instance",
		Long: `Record a new access rule and reconcile the instance so the driver
enforces it. <access-to> is a host, IP/CIDR, user or certificate subject.`,
		Args: cobra.ExactArgs(2),
		RunE: runAccessAllow,
	}
	allowCmd.Flags().StringVarP(&accessLevel, "level", "l", string(api.AccessLevelRW), "Access level (rw, ro)")

	denyCmd := &cobra.Command{
		Use:   "deny <instance-id> <rule-id>",
		Short: "Revoke an access rule",
		Args:  cobra.ExactArgs(2),
		RunE:  runAccessDeny,
	}

	listCmd := &cobra.Command{
		Use:   "list <instance-id>",
		Short: "List the access rules of a share instance",
		Args:  cobra.ExactArgs(1),
		RunE:  runAccessList,
	}
	addOutputFlags(listCmd)
	listCmd.Flags().BoolVar(&showKeys, "show-keys", false, "Print access keys in full")

	accessCmd.AddCommand(allowCmd, denyCmd, listCmd)
	return accessCmd
}

func runAccessAllow(cmd *cobra.Command, args []string) error {
	level := api.AccessLevel(accessLevel)
	if !level.Valid() {
		return api.NewInvalidError("unknown access level %q (want rw or ro)", accessLevel)
	}

	ctx := cmd.Context()
	env, err := openEnvironment(ctx, loadedConfig)
	if err != nil {
		return err
	}
	defer env.Close()

	instanceID := args[0]
	if _, err := env.store.GetShareInstance(ctx, instanceID); err != nil {
		return err
	}

	rule := api.AccessRule{
		ID:          uuid.NewString(),
		InstanceID:  instanceID,
		AccessTo:    args[1],
		AccessLevel: level,
		CreatedAt:   time.Now().UTC(),
	}
	if err := env.store.CreateAccessRule(ctx, rule); err != nil {
		return fmt.Errorf("failed to record access rule: %w", err)
	}

	if err := env.engine.UpdateAccessRules(ctx, instanceID, []api.AccessRule{rule}, nil); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), rule.ID)
	return nil
}

func runAccessDeny(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	env, err := openEnvironment(ctx, loadedConfig)
	if err != nil {
		return err
	}
	defer env.Close()

	instanceID, ruleID := args[0], args[1]
	rule, err := env.store.GetAccessRule(ctx, ruleID)
	if err != nil {
		return err
	}
	if rule.InstanceID != instanceID {
		return api.NewNotFoundError("access rule", fmt.Sprintf("%s on %s", ruleID, instanceID))
	}

	if err := env.engine.UpdateAccessRules(ctx, instanceID, nil, []api.AccessRule{*rule}); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Access rule %s revoked\n", ruleID)
	return nil
}

func runAccessList(cmd *cobra.Command, args []string) error {
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

	if _, err := env.store.GetShareInstance(ctx, args[0]); err != nil {
		return err
	}
	rules, err := env.store.ListAccessRules(ctx, args[0])
	if err != nil {
		return err
	}
	return formatter.FormatRules(rules)
}
