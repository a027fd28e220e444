package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pratik-mahalle/infrasec/pkg/client"
)

func newRuleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rule",
		Short: "Manage security rules",
	}

	cmd.AddCommand(newRuleListCmd())
	cmd.AddCommand(newRuleGetCmd())
	cmd.AddCommand(newRuleAddCmd())
	cmd.AddCommand(newRuleApproveCmd())
	cmd.AddCommand(newRuleRejectCmd())
	cmd.AddCommand(newRuleRemoveCmd())
	cmd.AddCommand(newRuleVersionsCmd())
	cmd.AddCommand(newRuleMetricsCmd())
	cmd.AddCommand(newRuleConflictsCmd())
	cmd.AddCommand(newRuleResolveCmd())

	return cmd
}

func newRuleListCmd() *cobra.Command {
	var status string
	var page, pageSize int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			opts := &client.RuleListOptions{
				ListOptions: client.ListOptions{Page: page, PageSize: pageSize},
				Status:      status,
			}

			list, err := apiClient.Rules().List(ctx, opts)
			if err != nil {
				return fmt.Errorf("failed to list rules: %w", err)
			}

			format := getOutputFormat()
			if format != "table" {
				return printOutput(list)
			}

			t := NewTable("ID", "NAME", "SEVERITY", "STATUS", "ORIGIN", "PATTERN")
			for _, r := range list.Data {
				t.AddRow(
					r.ID,
					truncate(r.Name, 40),
					formatSeverity(r.Severity),
					formatStatus(r.Status),
					r.Origin,
					truncate(r.Pattern, 40),
				)
			}
			t.Render()
			fmt.Printf("\nPage %d of %d (%d rules)\n", list.Page, list.TotalPages, list.TotalItems)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status (CANDIDATE, ACTIVE, REJECTED)")
	cmd.Flags().IntVar(&page, "page", 0, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "rules per page")

	return cmd
}

func newRuleGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get rule details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			rule, err := apiClient.Rules().Get(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to get rule: %w", err)
			}

			format := getOutputFormat()
			if format != "table" {
				return printOutput(rule)
			}

			fmt.Printf("ID:          %s\n", rule.ID)
			fmt.Printf("Name:        %s\n", rule.Name)
			fmt.Printf("Severity:    %s\n", formatSeverity(rule.Severity))
			fmt.Printf("Status:      %s\n", formatStatus(rule.Status))
			fmt.Printf("Origin:      %s\n", rule.Origin)
			fmt.Printf("Pattern:     %s\n", rule.Pattern)
			fmt.Printf("Description: %s\n", rule.Description)
			fmt.Printf("Remediation: %s\n", rule.Remediation)
			fmt.Printf("Created:     %s\n", rule.CreatedAt.Format("2006-01-02 15:04:05"))
			return nil
		},
	}
}

func newRuleAddCmd() *cobra.Command {
	var file, changeReason string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a rule from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("--file is required")
			}

			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read rule file: %w", err)
			}

			var req client.CreateRuleRequest
			if err := yaml.Unmarshal(data, &req); err != nil {
				return fmt.Errorf("failed to parse rule file: %w", err)
			}
			req.ChangeReason = changeReason

			ctx := context.Background()
			resp, err := apiClient.Rules().Create(ctx, req)
			if err != nil {
				return fmt.Errorf("failed to add rule: %w", err)
			}

			fmt.Printf("Rule %s stored with status %s\n", resp.Rule.ID, resp.Rule.Status)
			for _, c := range resp.Conflicts {
				fmt.Printf("  Conflict (%s) with %s: %s\n", c.Type, c.ConflictingRuleID, c.Description)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file describing the rule")
	cmd.Flags().StringVar(&changeReason, "reason", "", "change reason recorded when updating an existing rule")

	return cmd
}

func newRuleApproveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "approve <id>",
		Short: "Approve a candidate rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			if err := apiClient.Rules().Approve(ctx, args[0]); err != nil {
				return fmt.Errorf("failed to approve rule: %w", err)
			}

			fmt.Printf("Rule %s approved\n", args[0])
			return nil
		},
	}
}

func newRuleRejectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject a candidate rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			if err := apiClient.Rules().Reject(ctx, args[0]); err != nil {
				return fmt.Errorf("failed to reject rule: %w", err)
			}

			fmt.Printf("Rule %s rejected\n", args[0])
			return nil
		},
	}
}

func newRuleRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete a rule and its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			if err := apiClient.Rules().Delete(ctx, args[0]); err != nil {
				return fmt.Errorf("failed to delete rule: %w", err)
			}

			fmt.Printf("Rule %s deleted\n", args[0])
			return nil
		},
	}
}

func newRuleVersionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "versions <id>",
		Short: "Show a rule's version history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			versions, err := apiClient.Rules().Versions(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to list versions: %w", err)
			}

			format := getOutputFormat()
			if format != "table" {
				return printOutput(versions)
			}

			t := NewTable("VERSION", "CREATED", "REASON", "NAME", "SEVERITY")
			for _, v := range versions {
				t.AddRow(
					strconv.Itoa(v.Version),
					v.CreatedAt.Format("2006-01-02 15:04:05"),
					truncate(v.ChangeReason, 40),
					truncate(v.Snapshot.Name, 40),
					v.Snapshot.Severity,
				)
			}
			t.Render()
			return nil
		},
	}
}

func newRuleMetricsCmd() *cobra.Command {
	var triggered, truePositive, falsePositive bool

	cmd := &cobra.Command{
		Use:   "metrics <id>",
		Short: "Show or update a rule's effectiveness metrics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			if triggered || truePositive || falsePositive {
				req := client.FeedbackRequest{Triggered: triggered || truePositive || falsePositive}
				if truePositive {
					v := true
					req.IsTruePositive = &v
				} else if falsePositive {
					v := false
					req.IsTruePositive = &v
				}
				if err := apiClient.Rules().Feedback(ctx, args[0], req); err != nil {
					return fmt.Errorf("failed to record feedback: %w", err)
				}
				fmt.Println("Feedback recorded")
			}

			m, err := apiClient.Rules().Metrics(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to get metrics: %w", err)
			}

			format := getOutputFormat()
			if format != "table" {
				return printOutput(m)
			}

			fmt.Printf("Rule:            %s\n", m.RuleID)
			fmt.Printf("Times triggered: %d\n", m.TimesTriggered)
			fmt.Printf("True positives:  %d\n", m.TruePositives)
			fmt.Printf("False positives: %d\n", m.FalsePositives)
			fmt.Printf("Effectiveness:   %.2f\n", m.EffectivenessScore)
			if m.LastTriggered != nil {
				fmt.Printf("Last triggered:  %s\n", m.LastTriggered.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&triggered, "triggered", false, "record a trigger before printing")
	cmd.Flags().BoolVar(&truePositive, "true-positive", false, "record a confirmed finding")
	cmd.Flags().BoolVar(&falsePositive, "false-positive", false, "record a false alarm")

	return cmd
}

func newRuleConflictsCmd() *cobra.Command {
	var ruleID string

	cmd := &cobra.Command{
		Use:   "conflicts",
		Short: "List open rule conflicts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			var (
				conflicts []client.Conflict
				err       error
			)
			if ruleID != "" {
				conflicts, err = apiClient.Rules().ConflictsForRule(ctx, ruleID)
			} else {
				conflicts, err = apiClient.Rules().Conflicts(ctx)
			}
			if err != nil {
				return fmt.Errorf("failed to list conflicts: %w", err)
			}

			format := getOutputFormat()
			if format != "table" {
				return printOutput(conflicts)
			}

			t := NewTable("RULE", "CONFLICTS WITH", "TYPE", "SEVERITY", "DESCRIPTION")
			for _, c := range conflicts {
				t.AddRow(
					c.RuleID,
					c.ConflictingRuleID,
					c.Type,
					formatSeverity(c.Severity),
					truncate(c.Description, 60),
				)
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&ruleID, "rule", "", "only conflicts involving this rule")

	return cmd
}

func newRuleResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <rule-id> <conflicting-rule-id> <keep_first|keep_second|merge>",
		Short: "Resolve a conflict between two rules",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			err := apiClient.Rules().ResolveConflict(ctx, client.ResolveConflictRequest{
				RuleID:            args[0],
				ConflictingRuleID: args[1],
				Resolution:        args[2],
			})
			if err != nil {
				return fmt.Errorf("failed to resolve conflict: %w", err)
			}

			fmt.Printf("Conflict between %s and %s resolved (%s)\n", args[0], args[1], args[2])
			return nil
		},
	}
}
