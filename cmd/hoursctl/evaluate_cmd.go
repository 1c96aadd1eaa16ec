package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/noah-isme/apprenticeship-hours-api/internal/models"
	"github.com/noah-isme/apprenticeship-hours-api/internal/rules"
)

func newEvaluateCmd(opts *globalOptions) *cobra.Command {
	var (
		jurisdiction string
		source       string
		hours        float64
		current      float64
		documents    bool
	)
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Decide how many transfer hours a claim would be credited",
		Example: `  hoursctl evaluate --jurisdiction IN --source in_state_barber_school --hours 1200 --documents
  hoursctl evaluate --jurisdiction IN --source out_of_state_school --hours 300 -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sourceType := models.SourceType(strings.TrimSpace(source))
			if !sourceType.Valid() {
				return fmt.Errorf("unknown source type %q", source)
			}
			reg, err := opts.registry()
			if err != nil {
				return err
			}
			result := rules.EvaluateTransfer(reg, strings.ToUpper(jurisdiction), models.TransferCreditClaim{
				SourceType:                   sourceType,
				HoursClaimed:                 hours,
				HasSupportingDocuments:       documents,
				CurrentAcceptedTransferHours: current,
			})
			if opts.json() {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			codes := make([]string, len(result.ReasonCodes))
			for i, c := range result.ReasonCodes {
				codes[i] = string(c)
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintf(tw, "Decision:\t%s\n", result.Decision)
			fmt.Fprintf(tw, "Accepted:\t%s of %s hours\n", rules.FormatHours(result.AcceptedHours), rules.FormatHours(result.HoursClaimed))
			if len(codes) > 0 {
				fmt.Fprintf(tw, "Reasons:\t%s\n", strings.Join(codes, ", "))
			}
			if result.RuleSetID != "" {
				fmt.Fprintf(tw, "Rules:\t%s (%s)\n", result.RuleSetID, result.RuleHash)
			}
			fmt.Fprintf(tw, "Explanation:\t%s\n", result.Explanation)
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&jurisdiction, "jurisdiction", "", "jurisdiction code, e.g. IN")
	cmd.Flags().StringVar(&source, "source", "", "source type of the hours")
	cmd.Flags().Float64Var(&hours, "hours", 0, "hours claimed")
	cmd.Flags().Float64Var(&current, "current", 0, "transfer hours already accepted")
	cmd.Flags().BoolVar(&documents, "documents", false, "supporting documents were provided")
	_ = cmd.MarkFlagRequired("jurisdiction")
	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("hours")
	return cmd
}

func newEligibilityCmd(opts *globalOptions) *cobra.Command {
	var (
		jurisdiction string
		hours        float64
		pending      bool
	)
	cmd := &cobra.Command{
		Use:     "eligibility",
		Short:   "Check whether accepted hours qualify for the licensing exam",
		Example: `  hoursctl eligibility --jurisdiction IN --hours 1999`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := opts.registry()
			if err != nil {
				return err
			}
			result := rules.CheckExamEligibility(reg, strings.ToUpper(jurisdiction), hours, pending)
			if opts.json() {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			verdict := "not eligible"
			if result.Eligible {
				verdict = "eligible"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", verdict, result.Reason)
			return nil
		},
	}
	cmd.Flags().StringVar(&jurisdiction, "jurisdiction", "", "jurisdiction code, e.g. IN")
	cmd.Flags().Float64Var(&hours, "hours", 0, "total accepted hours")
	cmd.Flags().BoolVar(&pending, "pending", false, "claims are still awaiting manual review")
	_ = cmd.MarkFlagRequired("jurisdiction")
	return cmd
}

func newRemainingCmd(opts *globalOptions) *cobra.Command {
	var (
		jurisdiction string
		hours        float64
	)
	cmd := &cobra.Command{
		Use:     "remaining",
		Short:   "Report hours left toward the jurisdiction's required total",
		Example: `  hoursctl remaining --jurisdiction IN --hours 1500`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := opts.registry()
			if err != nil {
				return err
			}
			code := strings.ToUpper(jurisdiction)
			result, ok := rules.CalculateRemainingHours(reg, code, hours)
			if !ok {
				return fmt.Errorf("no rules for jurisdiction %s", code)
			}
			if opts.json() {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s of %d hours remaining (%s%% complete)\n",
				rules.FormatHours(result.Remaining), result.TotalRequired, rules.FormatHours(result.PercentageComplete))
			return nil
		},
	}
	cmd.Flags().StringVar(&jurisdiction, "jurisdiction", "", "jurisdiction code, e.g. IN")
	cmd.Flags().Float64Var(&hours, "hours", 0, "total accepted hours")
	_ = cmd.MarkFlagRequired("jurisdiction")
	return cmd
}
