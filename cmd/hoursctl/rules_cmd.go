package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/noah-isme/apprenticeship-hours-api/internal/models"
	"github.com/noah-isme/apprenticeship-hours-api/internal/rules"
)

func newRulesCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect jurisdiction rule sets",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the current rule set of every jurisdiction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := opts.registry()
			if err != nil {
				return err
			}
			all := reg.List()
			if opts.json() {
				return writeJSON(cmd.OutOrStdout(), all)
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "CODE\tNAME\tRULE SET\tVERSION\tEFFECTIVE\tHASH")
			for _, r := range all {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
					r.JurisdictionCode, r.Name, r.RuleSetID, r.Version,
					r.EffectiveDate.Format("2006-01-02"), reg.HashOf(r.RuleSetID))
			}
			return tw.Flush()
		},
	}

	var version int
	show := &cobra.Command{
		Use:   "show <code>",
		Short: "Show a jurisdiction's rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, reg, err := resolveRules(opts, args[0], version)
			if err != nil {
				return err
			}
			if opts.json() {
				return writeJSON(cmd.OutOrStdout(), struct {
					models.JurisdictionRules
					RuleHash string `json:"rule_hash"`
				}{r, reg.HashOf(r.RuleSetID)})
			}
			sources := make([]string, len(r.AcceptedSourceTypes))
			for i, st := range r.AcceptedSourceTypes {
				sources[i] = string(st)
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintf(tw, "Jurisdiction:\t%s (%s)\n", r.JurisdictionCode, r.Name)
			fmt.Fprintf(tw, "Rule set:\t%s v%d, effective %s\n", r.RuleSetID, r.Version, r.EffectiveDate.Format("2006-01-02"))
			fmt.Fprintf(tw, "Hash:\t%s\n", reg.HashOf(r.RuleSetID))
			fmt.Fprintf(tw, "Required hours:\t%d\n", r.RequiredTotalHours)
			fmt.Fprintf(tw, "Max transfer hours:\t%d\n", r.MaxTransferHours)
			fmt.Fprintf(tw, "Exam:\trequired=%t, eligible at %d hours\n", r.ExamRequired, r.ExamEligibilityHours)
			fmt.Fprintf(tw, "Continuing education counts:\t%t\n", r.ContinuingEducationCountsTowardLicensure)
			fmt.Fprintf(tw, "Accepted sources:\t%s\n", strings.Join(sources, ", "))
			return tw.Flush()
		},
	}
	show.Flags().IntVar(&version, "version", 0, "specific rule set version (default: latest)")

	var hashVersion int
	hash := &cobra.Command{
		Use:   "hash <code>",
		Short: "Print the fingerprint of a jurisdiction's rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, _, err := resolveRules(opts, args[0], hashVersion)
			if err != nil {
				return err
			}
			h := rules.Hash(r)
			if opts.json() {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"rule_set_id": r.RuleSetID, "rule_hash": h})
			}
			fmt.Fprintln(cmd.OutOrStdout(), h)
			return nil
		},
	}
	hash.Flags().IntVar(&hashVersion, "version", 0, "specific rule set version (default: latest)")

	cmd.AddCommand(list, show, hash)
	return cmd
}

func resolveRules(opts *globalOptions, code string, version int) (models.JurisdictionRules, *rules.Registry, error) {
	reg, err := opts.registry()
	if err != nil {
		return models.JurisdictionRules{}, nil, err
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	var (
		r  models.JurisdictionRules
		ok bool
	)
	if version > 0 {
		r, ok = reg.GetVersion(code, version)
	} else {
		r, ok = reg.Get(code)
	}
	if !ok {
		return models.JurisdictionRules{}, nil, fmt.Errorf("no rules for jurisdiction %s", code)
	}
	return r, reg, nil
}
