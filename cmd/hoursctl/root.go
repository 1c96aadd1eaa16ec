package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"

	"github.com/noah-isme/apprenticeship-hours-api/internal/rules"
)

const (
	outputText = "text"
	outputJSON = "json"
)

type globalOptions struct {
	rulesPath string
	output    string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:   "hoursctl",
		Short: "Inspect licensure rules and evaluate apprenticeship hours from the command line.",
		Long: `hoursctl answers the same questions as the hours API without a server:
which rules apply in a jurisdiction, how a transfer claim would be decided,
and whether an apprentice may sit the licensing exam.`,
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch opts.output {
			case outputText, outputJSON:
				return nil
			default:
				return fmt.Errorf("unsupported output %q (want text or json)", opts.output)
			}
		},
	}
	root.PersistentFlags().StringVar(&opts.rulesPath, "rules", "", "rules YAML file (default: rules compiled into the binary)")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", outputText, "output format: text or json")

	root.AddCommand(
		newRulesCmd(opts),
		newEvaluateCmd(opts),
		newEligibilityCmd(opts),
		newRemainingCmd(opts),
		newTokenCmd(),
		newDBCmd(),
	)
	return root
}

func (o *globalOptions) registry() (*rules.Registry, error) {
	path, err := homedir.Expand(strings.TrimSpace(o.rulesPath))
	if err != nil {
		return nil, fmt.Errorf("expand rules path: %w", err)
	}
	return rules.Load(path)
}

func (o *globalOptions) json() bool {
	return o.output == outputJSON
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}
