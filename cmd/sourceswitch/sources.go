package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/castn/sourceswitch/internal/core/domain"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Manage content sources",
}

var sourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered sources with their weights",
	Args:  cobra.NoArgs,
	RunE:  runSourcesList,
}

var sourcesRegisterCmd = &cobra.Command{
	Use:   "register <file>",
	Short: "Register sources from a JSON file (one source or an array)",
	Args:  cobra.ExactArgs(1),
	RunE:  runSourcesRegister,
}

var sourcesDisableCmd = &cobra.Command{
	Use:   "disable <id>",
	Short: "Disable a source and tag it with a reason",
	Args:  cobra.ExactArgs(1),
	RunE:  runSourcesDisable,
}

var sourcesEnableCmd = &cobra.Command{
	Use:   "enable <id>",
	Short: "Re-enable a source",
	Args:  cobra.ExactArgs(1),
	RunE:  runSourcesEnable,
}

var sourcesWeightCmd = &cobra.Command{
	Use:   "weight <id> <weight>",
	Short: "Override the weight of a source",
	Args:  cobra.ExactArgs(2),
	RunE:  runSourcesWeight,
}

var (
	sourcesEnabledOnly   bool
	sourcesDisableReason string
)

func init() {
	sourcesListCmd.Flags().BoolVar(&sourcesEnabledOnly, "enabled", false, "Only list enabled sources")
	sourcesDisableCmd.Flags().StringVar(&sourcesDisableReason, "reason", "", "Group tag recorded on the source")

	sourcesCmd.AddCommand(sourcesListCmd, sourcesRegisterCmd, sourcesDisableCmd, sourcesEnableCmd, sourcesWeightCmd)
	rootCmd.AddCommand(sourcesCmd)
}

func runSourcesList(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	list := a.registry.List
	if sourcesEnabledOnly {
		list = a.registry.ListEnabled
	}
	sources, err := list(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list sources: %w", err)
	}
	return printSources(cmd.OutOrStdout(), sources)
}

func printSources(out io.Writer, sources []*domain.ContentSource) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPROTOCOL\tENABLED\tWEIGHT\tGROUPS")
	for _, s := range sources {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%d\t%s\n",
			s.ID, s.Name, s.Protocol, s.Enabled, s.Weight, strings.Join(s.Groups, ","))
	}
	return tw.Flush()
}

func runSourcesRegister(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read sources file %s: %w", args[0], err)
	}
	defs, err := parseSources(data)
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	for _, def := range defs {
		source, err := a.registry.Register(cmd.Context(), def)
		if err != nil {
			return fmt.Errorf("failed to register source %q: %w", def.ID, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "registered %s (weight %d)\n", source.ID, source.Weight)
	}
	return nil
}

// parseSources accepts a single source object or an array of them
func parseSources(data []byte) ([]*domain.ContentSource, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var defs []*domain.ContentSource
		if err := json.Unmarshal(trimmed, &defs); err != nil {
			return nil, fmt.Errorf("failed to parse sources JSON: %w", err)
		}
		return defs, nil
	}
	var def domain.ContentSource
	if err := json.Unmarshal(trimmed, &def); err != nil {
		return nil, fmt.Errorf("failed to parse source JSON: %w", err)
	}
	return []*domain.ContentSource{&def}, nil
}

func runSourcesDisable(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.registry.Disable(cmd.Context(), args[0], sourcesDisableReason); err != nil {
		return fmt.Errorf("failed to disable source: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "disabled %s\n", args[0])
	return nil
}

func runSourcesEnable(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.registry.Enable(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to enable source: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "enabled %s\n", args[0])
	return nil
}

func runSourcesWeight(cmd *cobra.Command, args []string) error {
	weight, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid weight %q: %w", args[1], err)
	}

	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.registry.SetWeight(cmd.Context(), args[0], weight); err != nil {
		return fmt.Errorf("failed to set weight: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s weight set to %d\n", args[0], weight)
	return nil
}
