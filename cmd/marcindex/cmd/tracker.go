package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	ierrors "github.com/Aman-CERP/marcindex/internal/errors"
	"github.com/Aman-CERP/marcindex/internal/output"
	"github.com/Aman-CERP/marcindex/internal/tracker"
	"github.com/Aman-CERP/marcindex/internal/ui"
)

func newTrackerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tracker",
		Short: "Inspect the change tracker",
		Long: `The change tracker remembers, per core and record id, when a record was
first indexed, when it was last indexed and the record's own latest
transaction date (005 or 008/00-05).`,
	}

	cmd.AddCommand(newTrackerShowCmd())
	cmd.AddCommand(newTrackerMarkDeletedCmd())

	return cmd
}

func newTrackerShowCmd() *cobra.Command {
	var (
		core       string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show the tracked dates of a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject(cmd)
			if err != nil {
				return err
			}
			tr, err := p.openTrackerRequired()
			if err != nil {
				return err
			}
			defer func() { _ = tr.Close() }()

			if core == "" {
				core = p.cfg.Index.Core
			}
			entry, ok, err := tr.Get(cmd.Context(), core, args[0])
			if err != nil {
				return err
			}
			if !ok {
				return ierrors.New(ierrors.ErrCodeInvalidInput, fmt.Sprintf("record %s is not tracked", args[0]), nil).
					WithDetail("core", core).
					WithSuggestion("Index the record first, or pass --core")
			}

			info := ui.EntryInfo{
				Core:            entry.Core,
				ID:              entry.ID,
				FirstIndexed:    entry.FirstIndexed,
				LastIndexed:     entry.LastIndexed,
				LastTransaction: entry.LastTransaction,
				Deleted:         entry.Deleted,
			}
			renderer := ui.NewStatusRenderer(cmd.OutOrStdout())
			if jsonOutput {
				return renderer.RenderJSON(info)
			}
			return renderer.Render(info)
		},
	}

	cmd.Flags().StringVar(&core, "core", "", "Tracker core (default: index.core)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func newTrackerMarkDeletedCmd() *cobra.Command {
	var core string

	cmd := &cobra.Command{
		Use:   "mark-deleted <id>",
		Short: "Flag a record as deleted without removing it from the index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject(cmd)
			if err != nil {
				return err
			}
			tr, err := p.openTrackerRequired()
			if err != nil {
				return err
			}
			defer func() { _ = tr.Close() }()

			if core == "" {
				core = p.cfg.Index.Core
			}
			found, err := tr.MarkDeleted(cmd.Context(), core, args[0])
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			if !found {
				out.Warningf("Record %s is not tracked in core %s", args[0], core)
				return nil
			}
			out.Successf("Marked %s deleted", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&core, "core", "", "Tracker core (default: index.core)")

	return cmd
}

// openTrackerRequired opens the tracker, failing when tracking is disabled.
func (p *project) openTrackerRequired() (*tracker.Tracker, error) {
	tr, err := p.openTracker()
	if err != nil {
		return nil, err
	}
	if tr == nil {
		return nil, ierrors.ConfigError("change tracking is disabled", nil).
			WithSuggestion("Set tracker.disabled: false in " + p.root + "/.marcindex.yaml")
	}
	return tr, nil
}
