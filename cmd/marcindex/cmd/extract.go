package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	ierrors "github.com/Aman-CERP/marcindex/internal/errors"
	"github.com/Aman-CERP/marcindex/internal/fulltext"
	"github.com/Aman-CERP/marcindex/internal/index"
	"github.com/Aman-CERP/marcindex/internal/marc"
	"github.com/Aman-CERP/marcindex/internal/output"
	"github.com/Aman-CERP/marcindex/internal/store"
)

type extractOptions struct {
	id         string
	limit      int
	format     string
	fulltext   bool
	jsonOutput bool
}

// extractMalformedLimit stops reading a file that yields only garbage.
const extractMalformedLimit = 10

func newExtractCmd() *cobra.Command {
	var opts extractOptions

	cmd := &cobra.Command{
		Use:   "extract <file>",
		Short: "Show the index fields built for records, without indexing",
		Long: `Build the index document for records in a MARC file and print it.
Nothing is written: the change tracker is not consulted, so first_indexed
and last_indexed are absent.

Use it to check field specs from the "fields" config section against
real records.`,
		Example: `  marcindex extract records.mrc
  marcindex extract --id ocm12345678 records.mrc
  marcindex extract --json -n 100 records.xml | jq '.fields.title'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.id, "id", "", "Only show the record with this identifier")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 1, "Records to show (0 for all)")
	cmd.Flags().StringVar(&opts.format, "format", "", "Input format: binary or xml (default: by file extension)")
	cmd.Flags().BoolVar(&opts.fulltext, "fulltext", false, "Run the configured full-text harvester too")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Print one JSON document per line")

	return cmd
}

func runExtract(cmd *cobra.Command, path string, opts extractOptions) error {
	ctx := cmd.Context()

	p, err := loadProject(cmd)
	if err != nil {
		return err
	}
	if opts.format != "" {
		p.cfg.Index.Format = opts.format
		if err := p.cfg.Validate(); err != nil {
			return err
		}
	}

	cfg := index.BuilderConfig{
		Core:            p.cfg.Index.Core,
		IDSpec:          p.cfg.Index.IDSpec,
		Fields:          p.cfg.Fields,
		CallNumberTypes: callNumberTypes(p.cfg),
		Logger:          slog.Default(),
	}
	if opts.fulltext {
		cfg.Harvester = fulltext.New(p.cfg.HarvesterConfig(), fulltext.WithLogger(slog.Default()))
	}
	builder := index.NewBuilder(cfg)

	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		if os.IsNotExist(err) {
			return ierrors.New(ierrors.ErrCodeFileNotFound, "input file not found", err).WithDetail("path", path)
		}
		return ierrors.IOError("cannot open input", err).WithDetail("path", path)
	}
	defer func() { _ = f.Close() }()

	format := marc.Format(strings.ToLower(p.cfg.Index.Format))
	if format == "" {
		format = marc.DetectFormat(path)
	}
	reader := marc.NewReader(f, format)

	out := output.New(cmd.OutOrStdout())
	enc := json.NewEncoder(cmd.OutOrStdout())
	shown, bad := 0, 0
	for opts.limit <= 0 || shown < opts.limit {
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if !errors.Is(err, marc.ErrMalformedRecord) {
				return ierrors.IOError("cannot read input", err).WithDetail("path", path)
			}
			bad++
			if bad >= extractMalformedLimit {
				return ierrors.New(ierrors.ErrCodeRecordMalformed, "too many malformed records", err).
					WithDetail("path", path)
			}
			slog.Warn("malformed_record", slog.String("path", path), slog.String("error", err.Error()))
			continue
		}
		bad = 0

		if opts.id != "" {
			if id, _ := rec.FirstFieldVal(builder.IDSpec()); id != opts.id {
				continue
			}
		}

		res, err := builder.Build(ctx, rec)
		if errors.Is(err, index.ErrNoID) {
			continue
		}
		if err != nil {
			return err
		}
		if index.IsDeleted(rec) {
			res.Document.Add("deleted", "true")
		}
		shown++

		if opts.jsonOutput {
			if err := enc.Encode(res.Document); err != nil {
				return err
			}
			continue
		}
		printDocument(out, shown, res.Document)
	}

	if shown == 0 {
		if opts.id != "" {
			return ierrors.New(ierrors.ErrCodeInvalidInput, fmt.Sprintf("record %s not found", opts.id), nil).
				WithDetail("path", path)
		}
		if !opts.jsonOutput {
			out.Status("", "No records.")
		}
	}
	return nil
}

func printDocument(out *output.Writer, n int, doc *store.Document) {
	if n > 1 {
		out.Newline()
	}
	out.Heading(doc.ID)
	out.Fields(doc.FieldNames(), func(name string) []string {
		return doc.Fields[name]
	})
}
