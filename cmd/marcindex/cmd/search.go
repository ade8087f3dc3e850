package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/marcindex/internal/config"
	ierrors "github.com/Aman-CERP/marcindex/internal/errors"
	"github.com/Aman-CERP/marcindex/internal/geo"
	"github.com/Aman-CERP/marcindex/internal/index"
	"github.com/Aman-CERP/marcindex/internal/output"
	"github.com/Aman-CERP/marcindex/internal/store"
)

type searchOptions struct {
	limit  int
	bbox   string
	format string
	fields []string
}

// defaultSearchFields are shown in text output when --fields is not given.
var defaultSearchFields = []string{
	"title",
	"author",
	"publishDate",
	"callnumber-raw",
	"dewey-raw",
	"long_lat_display",
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the local index",
		Long: `Query the local bleve index built by 'marcindex index'.

The query uses bleve query-string syntax: bare words search all text
fields, "field:value" restricts to one field and +/- require or exclude
a term. An empty query matches every document.

--bbox keeps records whose coordinates (034) fall inside a bounding box,
given as "west,east,north,south" or ENVELOPE(west,east,north,south).`,
		Example: `  marcindex search weather
  marcindex search 'topic_facet:Maps +publishDate:1999'
  marcindex search --bbox -80,-70,50,40 atlas
  marcindex search --format json -n 50 'author:smith'`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			return runSearch(cmd, query, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().StringVar(&opts.bbox, "bbox", "", "Bounding box: west,east,north,south")
	cmd.Flags().StringVar(&opts.format, "format", "text", "Output format: text or json")
	cmd.Flags().StringSliceVar(&opts.fields, "fields", nil, "Fields to show (default: title, author, dates, call numbers)")

	return cmd
}

func runSearch(cmd *cobra.Command, query string, opts searchOptions) error {
	ctx := cmd.Context()

	if opts.format != "text" && opts.format != "json" {
		return ierrors.ValidationError(fmt.Sprintf("invalid format %q", opts.format), nil).
			WithSuggestion("Use --format text or --format json")
	}
	var bbox *geo.Envelope
	if opts.bbox != "" {
		env, err := parseBBox(opts.bbox)
		if err != nil {
			return err
		}
		bbox = &env
	}

	p, err := loadProject(cmd)
	if err != nil {
		return err
	}
	if p.cfg.Output.Backend != config.BackendBleve {
		return ierrors.ValidationError("search needs the bleve output backend", nil).
			WithDetail("backend", p.cfg.Output.Backend).
			WithSuggestion("Load " + p.cfg.OutputPath(p.root) + " into your search server instead")
	}

	path := p.cfg.OutputPath(p.root)
	if _, err := os.Stat(path); err != nil {
		return ierrors.New(ierrors.ErrCodeFileNotFound, "no index found", err).
			WithDetail("path", path).
			WithSuggestion("Run 'marcindex index <files>' first")
	}

	lock := index.NewDirLock(p.dataDir())
	if err := lock.TryLock(); err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	idx, err := store.NewBleveIndex(path)
	if err != nil {
		return ierrors.IOError("cannot open index", err).WithDetail("path", path)
	}
	defer func() { _ = idx.Close() }()

	fields := opts.fields
	hits, total, err := idx.Search(ctx, query, store.SearchOptions{
		Limit:  opts.limit,
		BBox:   bbox,
		Fields: fields,
	})
	if err != nil {
		return ierrors.New(ierrors.ErrCodeSearchFailed, "search failed", err).WithDetail("query", query)
	}

	if opts.format == "json" {
		return writeSearchJSON(cmd, query, total, hits)
	}

	out := output.New(cmd.OutOrStdout())
	if len(hits) == 0 {
		out.Status("", "No results.")
		return nil
	}
	out.Statusf("🔎", "%d of %d results", len(hits), total)
	if len(fields) == 0 {
		fields = defaultSearchFields
	}
	for i, h := range hits {
		out.Newline()
		out.Heading(fmt.Sprintf("%d. %s (%.3f)", i+1, h.ID, h.Score))
		out.Fields(fields, func(name string) []string {
			return hitValues(h.Fields[name])
		})
	}
	return nil
}

// parseBBox accepts "w,e,n,s" or the ENVELOPE form.
func parseBBox(s string) (geo.Envelope, error) {
	invalid := func(err error) error {
		return ierrors.New(ierrors.ErrCodeInvalidQuery, "invalid bounding box", err).
			WithDetail("bbox", s).
			WithSuggestion("Use west,east,north,south in decimal degrees, e.g. -80,-70,50,40")
	}

	var env geo.Envelope
	if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(s)), "ENVELOPE(") {
		e, err := geo.ParseEnvelope(s)
		if err != nil {
			return geo.Envelope{}, invalid(err)
		}
		env = e
	} else {
		parts := strings.Split(s, ",")
		if len(parts) != 4 {
			return geo.Envelope{}, invalid(fmt.Errorf("want 4 bounds, got %d", len(parts)))
		}
		var bounds [4]float64
		for i, part := range parts {
			v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
			if err != nil {
				return geo.Envelope{}, invalid(err)
			}
			bounds[i] = v
		}
		env = geo.Envelope{West: bounds[0], East: bounds[1], North: bounds[2], South: bounds[3]}
	}
	if !env.Valid() {
		return geo.Envelope{}, invalid(fmt.Errorf("bounds out of range: %s", env))
	}
	return env, nil
}

// hitValues flattens a stored field: bleve returns a single value as a
// scalar and repeated values as a slice.
func hitValues(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, hitValues(item)...)
		}
		return out
	case []string:
		return t
	default:
		return []string{fmt.Sprint(t)}
	}
}

type searchJSON struct {
	Query string          `json:"query"`
	Total uint64          `json:"total"`
	Hits  []searchHitJSON `json:"hits"`
}

type searchHitJSON struct {
	ID     string              `json:"id"`
	Score  float64             `json:"score"`
	Fields map[string][]string `json:"fields"`
}

func writeSearchJSON(cmd *cobra.Command, query string, total uint64, hits []store.Hit) error {
	res := searchJSON{Query: query, Total: total, Hits: make([]searchHitJSON, 0, len(hits))}
	for _, h := range hits {
		names := make([]string, 0, len(h.Fields))
		for name := range h.Fields {
			names = append(names, name)
		}
		sort.Strings(names)
		fields := make(map[string][]string, len(names))
		for _, name := range names {
			fields[name] = hitValues(h.Fields[name])
		}
		res.Hits = append(res.Hits, searchHitJSON{ID: h.ID, Score: h.Score, Fields: fields})
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
