package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ibeckermayer/xarchive/internal/app"
	"github.com/ibeckermayer/xarchive/internal/archive"
	"github.com/ibeckermayer/xarchive/internal/types"
)

var viewFlags struct {
	keyword string
	from    string
	to      string
	page    int
	perPage int
	output  string
	list    bool
}

func init() {
	f := viewCmd.Flags()
	f.StringVarP(&viewFlags.keyword, "keyword", "k", "", "Case-insensitive text filter")
	f.StringVar(&viewFlags.from, "from", "", "First day of the date window, YYYY-MM-DD (default: earliest post)")
	f.StringVar(&viewFlags.to, "to", "", "Last day of the date window, YYYY-MM-DD (default: latest post)")
	f.IntVarP(&viewFlags.page, "page", "p", 1, "Page number")
	f.IntVar(&viewFlags.perPage, "per-page", 0, "Results per page: 10, 50 or 100 (default from config)")
	f.StringVarP(&viewFlags.output, "output", "o", "table", "Output format: table, json or yaml")
	f.BoolVar(&viewFlags.list, "list", false, "List available archives instead of showing one")
	rootCmd.AddCommand(viewCmd)
}

var viewCmd = &cobra.Command{
	Use:   "view [target | path]",
	Short: "Browses an archive with keyword and date filters. Defaults to the newest archive.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := app.New(cfg, nil)

		if viewFlags.list {
			archives, err := a.Archives(cmd.Context())
			if err != nil {
				return err
			}
			renderArchiveList(cmd.OutOrStdout(), archives)
			return nil
		}

		arc, err := openArchive(a, args)
		if err != nil {
			return err
		}

		filter, err := viewFilter(arc.Posts)
		if err != nil {
			return err
		}
		perPage := viewFlags.perPage
		if perPage == 0 {
			perPage = cfg.Viewer.PerPage
		}
		page := archive.Paginate(archive.Apply(arc.Posts, filter), viewFlags.page, perPage)

		w := cmd.OutOrStdout()
		switch viewFlags.output {
		case "json":
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(page.Posts)
		case "yaml":
			enc := yaml.NewEncoder(w)
			defer enc.Close()
			return enc.Encode(page.Posts)
		case "table":
			renderPage(w, arc, page)
			return nil
		default:
			return fmt.Errorf("unknown output format %q", viewFlags.output)
		}
	},
}

func openArchive(a *app.App, args []string) (*archive.Archive, error) {
	if len(args) == 0 {
		return a.LatestArchive()
	}
	arg := args[0]
	if strings.HasSuffix(arg, ".json") {
		return archive.Load(arg)
	}
	path := a.Files().ArchivePath(types.NormalizeTarget(arg))
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("no archive for %s: %w", arg, err)
	}
	return archive.Load(path)
}

// viewFilter builds the filter from flags. Without explicit bounds the window
// spans the archive's known dates, so undated posts are left out.
func viewFilter(posts []types.Post) (archive.Filter, error) {
	f := archive.Filter{Keyword: viewFlags.keyword}
	first, last, ok := archive.DateRange(posts)
	if ok {
		f.From, f.To = first, last
	}

	if viewFlags.from != "" {
		d, err := time.Parse(types.DateLayout, viewFlags.from)
		if err != nil {
			return f, fmt.Errorf("invalid --from %q: %w", viewFlags.from, err)
		}
		f.From = d
	}
	if viewFlags.to != "" {
		d, err := time.Parse(types.DateLayout, viewFlags.to)
		if err != nil {
			return f, fmt.Errorf("invalid --to %q: %w", viewFlags.to, err)
		}
		f.To = d
	}
	return f, nil
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	return t
}

func renderPage(w io.Writer, arc *archive.Archive, page archive.Page) {
	t := newTable(w)
	t.SetTitle(fmt.Sprintf("%s (%s)", arc.Target, humanize.Time(arc.ModTime)))
	t.AppendHeader(table.Row{"Date", "Author", "Flags", "Text", "URL"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Text", WidthMax: 60, Transformer: func(v any) string {
			return strings.Join(strings.Fields(fmt.Sprint(v)), " ")
		}},
	})

	for _, p := range page.Posts {
		author := "@" + p.Author
		if p.IsRetweet {
			author = text.FgCyan.Sprint(author)
		}
		t.AppendRow(table.Row{p.Date, author, postFlags(p), p.Text, p.URL})
	}

	t.AppendFooter(table.Row{
		fmt.Sprintf("page %d/%d", page.Number, page.Pages),
		fmt.Sprintf("%s results", humanize.Comma(int64(page.Total))),
	})
	t.Render()
}

func postFlags(p types.Post) string {
	var flags []string
	if p.IsRetweet {
		flags = append(flags, "reshare")
	}
	if p.IsReply {
		flags = append(flags, "reply")
	}
	if p.HasMedia {
		flags = append(flags, "media")
	}
	return strings.Join(flags, ",")
}

func renderArchiveList(w io.Writer, archives []*archive.Archive) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Target", "Posts", "Dates", "Modified", "Path"})
	for _, a := range archives {
		dates := "-"
		if first, last, ok := archive.DateRange(a.Posts); ok {
			dates = first.Format(types.DateLayout) + " .. " + last.Format(types.DateLayout)
		}
		t.AppendRow(table.Row{a.Target, humanize.Comma(int64(len(a.Posts))), dates, humanize.Time(a.ModTime), a.Path})
	}
	t.Render()
}
