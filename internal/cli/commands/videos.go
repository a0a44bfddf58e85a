package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/vidflow-dev/vidflow/internal/catalog"
	"github.com/vidflow-dev/vidflow/internal/models"
)

type videosOptions struct {
	category   string
	search     string
	latest     bool
	categories bool
}

// NewVideosCmd creates the videos command
func NewVideosCmd(g *Globals) *cobra.Command {
	var opts videosOptions

	cmd := &cobra.Command{
		Use:     "videos",
		Aliases: []string{"ls"},
		Short:   "Browse the video catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := g.session()
			if err != nil {
				return err
			}
			if !sess.IsAuthenticated() {
				return errNotAuthenticated
			}
			return runVideos(cmd.Context(), cmd.OutOrStdout(), sess.API(), clockwork.NewRealClock(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.category, "category", "", "Only show videos of this category")
	cmd.Flags().StringVar(&opts.search, "search", "", "Only show videos whose title or description matches")
	cmd.Flags().BoolVar(&opts.latest, "latest", false, "Only show videos added in the last 5 days, newest first")
	cmd.Flags().BoolVar(&opts.categories, "categories", false, "List the categories instead of videos")

	return cmd
}

func runVideos(ctx context.Context, out io.Writer, api videoAPI, clock clockwork.Clock, opts videosOptions) error {
	svc := catalog.NewService(api, clock)

	var (
		videos []models.Video
		err    error
	)
	if opts.latest {
		videos, err = svc.Latest(ctx)
	} else {
		videos, err = svc.Videos(ctx)
	}
	if err != nil {
		return authError("failed to list videos", err)
	}

	if opts.categories {
		cats := catalog.Categories(videos)
		if len(cats) == 0 {
			fmt.Fprintln(out, "No categories found.")
			return nil
		}
		for _, c := range cats {
			fmt.Fprintln(out, c)
		}
		return nil
	}

	if opts.category != "" {
		videos = catalog.FilterByCategory(videos, opts.category)
	}
	if opts.search != "" {
		videos = catalog.Search(videos, opts.search)
	}

	if len(videos) == 0 {
		fmt.Fprintln(out, "No videos found.")
		return nil
	}

	// Filtered views are flat; the full catalog is shown per category
	if opts.latest || opts.category != "" || opts.search != "" {
		printVideoTable(out, videos)
		return nil
	}

	for i, group := range catalog.GroupByCategory(videos) {
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintf(out, "%s (%d)\n\n", strings.ToUpper(group.Category), len(group.Videos))
		printVideoTable(out, group.Videos)
	}
	return nil
}

func printVideoTable(out io.Writer, videos []models.Video) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tCATEGORY\tADDED\tRESOLUTIONS")
	fmt.Fprintln(w, "──\t─────\t────────\t─────\t───────────")

	for _, v := range videos {
		added := "-"
		if v.CreatedAt != nil {
			added = v.CreatedAt.Local().Format(time.DateOnly)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			v.ID,
			v.Title,
			firstNonEmpty(v.Category, "-"),
			added,
			strings.Join(catalog.Resolutions(v), ", "),
		)
	}

	w.Flush()
}
