package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/vidflow-dev/vidflow/internal/catalog"
	"github.com/vidflow-dev/vidflow/internal/cli/userconfig"
	"github.com/vidflow-dev/vidflow/internal/models"
)

const defaultResolution = "720p"

type streamOptions struct {
	resolution string
	open       bool
}

// videoPicker lets the user choose a video when no id was given
type videoPicker func(videos []models.Video) (models.Video, error)

// NewStreamCmd creates the stream command
func NewStreamCmd(g *Globals) *cobra.Command {
	var opts streamOptions

	cmd := &cobra.Command{
		Use:   "stream [video-id]",
		Short: "Print (or open) the streaming URL of a video",
		Long: `Print the adaptive streaming manifest URL of a video.

Without a video id an interactive picker is shown. The resolution falls back
to the closest lower one the video offers.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := g.session()
			if err != nil {
				return err
			}
			if !sess.IsAuthenticated() {
				return errNotAuthenticated
			}

			if opts.resolution == "" {
				opts.resolution = defaultResolution
				if cfg, err := userconfig.Load(); err == nil && cfg.PreferredResolution != "" {
					opts.resolution = cfg.PreferredResolution
				}
			}

			var id string
			if len(args) == 1 {
				id = args[0]
			}
			return runStream(cmd.Context(), cmd.OutOrStdout(), sess.API(), id, opts, promptVideo, OpenBrowser)
		},
	}

	cmd.Flags().StringVarP(&opts.resolution, "resolution", "r", "", "Preferred resolution, e.g. 480p, 720p, 1080p (default 720p)")
	cmd.Flags().BoolVar(&opts.open, "open", false, "Open the URL in the default browser")

	return cmd
}

func runStream(ctx context.Context, out io.Writer, api videoAPI, id string, opts streamOptions, pick videoPicker, open func(string) error) error {
	videos, err := api.Videos(ctx)
	if err != nil {
		return authError("failed to list videos", err)
	}

	var video models.Video
	if id == "" {
		if len(videos) == 0 {
			return errors.New("no videos available")
		}
		if video, err = pick(videos); err != nil {
			return err
		}
	} else {
		found := false
		for _, v := range videos {
			if v.ID == id {
				video, found = v, true
				break
			}
		}
		if !found {
			return fmt.Errorf("video %q not found", id)
		}
	}

	resolution := catalog.SelectResolution(catalog.Resolutions(video), opts.resolution)
	streamURL := api.StreamURL(video.ID, resolution)

	fmt.Fprintf(out, "%s (%s)\n", video.Title, resolution)
	fmt.Fprintln(out, streamURL)

	if opts.open {
		if err := open(streamURL); err != nil {
			return err
		}
	}
	return nil
}

// promptVideo shows an interactive video picker
func promptVideo(videos []models.Video) (models.Video, error) {
	templates := &promptui.SelectTemplates{
		Label:    "{{ . }}",
		Active:   "> {{ .Title | cyan }} {{ .Category | faint }}",
		Inactive: "  {{ .Title }} {{ .Category | faint }}",
		Selected: "{{ .Title | green }}",
	}

	prompt := promptui.Select{
		Label:     "Select a video",
		Items:     videos,
		Templates: templates,
		Size:      10,
	}

	index, _, err := prompt.Run()
	if err != nil {
		return models.Video{}, fmt.Errorf("video selection cancelled: %w", err)
	}

	return videos[index], nil
}
