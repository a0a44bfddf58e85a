package catalog

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/vidflow-dev/vidflow/internal/models"
)

// LatestWindow is how recent a video must be to count as latest
const LatestWindow = 5 * 24 * time.Hour

// Uncategorized groups videos that carry no category
const Uncategorized = "uncategorized"

// DefaultResolutions are offered when a video does not list its own
var DefaultResolutions = []string{"480p", "720p", "1080p"}

// Lister fetches the video catalog
type Lister interface {
	Videos(ctx context.Context) ([]models.Video, error)
}

// Service reads the catalog through the authorized API client
type Service struct {
	api   Lister
	clock clockwork.Clock
}

// NewService creates a catalog service. A nil clock uses the real one.
func NewService(api Lister, clock clockwork.Clock) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{api: api, clock: clock}
}

// Videos fetches the full catalog
func (s *Service) Videos(ctx context.Context) ([]models.Video, error) {
	videos, err := s.api.Videos(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	return videos, nil
}

// Latest fetches the catalog and keeps the videos of the last LatestWindow
func (s *Service) Latest(ctx context.Context) ([]models.Video, error) {
	videos, err := s.Videos(ctx)
	if err != nil {
		return nil, err
	}
	return Latest(videos, s.clock.Now()), nil
}

// Group is the set of videos sharing a folded category
type Group struct {
	Category string
	Videos   []models.Video
}

// Categories returns the distinct categories, lower-cased, in order of first
// appearance. Empty categories are skipped.
func Categories(videos []models.Video) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, v := range videos {
		key := fold(v.Category)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}

// GroupByCategory buckets videos by folded category. Groups follow first
// appearance; videos keep their catalog order inside a group.
func GroupByCategory(videos []models.Video) []Group {
	index := make(map[string]int)
	var groups []Group
	for _, v := range videos {
		key := fold(v.Category)
		if key == "" {
			key = Uncategorized
		}
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{Category: key})
		}
		groups[i].Videos = append(groups[i].Videos, v)
	}
	return groups
}

// FilterByCategory keeps the videos whose category folds to category
func FilterByCategory(videos []models.Video, category string) []models.Video {
	want := fold(category)
	var out []models.Video
	for _, v := range videos {
		key := fold(v.Category)
		if key == "" {
			key = Uncategorized
		}
		if key == want {
			out = append(out, v)
		}
	}
	return out
}

// Latest keeps videos created less than LatestWindow before now, newest first.
// Videos without a creation time are never latest.
func Latest(videos []models.Video, now time.Time) []models.Video {
	var out []models.Video
	for _, v := range videos {
		if v.CreatedAt == nil {
			continue
		}
		if now.Sub(*v.CreatedAt) < LatestWindow {
			out = append(out, v)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(*out[j].CreatedAt)
	})
	return out
}

// Search keeps videos whose title or description contains query, ignoring case
func Search(videos []models.Video, query string) []models.Video {
	q := fold(query)
	if q == "" {
		return videos
	}
	var out []models.Video
	for _, v := range videos {
		if strings.Contains(fold(v.Title), q) || strings.Contains(fold(v.Description), q) {
			out = append(out, v)
		}
	}
	return out
}

// Resolutions returns the resolutions a video can be played at
func Resolutions(v models.Video) []string {
	if len(v.Resolutions) == 0 {
		return DefaultResolutions
	}
	return v.Resolutions
}

// SelectResolution picks preferred when available, otherwise the highest
// resolution not above it, otherwise the lowest one. Unparseable entries are
// only chosen on an exact match. Returns "" when nothing is available.
func SelectResolution(available []string, preferred string) string {
	if len(available) == 0 {
		return ""
	}

	want, wantOK := height(preferred)
	var below, lowest string
	belowH, lowestH := -1, -1

	for _, r := range available {
		if strings.EqualFold(r, preferred) {
			return r
		}
		h, ok := height(r)
		if !ok {
			continue
		}
		if lowestH < 0 || h < lowestH {
			lowest, lowestH = r, h
		}
		if wantOK && h <= want && h > belowH {
			below, belowH = r, h
		}
	}

	switch {
	case below != "":
		return below
	case lowest != "":
		return lowest
	default:
		return available[0]
	}
}

// height parses "720p" style labels
func height(resolution string) (int, bool) {
	s := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(resolution)), "p")
	if s == "" {
		return 0, false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		// out of range
		return 0, false
	}
	return n, true
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
