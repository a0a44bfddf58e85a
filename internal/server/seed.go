package server

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vidflow-dev/vidflow/internal/models"
)

// seedVideo is one catalog entry of the seed file
type seedVideo struct {
	ID          string    `yaml:"id"`
	Title       string    `yaml:"title"`
	Description string    `yaml:"description"`
	Thumbnail   string    `yaml:"thumbnail"`
	Category    string    `yaml:"category"`
	CreatedAt   time.Time `yaml:"created_at"`
	Resolutions []string  `yaml:"resolutions"`
}

type seedFile struct {
	Videos []seedVideo `yaml:"videos"`
}

// seedCatalog loads videos from a YAML file when the catalog is empty
func (s *Server) seedCatalog(path string) error {
	var count int64
	if err := s.db.Model(&models.VideoRecord{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count videos: %w", err)
	}
	if count > 0 {
		s.logger.Debug().Int64("videos", count).Msg("Catalog already seeded")
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read seed file: %w", err)
	}

	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("failed to parse seed file: %w", err)
	}

	records := make([]models.VideoRecord, 0, len(seed.Videos))
	for i, v := range seed.Videos {
		if strings.TrimSpace(v.Title) == "" {
			return fmt.Errorf("seed video %d: title is required", i)
		}
		record := models.VideoRecord{
			Title:       v.Title,
			Description: v.Description,
			Thumbnail:   v.Thumbnail,
			Category:    v.Category,
			Resolutions: strings.Join(v.Resolutions, ","),
		}
		record.ID = v.ID
		record.CreatedAt = v.CreatedAt
		if record.CreatedAt.IsZero() {
			record.CreatedAt = s.clock.Now()
		}
		records = append(records, record)
	}

	if len(records) == 0 {
		return nil
	}
	if err := s.db.Create(&records).Error; err != nil {
		return fmt.Errorf("failed to seed videos: %w", err)
	}

	s.logger.Info().Int("videos", len(records)).Str("file", path).Msg("Catalog seeded")
	return nil
}
