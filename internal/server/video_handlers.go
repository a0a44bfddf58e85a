package server

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"regexp"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/vidflow-dev/vidflow/internal/models"
)

var (
	resolutionPattern = regexp.MustCompile(`^[0-9]{3,4}p$`)
	// manifests and their segments only
	streamFilePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+\.(m3u8|ts|m4s|mp4)$`)
)

var streamContentTypes = map[string]string{
	".m3u8": "application/vnd.apple.mpegurl",
	".ts":   "video/mp2t",
	".m4s":  "video/iso.segment",
	".mp4":  "video/mp4",
}

func (s *Server) listVideos(c *gin.Context) {
	var records []models.VideoRecord
	if err := s.db.Order("created_at DESC").Find(&records).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to list videos")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": msgInternal})
		return
	}

	videos := make([]models.Video, len(records))
	for i := range records {
		videos[i] = records[i].ToVideo()
	}

	c.JSON(http.StatusOK, videos)
}

// serveStream serves HLS manifests and segments from
// MEDIA_DIR/{id}/{resolution}/{file}
func (s *Server) serveStream(c *gin.Context) {
	id := c.Param("id")
	resolution := c.Param("resolution")
	file := c.Param("file")

	if !resolutionPattern.MatchString(resolution) || !streamFilePattern.MatchString(file) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
		return
	}

	var record models.VideoRecord
	if err := models.FindByID(s.db, id, &record); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
			return
		}
		s.logger.Error().Err(err).Str("video_id", id).Msg("Failed to find video")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": msgInternal})
		return
	}

	// record.ID comes from the database, never from the path
	path := filepath.Join(s.config.Media.Dir, record.ID, resolution, file)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
		return
	}

	c.Header("Content-Type", streamContentTypes[filepath.Ext(file)])
	c.File(path)
}
