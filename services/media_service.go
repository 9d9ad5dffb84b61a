package services

import (
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"spec-dating-system/utils"
)

type MediaService struct {
	Media utils.MediaStore
}

func NewMediaService(media utils.MediaStore) *MediaService {
	return &MediaService{Media: media}
}

// UploadAnswerMedia handles POST /media: stores one uploaded file and
// returns the media id to attach to an answer.
func (s *MediaService) UploadAnswerMedia(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil || fileHeader.Size == 0 {
		return c.Status(400).JSON(fiber.Map{"error": "file is required"})
	}

	ext := filepath.Ext(fileHeader.Filename)
	if ext == "" {
		ext = ".jpg"
	}
	key := "answers/" + uuid.NewString() + ext

	url, err := s.Media.Upload(fileHeader, key)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to upload media"})
	}
	return c.Status(201).JSON(fiber.Map{"media_id": key, "url": url})
}
