package validation

import (
	"errors"
	"fmt"
	"io"

	"github.com/gabriel-vasile/mimetype"
	"github.com/loopfeed/loopfeed/internal/model"
)

var (
	ErrFileTooLarge = errors.New("file too large")
	ErrFileType     = errors.New("invalid file type")
	ErrFileEmpty    = errors.New("file is empty")
)

// DefaultUploadMaxSize is the editor's upload ceiling.
const DefaultUploadMaxSize = 20 << 20

// FileConstraints defines validation rules for file uploads
type FileConstraints struct {
	AllowedMimeTypes []string
	MaxSize          int64
}

var (
	ImageMimeTypes = []string{"image/jpeg", "image/png", "image/webp"}
	VideoMimeTypes = []string{"video/mp4", "video/webm"}
	AudioMimeTypes = []string{"audio/mpeg", "audio/mp3", "audio/wav", "audio/ogg"}

	// The publish re-check only knows mpeg audio.
	PublishAudioMimeTypes = []string{"audio/mpeg", "audio/mp3"}
)

// UploadConstraints returns the editor rules for files on cards of kind.
func UploadConstraints(kind model.CardKind, maxSize int64) (FileConstraints, error) {
	switch kind {
	case model.CardImage:
		return FileConstraints{AllowedMimeTypes: ImageMimeTypes, MaxSize: maxSize}, nil
	case model.CardVideo:
		return FileConstraints{AllowedMimeTypes: VideoMimeTypes, MaxSize: maxSize}, nil
	case model.CardSong:
		return FileConstraints{AllowedMimeTypes: AudioMimeTypes, MaxSize: maxSize}, nil
	}
	return FileConstraints{}, fmt.Errorf("%s cards do not take uploads", kind)
}

// PublishConstraints returns the rules re-checked right before a staged file
// is uploaded. Any image, video or mpeg audio type passes.
func PublishConstraints(maxSize int64) FileConstraints {
	allowed := make([]string, 0, len(ImageMimeTypes)+len(VideoMimeTypes)+len(PublishAudioMimeTypes))
	allowed = append(allowed, ImageMimeTypes...)
	allowed = append(allowed, VideoMimeTypes...)
	allowed = append(allowed, PublishAudioMimeTypes...)
	return FileConstraints{AllowedMimeTypes: allowed, MaxSize: maxSize}
}

// ValidateFile checks size first, then the type detected from the file's
// leading bytes. declared is only used when the content is not recognised.
// It returns the accepted MIME type.
func ValidateFile(r io.Reader, size int64, declared string, c FileConstraints) (string, error) {
	if size > c.MaxSize {
		return "", fmt.Errorf("%w: maximum size is %d MB", ErrFileTooLarge, c.MaxSize/(1<<20))
	}
	if size == 0 {
		return "", ErrFileEmpty
	}

	detected, err := mimetype.DetectReader(r)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	for _, allowed := range c.AllowedMimeTypes {
		if detected.Is(allowed) {
			return allowed, nil
		}
	}

	if detected.Is("application/octet-stream") {
		for _, allowed := range c.AllowedMimeTypes {
			if declared == allowed {
				return declared, nil
			}
		}
	}

	return "", fmt.Errorf("%w (detected: %s)", ErrFileType, detected.String())
}
