// Package metadata derives descriptive attributes from the leading bytes of an
// upload. Extraction never fails; unknown input yields an empty map.
package metadata

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp"

	"github.com/basit/mediashare-backend/models"
)

// HeadSize is how many leading bytes callers should buffer for Sniff.
const HeadSize = 3072

// Extractor is the function form used by the file service.
type Extractor func(head []byte, category models.TypeCategory) map[string]any

// Extract returns width, height and dimensions for images whose header can be
// decoded, and a nil duration placeholder for videos.
func Extract(head []byte, category models.TypeCategory) map[string]any {
	out := map[string]any{}
	switch category {
	case models.TypeImage:
		cfg, _, err := image.DecodeConfig(bytes.NewReader(head))
		if err != nil {
			return out
		}
		out["width"] = cfg.Width
		out["height"] = cfg.Height
		out["dimensions"] = fmt.Sprintf("%dx%d", cfg.Width, cfg.Height)
	case models.TypeVideo:
		out["duration"] = nil
	}
	return out
}

// Sniff detects the mime type from content, without parameters.
func Sniff(head []byte) string {
	m := mimetype.Detect(head)
	return models.NormalizeMime(m.String())
}
