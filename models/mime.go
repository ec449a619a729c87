package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MaxUploadSize is the largest accepted upload, in bytes.
const MaxUploadSize int64 = 100 << 20

var allowedMimeTypes = map[string]string{
	"image/jpeg":      "jpg",
	"image/png":       "png",
	"image/gif":       "gif",
	"image/webp":      "webp",
	"video/mp4":       "mp4",
	"video/webm":      "webm",
	"video/quicktime": "mov",
	"video/x-msvideo": "avi",
}

// NormalizeMime lower-cases a content type and strips parameters such as charset.
func NormalizeMime(mime string) string {
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return strings.ToLower(strings.TrimSpace(mime))
}

func IsAllowedMime(mime string) bool {
	_, ok := allowedMimeTypes[NormalizeMime(mime)]
	return ok
}

func AllowedMimeTypes() []string {
	out := make([]string, 0, len(allowedMimeTypes))
	for m := range allowedMimeTypes {
		out = append(out, m)
	}
	return out
}

// TypeCategoryFor maps the top-level token of a mime type to a category.
func TypeCategoryFor(mime string) (TypeCategory, bool) {
	top, _, _ := strings.Cut(NormalizeMime(mime), "/")
	switch top {
	case "image":
		return TypeImage, true
	case "video":
		return TypeVideo, true
	}
	return "", false
}

// ExtensionForMime returns the canonical extension (without dot) for an allowed mime type.
func ExtensionForMime(mime string) string {
	return allowedMimeTypes[NormalizeMime(mime)]
}

var sizeUnits = []string{"Bytes", "KB", "MB", "GB", "TB", "PB"}

// FormatBytes renders a byte count with 1024-based units and up to two decimals.
func FormatBytes(n int64) string {
	if n <= 0 {
		return "0 Bytes"
	}
	pow := int(math.Floor(math.Log(float64(n)) / math.Log(1024)))
	if pow >= len(sizeUnits) {
		pow = len(sizeUnits) - 1
	}
	value := float64(n) / math.Pow(1024, float64(pow))
	rounded := strconv.FormatFloat(math.Round(value*100)/100, 'f', -1, 64)
	return fmt.Sprintf("%s %s", rounded, sizeUnits[pow])
}
