package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/menta2k/arch-designer/pkg/types"
)

// EnsureDir creates a directory if it doesn't exist
func EnsureDir(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}

// GetFileExtension returns the file extension without the dot
func GetFileExtension(filename string) string {
	ext := filepath.Ext(filename)
	if len(ext) > 0 {
		return strings.ToLower(ext[1:])
	}
	return ""
}

// IsImageFile checks if a file has an extension the editor accepts
func IsImageFile(filename string) bool {
	return MimeTypeForFile(filename) != ""
}

// MimeTypeForFile maps an accepted image extension to its media type
func MimeTypeForFile(filename string) string {
	switch GetFileExtension(filename) {
	case "png":
		return types.MimePNG
	case "jpg", "jpeg":
		return types.MimeJPEG
	case "webp":
		return types.MimeWEBP
	}
	return ""
}

// ExtensionForMime returns the file extension for an output media type
func ExtensionForMime(mimeType string) string {
	switch mimeType {
	case types.MimePNG:
		return "png"
	case types.MimeWEBP:
		return "webp"
	}
	return "jpg"
}

// CroppedFilename derives the output path for an edited image
func CroppedFilename(inputFile, outputDir, mimeType string) string {
	baseName := filepath.Base(inputFile)
	nameWithoutExt := strings.TrimSuffix(baseName, filepath.Ext(baseName))
	if outputDir == "" {
		outputDir = filepath.Dir(inputFile)
	}
	outputName := fmt.Sprintf("%s_cropped.%s", nameWithoutExt, ExtensionForMime(mimeType))
	return filepath.Join(outputDir, outputName)
}

// FileExists checks if a file exists and is not a directory
func FileExists(filename string) bool {
	info, err := os.Stat(filename)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// SanitizeFilename removes or replaces invalid characters in filenames
func SanitizeFilename(filename string) string {
	invalid := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|"}
	result := filename

	for _, char := range invalid {
		result = strings.ReplaceAll(result, char, "_")
	}

	// Remove leading/trailing spaces and dots
	result = strings.Trim(result, " .")

	return result
}

// FormatFileSize formats file size in human-readable format
func FormatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}

	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
