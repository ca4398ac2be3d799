package processing

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/arch-designer/pkg/types"
)

// jpegQuality matches the default quality of a browser canvas JPEG export
const jpegQuality = 92

// ErrUnsupportedFormat is returned for media types the editor does not accept
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Processor handles image loading and encoding
type Processor struct {
	httpClient *http.Client
}

// NewProcessor creates a new image processor
func NewProcessor() *Processor {
	return &Processor{
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// ImageInfo contains basic image metadata
type ImageInfo struct {
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	AspectRatio float64 `json:"aspect_ratio"`
	MimeType    string  `json:"mime_type"`
}

// GetImageInfo returns basic information about a source image
func (p *Processor) GetImageInfo(src *types.SourceImage) ImageInfo {
	b := src.Image.Bounds()
	return ImageInfo{
		Width:       b.Dx(),
		Height:      b.Dy(),
		AspectRatio: float64(b.Dx()) / float64(b.Dy()),
		MimeType:    src.MimeType,
	}
}

// LoadFromURL downloads an image and returns its bytes and media type
func (p *Processor) LoadFromURL(imageURL string) ([]byte, string, error) {
	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return nil, "", fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, "", fmt.Errorf("unsupported URL scheme: %s (only http and https are supported)", parsedURL.Scheme)
	}

	req, err := http.NewRequest(http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Arch-Designer/1.0")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("failed to download image: HTTP %d %s", resp.StatusCode, resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, "", fmt.Errorf("URL does not point to an image (Content-Type: %s)", contentType)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image data: %w", err)
	}
	return data, DetectMimeType(data), nil
}

// LoadFile reads an image file and sniffs its media type
func (p *Processor) LoadFile(path string) ([]byte, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image file: %w", err)
	}
	return data, DetectMimeType(data), nil
}

// LoadSmart loads an image from either a file path or URL
func (p *Processor) LoadSmart(source string) ([]byte, string, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return p.LoadFromURL(source)
	}
	return p.LoadFile(source)
}

// NewSourceImage decodes file bytes into an editable source image
func (p *Processor) NewSourceImage(name string, data []byte, mimeType string) (*types.SourceImage, error) {
	if mimeType == "" {
		mimeType = DetectMimeType(data)
	}
	img, err := Decode(data, mimeType)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("invalid image dimensions: %dx%d", b.Dx(), b.Dy())
	}
	return &types.SourceImage{
		Name:     name,
		Data:     data,
		DataURI:  DataURI(mimeType, data),
		MimeType: mimeType,
		Image:    img,
	}, nil
}

// DetectMimeType sniffs the media type of image bytes
func DetectMimeType(data []byte) string {
	ct := http.DetectContentType(data)
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = ct[:i]
	}
	return strings.TrimSpace(ct)
}

// IsAccepted reports whether the editor accepts the media type
func IsAccepted(mimeType string) bool {
	switch mimeType {
	case types.MimePNG, types.MimeJPEG, types.MimeWEBP:
		return true
	}
	return false
}

// OutputMimeType returns the media type an edited image is encoded as.
// PNG and WEBP are preserved, everything else becomes JPEG.
func OutputMimeType(sourceType string) string {
	switch sourceType {
	case types.MimePNG, types.MimeWEBP:
		return sourceType
	default:
		return types.MimeJPEG
	}
}

// Decode decodes image bytes, honoring EXIF orientation for JPEG
func Decode(data []byte, mimeType string) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err == nil {
		return img, nil
	}
	if mimeType == types.MimeWEBP {
		if img, werr := webp.Decode(bytes.NewReader(data)); werr == nil {
			return img, nil
		}
	}
	return nil, fmt.Errorf("failed to decode image: %w", err)
}

// Encode encodes an image in the output format for the given source type
func Encode(img image.Image, sourceType string) ([]byte, string, error) {
	outType := OutputMimeType(sourceType)

	var buf bytes.Buffer
	var err error
	switch outType {
	case types.MimeWEBP:
		err = webp.Encode(&buf, img, &webp.Options{Lossless: true})
	case types.MimePNG:
		err = imaging.Encode(&buf, img, imaging.PNG)
	default:
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality))
	}
	if err != nil {
		return nil, "", fmt.Errorf("encoding %s: %w", outType, err)
	}
	return buf.Bytes(), outType, nil
}

// EncodeEdited encodes an image into an EditedImage
func EncodeEdited(img image.Image, sourceType string) (types.EditedImage, error) {
	data, outType, err := Encode(img, sourceType)
	if err != nil {
		return types.EditedImage{}, err
	}
	return types.EditedImage{
		Data:     base64.StdEncoding.EncodeToString(data),
		MimeType: outType,
	}, nil
}

// DecodeEdited returns the raw bytes of an edited image
func DecodeEdited(e types.EditedImage) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(e.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 image: %w", err)
	}
	return data, nil
}

// DataURI encodes bytes as a base64 data URI
func DataURI(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// ParseDataURI splits a base64 data URI into media type and bytes
func ParseDataURI(uri string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, fmt.Errorf("not a data URI")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("malformed data URI")
	}
	mimeType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return "", nil, fmt.Errorf("data URI is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("failed to decode data URI: %w", err)
	}
	return mimeType, data, nil
}

// SaveEdited writes an edited image to disk
func (p *Processor) SaveEdited(e types.EditedImage, path string) error {
	data, err := DecodeEdited(e)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// DownloadFilename returns the name a generated image is downloaded as
func DownloadFilename(now time.Time) string {
	return "architectural-design-" + now.Format("20060102_150405") + ".png"
}
