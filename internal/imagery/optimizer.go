package imagery

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	_ "image/gif" // register decoders for LocalResize
	"image/jpeg"
	_ "image/png"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/pivotmedia/newsroom/internal/errclass"
	"github.com/pivotmedia/newsroom/internal/pkg/httpretry"
)

const (
	// Email body width target.
	DefaultTargetWidth = 636
	defaultJPEGQuality = 85
)

// CloudinaryOptimizer uploads raw generated bytes through an unsigned
// preset and pulls back a scaled, recompressed rendition.
type CloudinaryOptimizer struct {
	cloudName  string
	preset     string
	width      int
	httpClient httpretry.HTTPDoer
	uploadBase string
}

// NewCloudinaryOptimizer creates the CDN-backed optimizer.
func NewCloudinaryOptimizer(cloudName, preset string, width int) *CloudinaryOptimizer {
	if width <= 0 {
		width = DefaultTargetWidth
	}
	return &CloudinaryOptimizer{
		cloudName: cloudName,
		preset:    preset,
		width:     width,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: 60 * time.Second,
		}, 3),
		uploadBase: "https://api.cloudinary.com/v1_1",
	}
}

// SetHTTPClient allows overriding the HTTP client (useful for testing)
func (c *CloudinaryOptimizer) SetHTTPClient(client httpretry.HTTPDoer) {
	c.httpClient = client
}

// SetUploadBase overrides the API base (useful for testing)
func (c *CloudinaryOptimizer) SetUploadBase(base string) {
	c.uploadBase = base
}

// Optimize uploads the image and returns the bytes of the scaled
// rendition.
func (c *CloudinaryOptimizer) Optimize(ctx context.Context, data []byte) ([]byte, error) {
	form := url.Values{}
	form.Set("file", "data:image/png;base64,"+base64.StdEncoding.EncodeToString(data))
	form.Set("upload_preset", c.preset)

	endpoint := fmt.Sprintf("%s/%s/image/upload", c.uploadBase, c.cloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errclass.New(errclass.Transient, "cloudinary.upload", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading upload response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errclass.Newf(errclass.FromStatus(resp.StatusCode), "cloudinary.upload",
			"status %d", resp.StatusCode)
	}

	var parsed struct {
		SecureURL string `json:"secure_url"`
		URL       string `json:"url"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("parsing upload response: %w", err)
	}
	raw := parsed.SecureURL
	if raw == "" {
		raw = parsed.URL
	}
	if raw == "" {
		return nil, fmt.Errorf("upload response has no URL")
	}

	optimized := RewriteDeliveryURL(raw, c.width)
	fetchReq, err := http.NewRequestWithContext(ctx, http.MethodGet, optimized, nil)
	if err != nil {
		return nil, fmt.Errorf("creating fetch request: %w", err)
	}
	fetchResp, err := c.httpClient.Do(fetchReq)
	if err != nil {
		return nil, errclass.New(errclass.Transient, "cloudinary.fetch", err)
	}
	defer fetchResp.Body.Close()
	if fetchResp.StatusCode < 200 || fetchResp.StatusCode >= 300 {
		return nil, errclass.Newf(errclass.FromStatus(fetchResp.StatusCode), "cloudinary.fetch",
			"status %d", fetchResp.StatusCode)
	}
	return io.ReadAll(fetchResp.Body)
}

// RewriteDeliveryURL inserts the scale/quality/format transformation
// into a delivery URL and forces https.
func RewriteDeliveryURL(raw string, width int) string {
	transformed := strings.Replace(raw, "/upload/",
		fmt.Sprintf("/upload/c_scale,w_%d,q_auto:eco,f_webp/", width), 1)
	if strings.HasPrefix(transformed, "http://") {
		transformed = "https://" + strings.TrimPrefix(transformed, "http://")
	}
	return transformed
}

// LocalResize scales the image to the target width with Catmull-Rom
// interpolation and re-encodes JPEG. Used when no CDN optimizer is
// configured or it fails.
func LocalResize(data []byte, targetWidth int) ([]byte, error) {
	if targetWidth <= 0 {
		targetWidth = DefaultTargetWidth
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width <= targetWidth {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: defaultJPEGQuality}); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	newHeight := int(float64(height) * float64(targetWidth) / float64(width))
	dst := image.NewRGBA(image.Rect(0, 0, targetWidth, newHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: defaultJPEGQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Optimizer narrows an image to email-safe size.
type Optimizer interface {
	Optimize(ctx context.Context, data []byte) ([]byte, error)
}

// OptimizeWithFallback runs the CDN optimizer when present and falls
// back to a local resize.
func OptimizeWithFallback(ctx context.Context, opt Optimizer, data []byte, width int) []byte {
	if opt != nil {
		optimized, err := opt.Optimize(ctx, data)
		if err == nil {
			return optimized
		}
		log.Printf("[Imagery] CDN optimization failed, resizing locally: %v", err)
	}
	resized, err := LocalResize(data, width)
	if err != nil {
		log.Printf("[Imagery] local resize failed, using original bytes: %v", err)
		return data
	}
	return resized
}
