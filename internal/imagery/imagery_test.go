package imagery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRewriteDeliveryURL(t *testing.T) {
	raw := "http://res.example.com/demo/image/upload/v123/pic.png"
	got := RewriteDeliveryURL(raw, 636)
	want := "https://res.example.com/demo/image/upload/c_scale,w_636,q_auto:eco,f_webp/v123/pic.png"
	if got != want {
		t.Errorf("RewriteDeliveryURL = %q, want %q", got, want)
	}
}

func testImageBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestLocalResizeScalesDown(t *testing.T) {
	data := testImageBytes(t, 1272, 720)
	out, err := LocalResize(data, 636)
	if err != nil {
		t.Fatalf("LocalResize: %v", err)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decoding output: %v", err)
	}
	if cfg.Width != 636 {
		t.Errorf("width = %d, want 636", cfg.Width)
	}
	if cfg.Height != 360 {
		t.Errorf("height = %d, want 360", cfg.Height)
	}
}

func TestLocalResizeKeepsSmallImages(t *testing.T) {
	data := testImageBytes(t, 400, 225)
	out, err := LocalResize(data, 636)
	if err != nil {
		t.Fatalf("LocalResize: %v", err)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decoding output: %v", err)
	}
	if cfg.Width != 400 {
		t.Errorf("width = %d, want 400 (no upscaling)", cfg.Width)
	}
}

// A 1x1 GIF. The test package deliberately does not import image/gif:
// decoding must work off the registrations in this package alone, the
// same way the production binaries see them.
var tinyGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00,
	0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00,
	0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

func TestLocalResizeRegistersDecoders(t *testing.T) {
	out, err := LocalResize(tinyGIF, 636)
	if err != nil {
		t.Fatalf("LocalResize: %v", err)
	}
	if _, err := jpeg.DecodeConfig(bytes.NewReader(out)); err != nil {
		t.Fatalf("output is not JPEG: %v", err)
	}
}

func TestUploadID(t *testing.T) {
	ts := time.Unix(1700000000, 0)
	got := UploadID("rec_ABC 1", "Primary", ts)
	want := "pivot5-rec-abc-1-primary-1700000000"
	if got != want {
		t.Errorf("UploadID = %q, want %q", got, want)
	}
}

func TestCloudflareHostRetriesOnConflict(t *testing.T) {
	var ids []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Fatalf("parsing form: %v", err)
		}
		id := r.FormValue("id")
		ids = append(ids, id)
		if len(ids) == 1 {
			w.WriteHeader(http.StatusConflict)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"result": map[string]interface{}{
				"variants": []string{"https://imagedelivery.example/" + id + "/public"},
			},
		})
	}))
	defer server.Close()

	host := NewCloudflareHost("acct", "token")
	host.SetAPIBase(server.URL)
	host.SetHTTPClient(server.Client())
	host.now = func() time.Time { return time.Unix(1700000000, 0) }

	url, err := host.Upload(context.Background(), "rec1", "primary", []byte("img"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("attempts = %d, want 2", len(ids))
	}
	if ids[0] == ids[1] {
		t.Errorf("retry reused id %q", ids[0])
	}
	if url == "" {
		t.Error("empty variant URL")
	}
}

type stubGenerator struct {
	data []byte
	err  error
}

func (s stubGenerator) Generate(ctx context.Context, prompt string) ([]byte, error) {
	return s.data, s.err
}

func TestStrategyFallsBack(t *testing.T) {
	strat := &Strategy{
		Primary:  stubGenerator{err: errors.New("quota")},
		Fallback: stubGenerator{data: []byte("img")},
	}
	data, source, err := strat.Generate(context.Background(), "p")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if source != SourceFallback {
		t.Errorf("source = %q", source)
	}
	if string(data) != "img" {
		t.Errorf("data = %q", data)
	}
}

func TestStrategyBothFail(t *testing.T) {
	strat := &Strategy{
		Primary:  stubGenerator{err: errors.New("quota")},
		Fallback: stubGenerator{err: errors.New("down")},
	}
	_, source, err := strat.Generate(context.Background(), "p")
	if err == nil {
		t.Fatal("expected error")
	}
	if source != SourceNone {
		t.Errorf("source = %q", source)
	}
}

func TestOptimizeWithFallbackUsesLocal(t *testing.T) {
	data := testImageBytes(t, 1272, 720)
	out := OptimizeWithFallback(context.Background(), failingOptimizer{}, data, 636)
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decoding output: %v", err)
	}
	if cfg.Width != 636 {
		t.Errorf("width = %d, want 636", cfg.Width)
	}
}

type failingOptimizer struct{}

func (failingOptimizer) Optimize(ctx context.Context, data []byte) ([]byte, error) {
	return nil, fmt.Errorf("cdn down")
}
