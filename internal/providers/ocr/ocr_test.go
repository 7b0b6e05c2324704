package ocr

import (
	"context"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/PageSense/backend/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/PageSense/backend/internal/shared/types"
)

func writePNG(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shot.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	return path
}

func TestHTTPDetector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, _, err := r.FormFile("image")
		if err != nil {
			http.Error(w, `{"error":"no image"}`, http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(file)
		if len(data) == 0 {
			http.Error(w, `{"error":"empty"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"blocks":[
			{"text":"$49.99","bounds":{"top":100,"left":10,"width":60,"height":20},"confidence":0.93},
			{"text":"Widget","box":[10,80,90,96],"confidence":0.88},
			{"text":"   ","confidence":0.5}
		]}`))
	}))
	defer srv.Close()

	d := NewHTTPDetector(srv.URL+"/detect", 5*time.Second, nil)
	blocks, err := d.DetectText(context.Background(), writePNG(t))
	require.NoError(t, err)
	require.Len(t, blocks, 2)

	assert.Equal(t, "$49.99", blocks[0].Text)
	assert.Equal(t, 0.93, blocks[0].Confidence)
	assert.Equal(t, types.Bounds{Top: 80, Left: 10, Width: 80, Height: 16}, blocks[1].Bounds)
}

func TestHTTPDetectorRejectsNonImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(path, []byte("<html><body>hi</body></html>"), 0o644))

	d := NewHTTPDetector("http://127.0.0.1:1/never", time.Second, nil)
	_, err := d.DetectText(context.Background(), path)
	assert.ErrorIs(t, err, ErrNotImage)
}

func TestHTTPDetectorBreakerOpens(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, `{"error":"down"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := NewHTTPDetector(srv.URL, 5*time.Second, nil)
	shot := writePNG(t)
	for i := 0; i < 3; i++ {
		_, err := d.DetectText(context.Background(), shot)
		require.Error(t, err)
	}

	_, err := d.DetectText(context.Background(), shot)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, 3, calls)
}

func TestStatic(t *testing.T) {
	s := &Static{Blocks: []types.OCRTextBlock{{Text: "a"}}}
	blocks, err := s.DetectText(context.Background(), "ignored")
	require.NoError(t, err)
	blocks[0].Text = "mutated"
	assert.Equal(t, "a", s.Blocks[0].Text)

	_, err = (&Static{Err: ErrNotImage}).DetectText(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotImage)
}
