package certificate

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-pdf/fpdf"
	"github.com/go-pdf/fpdf/contrib/gofpdi"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/enrollment-service/internal/cache"
)

func templatePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 421, 298))
	for y := 0; y < 298; y++ {
		for x := 0; x < 421; x++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func templatePDF(t *testing.T, width, height float64) []byte {
	t.Helper()
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: width, Ht: height},
	})
	pdf.AddPage()
	pdf.SetDrawColor(40, 80, 160)
	pdf.Rect(20, 20, width-40, height-40, "D")
	var buf bytes.Buffer
	require.NoError(t, pdf.Output(&buf))
	return buf.Bytes()
}

func TestGenerateCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		assert.Regexp(t, `^[A-Za-z0-9]{10}$`, code)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 45)
}

func TestFontSet_BundledFontsMeasure(t *testing.T) {
	fonts, err := LoadFontSet(FontPaths{})
	require.NoError(t, err)

	short := fonts.TextWidth(FontBold, 40, "Ana")
	long := fonts.TextWidth(FontBold, 40, "Ana Souza")
	assert.Greater(t, short, 0.0)
	assert.Greater(t, long, short)
	assert.InDelta(t, 2*fonts.TextWidth(FontItalic, 13, "Go"), fonts.TextWidth(FontItalic, 26, "Go"), 0.5)
	assert.Greater(t, fonts.LineHeight(FontBold, 40), 30.0)
}

func TestFontSet_MissingFile(t *testing.T) {
	_, err := LoadFontSet(FontPaths{Bold: "/nonexistent/font.ttf"})
	assert.Error(t, err)
}

func TestRenderer_ProducesPDF(t *testing.T) {
	fonts, err := LoadFontSet(FontPaths{})
	require.NoError(t, err)
	r := NewRenderer(fonts)

	doc := Document{
		StudentName:    "Ana Beatriz Oliveira de Vasconcelos",
		CourseName:     "Go Avançado",
		Duration:       "40 horas",
		ConclusionDate: time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC),
		Code:           "AbC123xYz9",
	}
	out, err := r.Render(templatePNG(t), doc)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}

func TestRenderer_DrawsOnPDFTemplate(t *testing.T) {
	fonts, err := LoadFontSet(FontPaths{})
	require.NoError(t, err)

	out, err := NewRenderer(fonts).Render(templatePDF(t, 595, 420), Document{
		StudentName:    "Ana Souza",
		CourseName:     "Go Avançado",
		Duration:       "40 horas",
		ConclusionDate: time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC),
		Code:           "AbC123xYz9",
	})
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(out, []byte("%PDF-")))

	// the output keeps the template's page size
	pdf := fpdf.NewCustom(&fpdf.InitType{UnitStr: "pt"})
	importer := gofpdi.NewImporter()
	var rs io.ReadSeeker = bytes.NewReader(out)
	importer.ImportPageFromStream(pdf, &rs, 1, "/MediaBox")
	box := importer.GetPageSizes()[1]["/MediaBox"]
	assert.InDelta(t, 595, box["w"], 0.5)
	assert.InDelta(t, 420, box["h"], 0.5)
}

func TestRenderer_RejectsUnknownTemplate(t *testing.T) {
	fonts, err := LoadFontSet(FontPaths{})
	require.NoError(t, err)
	r := NewRenderer(fonts)

	_, err = r.Render([]byte("not an image"), Document{StudentName: "Ana"})
	assert.ErrorIs(t, err, ErrTemplateUnavailable)

	_, err = r.Render([]byte("%PDF-1.4\ngarbage"), Document{StudentName: "Ana"})
	assert.ErrorIs(t, err, ErrTemplateUnavailable)
}

func TestHTTPTemplateSource_CachesTemplate(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("template-bytes"))
	}))
	defer srv.Close()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	src := NewHTTPTemplateSource(srv.URL, time.Second, cache.NewCacheHelper(client, cache.TemplateCacheConfig.Prefix), time.Minute)

	for i := 0; i < 3; i++ {
		data, err := src.Fetch(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []byte("template-bytes"), data)
	}
	assert.Equal(t, int32(1), hits.Load())
}

func TestHTTPTemplateSource_NonSuccessIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	src := NewHTTPTemplateSource(srv.URL, time.Second, cache.NewCacheHelper(nil, "t:"), 0)

	_, err := src.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrTemplateUnavailable)
}
