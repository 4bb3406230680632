package certificate

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"io"
	"sync"
	"time"

	"github.com/fogleman/gg"
	"github.com/go-pdf/fpdf"
	"github.com/go-pdf/fpdf/contrib/gofpdi"
)

const ContentType = "application/pdf"

const fontFamily = "certificate"

var pdfFontStyles = map[FontStyle]string{
	FontRegular: "",
	FontBold:    "B",
	FontItalic:  "I",
}

// Renderer draws a Document on the certificate template and returns a
// one-page PDF the size of the template page.
type Renderer struct {
	fonts *FontSet
	now   func() time.Time

	// truetype faces are not safe for concurrent use
	mu sync.Mutex
}

func NewRenderer(fonts *FontSet) *Renderer {
	return &Renderer{fonts: fonts, now: time.Now}
}

// Render returns the PDF bytes of doc drawn on template. A PDF template has
// its first page imported and the text written over it. PNG and JPEG
// templates are drawn as a raster. Anything else is ErrTemplateUnavailable.
func (r *Renderer) Render(template []byte, doc Document) ([]byte, error) {
	if isPDF(template) {
		return r.renderOnPDF(template, doc)
	}

	img, _, err := image.Decode(bytes.NewReader(template))
	if err != nil {
		return nil, fmt.Errorf("%w: template is not a PDF, PNG or JPEG: %v", ErrTemplateUnavailable, err)
	}

	r.mu.Lock()
	raster, err := r.draw(img, doc)
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}

	return r.packageRaster(raster)
}

func isPDF(data []byte) bool {
	return bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n"), []byte("%PDF-"))
}

func (r *Renderer) renderOnPDF(template []byte, doc Document) (out []byte, err error) {
	// gofpdi panics on malformed input
	defer func() {
		if rec := recover(); rec != nil {
			out, err = nil, fmt.Errorf("%w: unreadable PDF template: %v", ErrTemplateUnavailable, rec)
		}
	}()

	pdf := r.newDocument(PageWidth, PageHeight)
	importer := gofpdi.NewImporter()
	var rs io.ReadSeeker = bytes.NewReader(template)
	tpl := importer.ImportPageFromStream(pdf, &rs, 1, "/MediaBox")

	width, height := PageWidth, PageHeight
	if box, ok := importer.GetPageSizes()[1]["/MediaBox"]; ok && box["w"] > 0 && box["h"] > 0 {
		width, height = box["w"], box["h"]
	}
	pdf.AddPageFormat("P", fpdf.SizeType{Wd: width, Ht: height})
	importer.UseImportedTemplate(pdf, tpl, 0, 0, width, height)

	for style, data := range r.fonts.raw {
		pdf.AddUTF8FontFromBytes(fontFamily, pdfFontStyles[style], data)
	}

	// placements are in template points; fpdf's origin is top-left
	scale := width / PageWidth
	r.mu.Lock()
	placements := Layout(doc, r.fonts)
	r.mu.Unlock()
	for _, p := range placements {
		pdf.SetFont(fontFamily, pdfFontStyles[p.Style], p.Size*scale)
		pdf.SetAlpha(p.Opacity, "Normal")
		pdf.Text(p.X*scale, height-p.Y*scale, p.Text)
	}
	pdf.SetAlpha(1, "Normal")

	return r.output(pdf)
}

func (r *Renderer) draw(img image.Image, doc Document) ([]byte, error) {
	dc := gg.NewContextForImage(img)
	scale := float64(dc.Width()) / PageWidth

	for _, p := range Layout(doc, r.fonts) {
		dc.SetFontFace(r.fonts.Face(p.Style, p.Size*scale))
		dc.SetRGBA(0, 0, 0, p.Opacity)
		// template y grows upward, raster y grows downward
		dc.DrawString(p.Text, p.X*scale, (PageHeight-p.Y)*scale)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		return nil, fmt.Errorf("failed to encode certificate raster: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) packageRaster(raster []byte) ([]byte, error) {
	pdf := r.newDocument(PageWidth, PageHeight)
	pdf.AddPage()

	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("certificate", opts, bytes.NewReader(raster))
	pdf.ImageOptions("certificate", 0, 0, PageWidth, PageHeight, false, opts, 0, "")

	return r.output(pdf)
}

func (r *Renderer) newDocument(width, height float64) *fpdf.Fpdf {
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: width, Ht: height},
	})
	pdf.SetCreationDate(r.now())
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	return pdf
}

func (r *Renderer) output(pdf *fpdf.Fpdf) ([]byte, error) {
	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, fmt.Errorf("failed to write certificate pdf: %w", err)
	}
	return out.Bytes(), nil
}
