package certificate

import (
	"fmt"
	"time"
)

// Template page size in points. Coordinates below use a bottom-left origin.
const (
	PageWidth  = 842.0
	PageHeight = 595.0
)

type FontStyle int

const (
	FontRegular FontStyle = iota
	FontBold
	FontItalic
)

// Fixed anchors of the certificate template. Text is right-aligned on AnchorX.
const (
	nameSize    = 40.0
	nameAnchorX = 620.0
	nameY       = 350.0

	bodySize        = 26.0
	courseAnchorX   = 610.0
	courseY         = 295.0
	durationAnchorX = 460.0
	durationY       = 267.0
	dateAnchorX     = 610.0
	dateY           = 238.0

	codeSize    = 10.0
	codeX       = 10.0
	codeY       = 10.0
	codeOpacity = 0.3

	DateFormat = "02/01/2006"
)

// Document is the variable content of one certificate
type Document struct {
	StudentName    string
	CourseName     string
	Duration       string
	ConclusionDate time.Time
	Code           string
}

// Placement is one line of text at its final template position
type Placement struct {
	Text    string
	Style   FontStyle
	Size    float64
	X       float64
	Y       float64
	Opacity float64
}

// Measurer reports text metrics in points
type Measurer interface {
	TextWidth(style FontStyle, size float64, text string) float64
	LineHeight(style FontStyle, size float64) float64
}

// Layout places every text of doc on the template. The result depends only on
// doc and the measurer.
func Layout(doc Document, m Measurer) []Placement {
	var placements []Placement

	rightAligned := func(text string, style FontStyle, size, anchorX, y float64) Placement {
		return Placement{
			Text:    text,
			Style:   style,
			Size:    size,
			X:       anchorX - m.TextWidth(style, size, text),
			Y:       y,
			Opacity: 1,
		}
	}

	lines := SplitName(doc.StudentName)
	if len(lines) == 2 {
		lineHeight := m.LineHeight(FontBold, nameSize)
		placements = append(placements,
			rightAligned(lines[0], FontBold, nameSize, nameAnchorX, nameY+lineHeight),
			rightAligned(lines[1], FontBold, nameSize, nameAnchorX, nameY),
		)
	} else {
		placements = append(placements, rightAligned(lines[0], FontBold, nameSize, nameAnchorX, nameY))
	}

	placements = append(placements,
		rightAligned(doc.CourseName, FontItalic, bodySize, courseAnchorX, courseY),
		rightAligned(DurationText(doc.Duration), FontItalic, bodySize, durationAnchorX, durationY),
		rightAligned(doc.ConclusionDate.Format(DateFormat), FontItalic, bodySize, dateAnchorX, dateY),
		Placement{
			Text:    CodeText(doc.Code),
			Style:   FontRegular,
			Size:    codeSize,
			X:       codeX,
			Y:       codeY,
			Opacity: codeOpacity,
		},
	)

	return placements
}

func DurationText(duration string) string {
	return fmt.Sprintf("Compreendido em %s", duration)
}

func CodeText(code string) string {
	return fmt.Sprintf("Código de Validação: %s", code)
}
