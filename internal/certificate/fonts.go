package certificate

import (
	"fmt"
	"os"
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
)

// FontPaths points at TTF files; an empty path uses the bundled Go font.
type FontPaths struct {
	Regular string
	Bold    string
	Italic  string
}

type faceKey struct {
	style FontStyle
	size  float64
}

// FontSet holds the parsed certificate fonts and caches sized faces. It
// implements Measurer in points (72 DPI).
type FontSet struct {
	fonts map[FontStyle]*truetype.Font
	// raw TTF bytes, embedded into PDF output
	raw map[FontStyle][]byte

	mu    sync.Mutex
	faces map[faceKey]font.Face
}

func LoadFontSet(paths FontPaths) (*FontSet, error) {
	sources := []struct {
		style    FontStyle
		path     string
		fallback []byte
	}{
		{FontRegular, paths.Regular, goregular.TTF},
		{FontBold, paths.Bold, gobold.TTF},
		{FontItalic, paths.Italic, goitalic.TTF},
	}

	fs := &FontSet{
		fonts: make(map[FontStyle]*truetype.Font, len(sources)),
		raw:   make(map[FontStyle][]byte, len(sources)),
		faces: make(map[faceKey]font.Face),
	}
	for _, src := range sources {
		data := src.fallback
		if src.path != "" {
			b, err := os.ReadFile(src.path)
			if err != nil {
				return nil, fmt.Errorf("failed to read font file: %w", err)
			}
			data = b
		}
		parsed, err := truetype.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse TTF: %w", err)
		}
		fs.fonts[src.style] = parsed
		fs.raw[src.style] = data
	}
	return fs, nil
}

// Face returns a face of the style at size; callers must not share it across goroutines
func (fs *FontSet) Face(style FontStyle, size float64) font.Face {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.faceLocked(style, size)
}

func (fs *FontSet) faceLocked(style FontStyle, size float64) font.Face {
	key := faceKey{style: style, size: size}
	if face, ok := fs.faces[key]; ok {
		return face
	}
	face := truetype.NewFace(fs.fonts[style], &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	fs.faces[key] = face
	return face
}

func (fs *FontSet) TextWidth(style FontStyle, size float64, text string) float64 {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return float64(font.MeasureString(fs.faceLocked(style, size), text)) / 64
}

func (fs *FontSet) LineHeight(style FontStyle, size float64) float64 {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	m := fs.faceLocked(style, size).Metrics()
	return float64(m.Ascent+m.Descent) / 64
}
