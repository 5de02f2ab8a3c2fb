// Package imaging normalizes user-selected photos before storage: EXIF
// rotation is applied, the image is fitted into a bounding box, and the
// encoded size is walked down a quality ladder until it fits the byte cap.
package imaging

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	img "github.com/disintegration/imaging"

	"github.com/elevityx/truckeelights/internal/domain"
)

type Config struct {
	MaxWidth     int
	MaxHeight    int
	MaxBytes     int
	StartQuality int
	MinQuality   int
	QualityStep  int
}

func DefaultConfig() Config {
	return Config{
		MaxWidth:     800,
		MaxHeight:    800,
		MaxBytes:     5 << 20,
		StartQuality: 70,
		MinQuality:   10,
		QualityStep:  10,
	}
}

// Normalized is the processed upload: same filename as the source unless the
// encoder had to fall back to JPEG, in which case the extension is corrected.
type Normalized struct {
	FileName    string
	ContentType string
	Data        []byte
}

type Normalizer struct{ cfg Config }

func New(cfg Config) *Normalizer { return &Normalizer{cfg: cfg} }

// Normalize decodes, auto-orients, fits and re-encodes the image. The quality
// search is a monotonic descent, not a binary search; the quality range is
// narrow enough that simplicity wins.
func (n *Normalizer) Normalize(fileName string, r io.Reader) (*Normalized, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read: %v", domain.ErrNormalization, err)
	}

	src, err := img.Decode(bytes.NewReader(data), img.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", domain.ErrNormalization, err)
	}

	fitted := src
	b := src.Bounds()
	if b.Dx() > n.cfg.MaxWidth || b.Dy() > n.cfg.MaxHeight {
		fitted = img.Fit(src, n.cfg.MaxWidth, n.cfg.MaxHeight, img.Lanczos)
	}

	mime := http.DetectContentType(data)

	// PNG and GIF have no quality knob; try them once in their own format
	// before dropping into the JPEG ladder.
	if format, ok := losslessFormat(mime); ok {
		var buf bytes.Buffer
		if err := img.Encode(&buf, fitted, format); err != nil {
			return nil, fmt.Errorf("%w: encode: %v", domain.ErrNormalization, err)
		}
		if buf.Len() <= n.cfg.MaxBytes {
			return &Normalized{FileName: fileName, ContentType: mime, Data: buf.Bytes()}, nil
		}
		fileName = swapExt(fileName, ".jpg")
	}

	for q := n.cfg.StartQuality; q > n.cfg.MinQuality; q -= n.cfg.QualityStep {
		var buf bytes.Buffer
		if err := img.Encode(&buf, fitted, img.JPEG, img.JPEGQuality(q)); err != nil {
			return nil, fmt.Errorf("%w: encode: %v", domain.ErrNormalization, err)
		}
		if buf.Len() <= n.cfg.MaxBytes {
			return &Normalized{FileName: fileName, ContentType: "image/jpeg", Data: buf.Bytes()}, nil
		}
	}

	return nil, domain.ErrUnresizable
}

func losslessFormat(mime string) (img.Format, bool) {
	switch mime {
	case "image/png":
		return img.PNG, true
	case "image/gif":
		return img.GIF, true
	}
	return img.JPEG, false
}

func swapExt(name, ext string) string {
	old := path.Ext(name)
	if old == "" {
		return name + ext
	}
	return strings.TrimSuffix(name, old) + ext
}
