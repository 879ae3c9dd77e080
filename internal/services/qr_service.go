package services

import (
	"bytes"
	"fmt"
	"image/color"
	"image/png"
	"strings"

	"github.com/skip2/go-qrcode"
)

const (
	QRFormatPNG = "png"
	QRFormatSVG = "svg"

	DefaultQRSize = 256
	MinQRSize     = 64
	MaxQRSize     = 1024

	defaultFg = "#000000"
	defaultBg = "#FFFFFF"
)

type QROptions struct {
	Content string
	Format  string // "png" or "svg"
	Size    int
	FgColor string // Hex code e.g. "#000000"
	BgColor string // Hex code e.g. "#FFFFFF"
}

type QRImage struct {
	ContentType string
	Data        []byte
}

type QRService struct{}

func NewQRService() *QRService {
	return &QRService{}
}

// Render encodes opts.Content. Unknown colors fall back to black on white.
func (s *QRService) Render(opts QROptions) (*QRImage, error) {
	if opts.Size == 0 {
		opts.Size = DefaultQRSize
	}
	if opts.Size < MinQRSize || opts.Size > MaxQRSize {
		return nil, NewValidationError(fmt.Sprintf("Size must be between %d and %d", MinQRSize, MaxQRSize), nil)
	}
	opts.FgColor = normalizeHex(opts.FgColor, defaultFg)
	opts.BgColor = normalizeHex(opts.BgColor, defaultBg)

	switch strings.ToLower(opts.Format) {
	case "", QRFormatPNG:
		data, err := s.renderPNG(opts)
		if err != nil {
			return nil, err
		}
		return &QRImage{ContentType: "image/png", Data: data}, nil
	case QRFormatSVG:
		svg, err := s.renderSVG(opts)
		if err != nil {
			return nil, err
		}
		return &QRImage{ContentType: "image/svg+xml", Data: []byte(svg)}, nil
	default:
		return nil, NewValidationError("Format must be png or svg", nil)
	}
}

func (s *QRService) renderPNG(opts QROptions) ([]byte, error) {
	qr, err := qrcode.New(opts.Content, qrcode.Medium)
	if err != nil {
		return nil, NewValidationError("Content cannot be encoded as a QR code", err)
	}

	qr.ForegroundColor = s.parseHexColor(opts.FgColor, color.Black)
	qr.BackgroundColor = s.parseHexColor(opts.BgColor, color.White)

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(opts.Size)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *QRService) renderSVG(opts QROptions) (string, error) {
	qr, err := qrcode.New(opts.Content, qrcode.Medium)
	if err != nil {
		return "", NewValidationError("Content cannot be encoded as a QR code", err)
	}

	qr.DisableBorder = true
	bitmap := qr.Bitmap()
	modules := len(bitmap)

	var sb strings.Builder
	// viewBox is in modules; width/height scale it to the requested size
	fmt.Fprintf(&sb, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" shape-rendering="crispEdges">`,
		opts.Size, opts.Size, modules, modules)
	fmt.Fprintf(&sb, `<rect width="100%%" height="100%%" fill="%s"/>`, opts.BgColor)
	fmt.Fprintf(&sb, `<path fill="%s" d="`, opts.FgColor)
	for y := 0; y < modules; y++ {
		for x := 0; x < modules; x++ {
			if bitmap[y][x] {
				fmt.Fprintf(&sb, "M%d %dh1v1h-1z", x, y)
			}
		}
	}
	sb.WriteString(`"/></svg>`)
	return sb.String(), nil
}

func (s *QRService) parseHexColor(hex string, defaultColor color.Color) color.Color {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 || !isHex(hex) {
		return defaultColor
	}

	hexToByte := func(c byte) byte {
		switch {
		case c >= '0' && c <= '9':
			return c - '0'
		case c >= 'a' && c <= 'f':
			return c - 'a' + 10
		default:
			return c - 'A' + 10
		}
	}

	r := hexToByte(hex[0])<<4 + hexToByte(hex[1])
	g := hexToByte(hex[2])<<4 + hexToByte(hex[3])
	b := hexToByte(hex[4])<<4 + hexToByte(hex[5])
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// normalizeHex returns "#RRGGBB" or fallback. Only this form reaches the SVG
// markup.
func normalizeHex(s, fallback string) string {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 || !isHex(hex) {
		return fallback
	}
	return "#" + strings.ToUpper(hex)
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
			return false
		}
	}
	return true
}
