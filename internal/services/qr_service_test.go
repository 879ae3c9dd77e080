package services

import (
	"bytes"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQRService(t *testing.T) {
	service := NewQRService()

	t.Run("Generate PNG QR Code", func(t *testing.T) {
		img, err := service.Render(QROptions{
			Content: "https://sho.rt/abc1234",
			Size:    256,
			FgColor: "#000000",
			BgColor: "#FFFFFF",
		})
		require.NoError(t, err)
		assert.Equal(t, "image/png", img.ContentType)

		decoded, err := png.Decode(bytes.NewReader(img.Data))
		require.NoError(t, err)
		assert.Equal(t, 256, decoded.Bounds().Dx())
	})

	t.Run("Default Size", func(t *testing.T) {
		img, err := service.Render(QROptions{Content: "https://sho.rt/abc1234"})
		require.NoError(t, err)

		decoded, err := png.Decode(bytes.NewReader(img.Data))
		require.NoError(t, err)
		assert.Equal(t, DefaultQRSize, decoded.Bounds().Dx())
	})

	t.Run("Generate SVG QR Code", func(t *testing.T) {
		img, err := service.Render(QROptions{
			Content: "https://sho.rt/abc1234",
			Format:  "SVG",
			FgColor: "#ff0000",
			BgColor: "ffffff",
		})
		require.NoError(t, err)
		assert.Equal(t, "image/svg+xml", img.ContentType)

		svg := string(img.Data)
		assert.True(t, strings.HasPrefix(svg, "<svg"))
		assert.Contains(t, svg, `fill="#FF0000"`)
		assert.Contains(t, svg, `fill="#FFFFFF"`)
	})

	t.Run("SVG Colors Are Sanitized", func(t *testing.T) {
		img, err := service.Render(QROptions{
			Content: "https://sho.rt/abc1234",
			Format:  QRFormatSVG,
			FgColor: `"/><script>alert(1)</script>`,
		})
		require.NoError(t, err)
		assert.NotContains(t, string(img.Data), "script")
		assert.Contains(t, string(img.Data), `fill="#000000"`)
	})

	t.Run("Invalid Size", func(t *testing.T) {
		_, err := service.Render(QROptions{Content: "x", Size: 10})
		assert.True(t, IsKind(err, KindValidation))

		_, err = service.Render(QROptions{Content: "x", Size: 5000})
		assert.True(t, IsKind(err, KindValidation))
	})

	t.Run("Invalid Format", func(t *testing.T) {
		_, err := service.Render(QROptions{Content: "x", Format: "gif"})
		assert.True(t, IsKind(err, KindValidation))
	})

	t.Run("Content Too Long", func(t *testing.T) {
		_, err := service.Render(QROptions{Content: strings.Repeat("A", 10000)})
		assert.Error(t, err)

		_, err = service.Render(QROptions{Content: strings.Repeat("A", 10000), Format: QRFormatSVG})
		assert.Error(t, err)
	})

	t.Run("Parse Hex Color", func(t *testing.T) {
		assert.Equal(t, color.Black, service.parseHexColor("invalid", color.Black))
		assert.Equal(t, color.RGBA{255, 0, 0, 255}, service.parseHexColor("#ff0000", color.Black))
		assert.Equal(t, color.RGBA{255, 0, 0, 255}, service.parseHexColor("#FF0000", color.Black))
		assert.Equal(t, color.Black, service.parseHexColor("#GGGGGG", color.Black))
	})
}
