package pipeline_test

import (
	"bytes"
	"encoding/binary"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PvtMilo/gen-ai/internal/pipeline"
)

func TestPlanOverlay_ExactMatch(t *testing.T) {
	p := pipeline.PlanOverlay(1200, 1800, 1200, 1800)
	assert.Equal(t, pipeline.OverlayDirect, p.Mode)
	assert.Equal(t, 1200, p.Width)
	assert.Equal(t, 1800, p.Height)
}

func TestPlanOverlay_AspectMatchScales(t *testing.T) {
	p := pipeline.PlanOverlay(1200, 1800, 2400, 3600)
	assert.Equal(t, pipeline.OverlayScale, p.Mode)
	assert.Equal(t, 1200, p.Width)
	assert.Equal(t, 1800, p.Height)
}

func TestPlanOverlay_MismatchedAspectIsCentered(t *testing.T) {
	p := pipeline.PlanOverlay(1200, 1800, 1000, 1000)
	assert.Equal(t, pipeline.OverlayCenter, p.Mode)
	// fitted, never stretched: the overlay keeps a square aspect
	assert.Equal(t, p.Width, p.Height)
	assert.LessOrEqual(t, p.Width, 1200)
	assert.LessOrEqual(t, p.Height, 1800)
}

func TestCompositeOverlay_OutputKeepsResultSize(t *testing.T) {
	dir := t.TempDir()

	resultPath := filepath.Join(dir, "result.png")
	overlayPath := filepath.Join(dir, "overlay.png")
	outPath := filepath.Join(dir, "framed.png")

	result := imaging.New(120, 180, color.NRGBA{R: 200, A: 255})
	overlay := imaging.New(60, 60, color.NRGBA{B: 200, A: 128})
	require.NoError(t, imaging.Save(result, resultPath))
	require.NoError(t, imaging.Save(overlay, overlayPath))

	require.NoError(t, pipeline.CompositeOverlay(resultPath, overlayPath, outPath))

	framed, err := imaging.Open(outPath)
	require.NoError(t, err)
	assert.Equal(t, 120, framed.Bounds().Dx())
	assert.Equal(t, 180, framed.Bounds().Dy())
}

func TestCompress_ResizesToPrintDimensions(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src.png")
	outPath := filepath.Join(dir, "out.jpg")

	src := imaging.New(600, 600, color.NRGBA{G: 128, A: 255})
	require.NoError(t, imaging.Save(src, srcPath))

	require.NoError(t, pipeline.Compress(srcPath, outPath, 85, 150))

	out, err := imaging.Open(outPath)
	require.NoError(t, err)
	assert.Equal(t, 1200, out.Bounds().Dx())
	assert.Equal(t, 1800, out.Bounds().Dy())
}

func TestWithJFIFDensity_InsertsSegment(t *testing.T) {
	var buf bytes.Buffer
	img := imaging.New(8, 8, color.NRGBA{R: 255, A: 255})
	require.NoError(t, imaging.Encode(&buf, img, imaging.JPEG))

	data := pipeline.WithJFIFDensity(buf.Bytes(), 150)

	require.GreaterOrEqual(t, len(data), 18)
	assert.Equal(t, byte(0xFF), data[0])
	assert.Equal(t, byte(0xD8), data[1])
	assert.Equal(t, byte(0xFF), data[2])
	assert.Equal(t, byte(0xE0), data[3])
	assert.Equal(t, []byte("JFIF\x00"), data[6:11])
	assert.Equal(t, byte(1), data[13])
	assert.Equal(t, uint16(150), binary.BigEndian.Uint16(data[14:16]))
	assert.Equal(t, uint16(150), binary.BigEndian.Uint16(data[16:18]))

	// still decodable after the injection
	_, err := imaging.Decode(bytes.NewReader(data))
	assert.NoError(t, err)
}

func TestWithJFIFDensity_PatchesExistingSegment(t *testing.T) {
	var buf bytes.Buffer
	img := imaging.New(8, 8, color.NRGBA{B: 255, A: 255})
	require.NoError(t, imaging.Encode(&buf, img, imaging.JPEG))

	once := pipeline.WithJFIFDensity(buf.Bytes(), 72)
	twice := pipeline.WithJFIFDensity(once, 300)

	assert.Equal(t, len(once), len(twice))
	assert.Equal(t, uint16(300), binary.BigEndian.Uint16(twice[14:16]))
}

func TestWithJFIFDensity_IgnoresNonJPEG(t *testing.T) {
	data := []byte("not a jpeg")
	assert.Equal(t, data, pipeline.WithJFIFDensity(data, 150))
}
