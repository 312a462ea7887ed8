package pipeline

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"

	"github.com/disintegration/imaging"
)

// Compressed copies are normalized to print size regardless of the
// input dimensions.
const (
	compressWidth  = 1200
	compressHeight = 1800
)

// aspectTolerance bounds how far two aspect ratios may drift before an
// overlay is letterboxed instead of scaled.
const aspectTolerance = 0.01

type OverlayMode int

const (
	// OverlayDirect composites at the original overlay size.
	OverlayDirect OverlayMode = iota
	// OverlayScale uniformly scales the overlay to the result size.
	OverlayScale
	// OverlayCenter fits the overlay inside the result bounds without
	// distortion and centers it.
	OverlayCenter
)

// OverlayPlacement is the compositing decision for one overlay/result
// dimension pair, with the overlay's final size.
type OverlayPlacement struct {
	Mode   OverlayMode
	Width  int
	Height int
}

// PlanOverlay decides how an overlay of the given size lands on a
// result of the given size. The overlay is never stretched: either the
// sizes match, the aspect ratios match within tolerance (uniform
// scale), or the overlay is fitted inside the result and centered.
func PlanOverlay(resultW, resultH, overlayW, overlayH int) OverlayPlacement {
	if resultW == overlayW && resultH == overlayH {
		return OverlayPlacement{Mode: OverlayDirect, Width: overlayW, Height: overlayH}
	}

	resultAspect := float64(resultW) / float64(resultH)
	overlayAspect := float64(overlayW) / float64(overlayH)
	if math.Abs(resultAspect-overlayAspect) <= aspectTolerance {
		return OverlayPlacement{Mode: OverlayScale, Width: resultW, Height: resultH}
	}

	// fit inside the result bounds, preserving the overlay's aspect
	scale := math.Min(float64(resultW)/float64(overlayW), float64(resultH)/float64(overlayH))
	w := int(math.Round(float64(overlayW) * scale))
	h := int(math.Round(float64(overlayH) * scale))
	if w > resultW {
		w = resultW
	}
	if h > resultH {
		h = resultH
	}
	return OverlayPlacement{Mode: OverlayCenter, Width: w, Height: h}
}

// CompositeOverlay alpha-blends the overlay PNG on top of the result
// image according to PlanOverlay and writes the composite to outPath.
// The output extension decides the format; callers pass .png to keep
// it lossless.
func CompositeOverlay(resultPath, overlayPath, outPath string) error {
	result, err := imaging.Open(resultPath)
	if err != nil {
		return fmt.Errorf("failed to open result image: %w", err)
	}
	overlay, err := imaging.Open(overlayPath)
	if err != nil {
		return fmt.Errorf("failed to open overlay image: %w", err)
	}

	rb := result.Bounds()
	ob := overlay.Bounds()
	placement := PlanOverlay(rb.Dx(), rb.Dy(), ob.Dx(), ob.Dy())

	var composite image.Image
	switch placement.Mode {
	case OverlayDirect:
		composite = imaging.Overlay(result, overlay, image.Pt(0, 0), 1.0)
	case OverlayScale:
		scaled := imaging.Resize(overlay, placement.Width, placement.Height, imaging.Lanczos)
		composite = imaging.Overlay(result, scaled, image.Pt(0, 0), 1.0)
	default:
		fitted := imaging.Resize(overlay, placement.Width, placement.Height, imaging.Lanczos)
		canvas := imaging.New(rb.Dx(), rb.Dy(), color.NRGBA{})
		centered := imaging.OverlayCenter(canvas, fitted, 1.0)
		composite = imaging.Overlay(result, centered, image.Pt(0, 0), 1.0)
	}

	if err := imaging.Save(composite, outPath); err != nil {
		return fmt.Errorf("failed to save composite: %w", err)
	}
	return nil
}

// Compress writes a JPEG copy resized to the fixed print dimensions,
// re-encoded at the given quality with a JFIF density header carrying
// the DPI.
func Compress(srcPath, outPath string, quality, dpi int) error {
	src, err := imaging.Open(srcPath)
	if err != nil {
		return fmt.Errorf("failed to open image: %w", err)
	}

	resized := imaging.Resize(src, compressWidth, compressHeight, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return fmt.Errorf("failed to encode jpeg: %w", err)
	}

	data := WithJFIFDensity(buf.Bytes(), dpi)
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", outPath, err)
	}
	return nil
}

// WithJFIFDensity returns the JPEG data with a JFIF APP0 segment whose
// pixel density is set to dpi. Go's encoder emits no APP0 segment, so
// one is inserted right after SOI; an existing segment is rewritten in
// place.
func WithJFIFDensity(jpegData []byte, dpi int) []byte {
	if len(jpegData) < 4 || jpegData[0] != 0xFF || jpegData[1] != 0xD8 {
		return jpegData
	}

	// existing JFIF APP0: patch density fields in place
	if jpegData[2] == 0xFF && jpegData[3] == 0xE0 && len(jpegData) >= 18 &&
		bytes.Equal(jpegData[6:11], []byte("JFIF\x00")) {
		patched := make([]byte, len(jpegData))
		copy(patched, jpegData)
		patched[13] = 1 // density unit: dots per inch
		binary.BigEndian.PutUint16(patched[14:16], uint16(dpi))
		binary.BigEndian.PutUint16(patched[16:18], uint16(dpi))
		return patched
	}

	segment := make([]byte, 18)
	segment[0] = 0xFF
	segment[1] = 0xE0
	binary.BigEndian.PutUint16(segment[2:4], 16)
	copy(segment[4:9], []byte("JFIF\x00"))
	segment[9] = 1  // version 1.1
	segment[10] = 1
	segment[11] = 1 // density unit: dots per inch
	binary.BigEndian.PutUint16(segment[12:14], uint16(dpi))
	binary.BigEndian.PutUint16(segment[14:16], uint16(dpi))
	// thumbnail dimensions stay zero

	out := make([]byte, 0, len(jpegData)+len(segment))
	out = append(out, jpegData[:2]...)
	out = append(out, segment...)
	out = append(out, jpegData[2:]...)
	return out
}
