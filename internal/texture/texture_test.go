package texture

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"golang.org/x/image/bmp"
)

// tgaImage builds an uncompressed 24-bit bottom-up TGA.
func tgaImage(w, h int, px func(x, y int) [3]byte) []byte {
	data := make([]byte, 18, 18+w*h*3)
	data[2] = TGATypeUncompressed
	data[12], data[13] = byte(w), byte(w>>8)
	data[14], data[15] = byte(h), byte(h>>8)
	data[16] = 24
	for y := h - 1; y >= 0; y-- {
		for x := 0; x < w; x++ {
			c := px(x, y)
			data = append(data, c[2], c[1], c[0]) // BGR
		}
	}
	return data
}

func TestDecodeTGA(t *testing.T) {
	data := tgaImage(2, 2, func(x, y int) [3]byte {
		if y == 0 {
			return [3]byte{255, 0, 0}
		}
		return [3]byte{0, 0, 255}
	})
	img, err := DecodeTGA(data)
	if err != nil {
		t.Fatalf("DecodeTGA: %v", err)
	}
	if got := img.At(0, 0).(color.RGBA); got != (color.RGBA{255, 0, 0, 255}) {
		t.Errorf("top row = %v, want red", got)
	}
	if got := img.At(1, 1).(color.RGBA); got != (color.RGBA{0, 0, 255, 255}) {
		t.Errorf("bottom row = %v, want blue", got)
	}
}

func TestDecodeTGARLE(t *testing.T) {
	data := make([]byte, 18)
	data[2] = TGATypeRLE
	data[12] = 4
	data[14] = 1
	data[16] = 32
	data[17] = 0x20
	// Run of 3 green pixels, then one raw white pixel.
	data = append(data, 0x82, 0, 255, 0, 255, 0x00, 255, 255, 255, 128)

	img, err := DecodeTGA(data)
	if err != nil {
		t.Fatalf("DecodeTGA: %v", err)
	}
	if got := img.At(2, 0).(color.RGBA); got != (color.RGBA{0, 255, 0, 255}) {
		t.Errorf("pixel 2 = %v", got)
	}
	if got := img.At(3, 0).(color.RGBA); got != (color.RGBA{255, 255, 255, 128}) {
		t.Errorf("pixel 3 = %v", got)
	}

	if _, err := DecodeTGA(data[:len(data)-3]); !errors.Is(err, ErrUnsupported) {
		t.Errorf("truncated RLE: err = %v", err)
	}
}

func TestDecodeTGAUnsupported(t *testing.T) {
	data := make([]byte, 18)
	data[1] = 1
	if _, err := DecodeTGA(data); !errors.Is(err, ErrUnsupported) {
		t.Errorf("err = %v, want ErrUnsupported", err)
	}
	if _, err := DecodeTGA([]byte{1, 2}); !errors.Is(err, ErrUnsupported) {
		t.Errorf("err = %v, want ErrUnsupported", err)
	}
}

func solid(c color.Color, w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestProbePNGAndBMP(t *testing.T) {
	var pngBuf bytes.Buffer
	if err := png.Encode(&pngBuf, solid(color.RGBA{255, 255, 255, 255}, 8, 4)); err != nil {
		t.Fatal(err)
	}
	info, err := Probe(pngBuf.Bytes(), "png")
	if err != nil {
		t.Fatalf("Probe png: %v", err)
	}
	if info.Kind != "png" || info.Width != 8 || info.Height != 4 {
		t.Errorf("info = %+v", info)
	}
	if info.Albedo[0] < 0.999 {
		t.Errorf("white albedo = %v", info.Albedo)
	}

	var bmpBuf bytes.Buffer
	if err := bmp.Encode(&bmpBuf, solid(color.RGBA{0, 0, 0, 255}, 2, 2)); err != nil {
		t.Fatal(err)
	}
	// Extension is ignored when the content is recognizable.
	info, err = Probe(bmpBuf.Bytes(), "tga")
	if err != nil {
		t.Fatalf("Probe bmp: %v", err)
	}
	if info.Kind != "bmp" || info.Albedo != [3]float32{0, 0, 0} {
		t.Errorf("info = %+v", info)
	}
}

func TestProbeTGAByExtension(t *testing.T) {
	data := tgaImage(4, 4, func(x, y int) [3]byte { return [3]byte{128, 128, 128} })
	info, err := Probe(data, ".TGA")
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if info.Kind != "tga" || info.Width != 4 {
		t.Errorf("info = %+v", info)
	}
	// sRGB 128 is about 0.216 in linear light.
	if info.Albedo[1] < 0.2 || info.Albedo[1] > 0.23 {
		t.Errorf("albedo = %v", info.Albedo)
	}

	if _, err := Probe([]byte("not an image"), "txt"); !errors.Is(err, ErrUnsupported) {
		t.Errorf("err = %v, want ErrUnsupported", err)
	}
}

func TestAverageColorIgnoresTransparent(t *testing.T) {
	img := solid(color.RGBA{0, 0, 0, 0}, 2, 1)
	img.Set(0, 0, color.RGBA{255, 255, 255, 255})
	if got := AverageColor(img); got[0] < 0.999 {
		t.Errorf("AverageColor = %v", got)
	}
	if got := AverageColor(solid(color.RGBA{}, 1, 1)); got != [3]float32{0.5, 0.5, 0.5} {
		t.Errorf("transparent average = %v", got)
	}
}
