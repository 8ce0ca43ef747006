package texture

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // register GIF
	_ "image/jpeg" // register JPEG
	_ "image/png"  // register PNG
	"strings"

	"github.com/chewxy/math32"
	"github.com/h2non/filetype"
	_ "golang.org/x/image/bmp"  // register BMP
	_ "golang.org/x/image/webp" // register WebP
)

// Kind returns the image type of data, sniffed from its content. TGA has no
// signature, so it is only reported when ext says so and the header is
// one we can decode.
func Kind(data []byte, ext string) string {
	if strings.EqualFold(strings.TrimPrefix(ext, "."), "tga") {
		if _, err := readTGAHeader(data); err == nil {
			return "tga"
		}
	}
	if t, err := filetype.Match(data); err == nil && t != filetype.Unknown {
		return t.Extension
	}
	return ""
}

// Decode decodes an image of any supported kind.
func Decode(data []byte, ext string) (image.Image, error) {
	switch kind := Kind(data, ext); kind {
	case "tga":
		return DecodeTGA(data)
	case "png", "jpg", "gif", "bmp", "webp":
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", kind, err)
		}
		return img, nil
	case "":
		return nil, fmt.Errorf("%w: unrecognized data", ErrUnsupported)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, kind)
	}
}

// Info is what the compiler needs from a material image.
type Info struct {
	Kind   string
	Width  int
	Height int
	Albedo [3]float32 // average linear colour, 0..1
}

// Probe decodes data and summarizes it.
func Probe(data []byte, ext string) (Info, error) {
	img, err := Decode(data, ext)
	if err != nil {
		return Info{}, err
	}
	b := img.Bounds()
	return Info{
		Kind:   Kind(data, ext),
		Width:  b.Dx(),
		Height: b.Dy(),
		Albedo: AverageColor(img),
	}, nil
}

// AverageColor returns the mean linear RGB of the opaque pixels of img.
// Fully transparent pixels are ignored. An image without opaque pixels
// averages to mid grey.
func AverageColor(img image.Image) [3]float32 {
	var sum [3]float32
	var n float32
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			if a == 0 {
				continue
			}
			sum[0] += SRGBToLinear(float32(r) / 0xffff)
			sum[1] += SRGBToLinear(float32(g) / 0xffff)
			sum[2] += SRGBToLinear(float32(bl) / 0xffff)
			n++
		}
	}
	if n == 0 {
		return [3]float32{0.5, 0.5, 0.5}
	}
	return [3]float32{sum[0] / n, sum[1] / n, sum[2] / n}
}

// SRGBToLinear converts an sRGB channel value in 0..1 to linear light.
func SRGBToLinear(c float32) float32 {
	if c <= 0.04045 {
		return c / 12.92
	}
	return math32.Pow((c+0.055)/1.055, 2.4)
}
