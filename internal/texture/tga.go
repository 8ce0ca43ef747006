// Package texture decodes material images and derives the values the
// compiler needs from them: dimensions and average colour.
package texture

import (
	"errors"
	"fmt"
	"image"
	"image/color"
)

// TGA image type constants.
const (
	TGATypeUncompressed = 2  // Uncompressed true-color
	TGATypeGray         = 3  // Uncompressed grayscale
	TGATypeRLE          = 10 // RLE compressed true-color
	TGATypeGrayRLE      = 11 // RLE compressed grayscale
)

const (
	tgaHeaderSize            = 18
	tgaDescriptorTopToBottom = 0x20
)

// ErrUnsupported is returned for image data the decoders cannot handle.
var ErrUnsupported = errors.New("unsupported image")

type tgaHeader struct {
	idLength     int
	colorMapType byte
	imageType    byte
	width        int
	height       int
	bpp          int
	topToBottom  bool
}

func readTGAHeader(data []byte) (tgaHeader, error) {
	if len(data) < tgaHeaderSize {
		return tgaHeader{}, fmt.Errorf("%w: TGA data too short", ErrUnsupported)
	}
	h := tgaHeader{
		idLength:     int(data[0]),
		colorMapType: data[1],
		imageType:    data[2],
		width:        int(data[12]) | int(data[13])<<8,
		height:       int(data[14]) | int(data[15])<<8,
		bpp:          int(data[16]),
		topToBottom:  data[17]&tgaDescriptorTopToBottom != 0,
	}
	if h.colorMapType != 0 {
		return h, fmt.Errorf("%w: color-mapped TGA", ErrUnsupported)
	}
	switch h.imageType {
	case TGATypeUncompressed, TGATypeRLE:
		if h.bpp != 24 && h.bpp != 32 {
			return h, fmt.Errorf("%w: TGA bit depth %d", ErrUnsupported, h.bpp)
		}
	case TGATypeGray, TGATypeGrayRLE:
		if h.bpp != 8 {
			return h, fmt.Errorf("%w: grayscale TGA bit depth %d", ErrUnsupported, h.bpp)
		}
	default:
		return h, fmt.Errorf("%w: TGA type %d", ErrUnsupported, h.imageType)
	}
	if h.width == 0 || h.height == 0 {
		return h, fmt.Errorf("%w: empty TGA", ErrUnsupported)
	}
	return h, nil
}

// DecodeTGAConfig returns the dimensions of a TGA image without decoding
// its pixels.
func DecodeTGAConfig(data []byte) (image.Config, error) {
	h, err := readTGAHeader(data)
	if err != nil {
		return image.Config{}, err
	}
	return image.Config{ColorModel: color.RGBAModel, Width: h.width, Height: h.height}, nil
}

// DecodeTGA decodes a TGA image. True-color (24/32 bit) and 8-bit
// grayscale images are supported, both raw and RLE compressed.
func DecodeTGA(data []byte) (image.Image, error) {
	h, err := readTGAHeader(data)
	if err != nil {
		return nil, err
	}

	offset := tgaHeaderSize + h.idLength
	if offset > len(data) {
		return nil, fmt.Errorf("%w: TGA data truncated", ErrUnsupported)
	}
	pixelData := data[offset:]

	img := image.NewRGBA(image.Rect(0, 0, h.width, h.height))
	bytesPerPixel := h.bpp / 8

	put := func(pixelIdx int, px []byte) {
		x := pixelIdx % h.width
		y := pixelIdx / h.width
		if !h.topToBottom {
			y = h.height - 1 - y
		}
		img.SetRGBA(x, y, tgaColor(px))
	}

	if h.imageType == TGATypeUncompressed || h.imageType == TGATypeGray {
		expectedSize := h.width * h.height * bytesPerPixel
		if len(pixelData) < expectedSize {
			return nil, fmt.Errorf("%w: TGA pixel data truncated", ErrUnsupported)
		}
		for i := 0; i < h.width*h.height; i++ {
			put(i, pixelData[i*bytesPerPixel:(i+1)*bytesPerPixel])
		}
		return img, nil
	}

	if err := decodeTGARLE(pixelData, h.width*h.height, bytesPerPixel, put); err != nil {
		return nil, err
	}
	return img, nil
}

func tgaColor(px []byte) color.RGBA {
	switch len(px) {
	case 1:
		return color.RGBA{R: px[0], G: px[0], B: px[0], A: 255}
	case 3:
		return color.RGBA{R: px[2], G: px[1], B: px[0], A: 255}
	default:
		return color.RGBA{R: px[2], G: px[1], B: px[0], A: px[3]}
	}
}

// decodeTGARLE expands RLE packets, calling put for every pixel.
func decodeTGARLE(pixelData []byte, pixelCount, bytesPerPixel int, put func(int, []byte)) error {
	pixelIdx := 0
	dataIdx := 0

	for pixelIdx < pixelCount {
		if dataIdx >= len(pixelData) {
			return fmt.Errorf("%w: TGA RLE data truncated", ErrUnsupported)
		}
		packet := pixelData[dataIdx]
		dataIdx++
		count := int(packet&0x7F) + 1

		if packet&0x80 != 0 {
			// Run packet: one pixel repeated.
			if dataIdx+bytesPerPixel > len(pixelData) {
				return fmt.Errorf("%w: TGA RLE data truncated", ErrUnsupported)
			}
			px := pixelData[dataIdx : dataIdx+bytesPerPixel]
			dataIdx += bytesPerPixel
			for i := 0; i < count && pixelIdx < pixelCount; i++ {
				put(pixelIdx, px)
				pixelIdx++
			}
			continue
		}

		for i := 0; i < count && pixelIdx < pixelCount; i++ {
			if dataIdx+bytesPerPixel > len(pixelData) {
				return fmt.Errorf("%w: TGA RLE data truncated", ErrUnsupported)
			}
			put(pixelIdx, pixelData[dataIdx:dataIdx+bytesPerPixel])
			dataIdx += bytesPerPixel
			pixelIdx++
		}
	}
	return nil
}
