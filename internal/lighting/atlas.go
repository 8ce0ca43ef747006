package lighting

import (
	"fmt"
	"sort"

	"github.com/chewxy/math32"
)

// Page is one square RGB8 lightmap atlas page.
type Page struct {
	Size int
	Data []byte // Size*Size*3, row-major
}

// packAtlas places every face tile on shelves. Tiles are sorted by height,
// then width, then face order so the layout only depends on the faces.
func packAtlas(faces []FaceLighting, pageSize int) ([]Page, error) {
	if len(faces) == 0 {
		return nil, nil
	}
	order := make([]int, len(faces))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		fa, fb := &faces[order[a]], &faces[order[b]]
		if fa.Height != fb.Height {
			return fa.Height > fb.Height
		}
		if fa.Width != fb.Width {
			return fa.Width > fb.Width
		}
		return order[a] < order[b]
	})

	type shelf struct{ y, height, x int }
	var (
		pages   []Page
		shelves []shelf
		nextY   int
	)
	newPage := func() {
		pages = append(pages, Page{Size: pageSize, Data: make([]byte, pageSize*pageSize*3)})
		shelves = shelves[:0]
		nextY = 0
	}
	newPage()

	for _, fi := range order {
		f := &faces[fi]
		w, h := f.Width+2*tilePadding, f.Height+2*tilePadding
		if w > pageSize || h > pageSize {
			return nil, fmt.Errorf("%w: tile %dx%d exceeds page size %d", ErrInvalidOptions, f.Width, f.Height, pageSize)
		}
		placed := false
		for s := range shelves {
			sh := &shelves[s]
			if h <= sh.height && sh.x+w <= pageSize {
				f.X, f.Y = sh.x+tilePadding, sh.y+tilePadding
				sh.x += w
				placed = true
				break
			}
		}
		if !placed {
			if nextY+h > pageSize {
				newPage()
			}
			shelves = append(shelves, shelf{y: nextY, height: h, x: w})
			f.X, f.Y = tilePadding, nextY+tilePadding
			nextY += h
		}
		f.Page = len(pages) - 1
	}
	return pages, nil
}

// fillAtlas writes every face's texel radiance into its tile and copies the
// tile's edge texels into the padding ring.
func (l *LitScene) fillAtlas() {
	for fi := range l.Faces {
		f := &l.Faces[fi]
		page := &l.Pages[f.Page]
		for j := -tilePadding; j < f.Height+tilePadding; j++ {
			for i := -tilePadding; i < f.Width+tilePadding; i++ {
				x, y := f.X+i, f.Y+j
				if x < 0 || y < 0 || x >= page.Size || y >= page.Size {
					continue
				}
				si := clampInt(i, 0, f.Width-1)
				sj := clampInt(j, 0, f.Height-1)
				r := l.Samples[f.SampleStart+sj*f.Width+si].Radiance
				o := (y*page.Size + x) * 3
				page.Data[o] = toByte(r[0])
				page.Data[o+1] = toByte(r[1])
				page.Data[o+2] = toByte(r[2])
			}
		}
	}
}

func toByte(v float32) byte {
	return byte(math32.Round(math32.Max(0, math32.Min(1, v)) * 255))
}
