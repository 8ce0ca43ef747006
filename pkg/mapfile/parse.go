package mapfile

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/Faultbox/brushforge/pkg/encoding"
	"github.com/Faultbox/brushforge/pkg/math"
)

// Open reads and parses a map file from disk.
func Open(path string) (*Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading map: %w", err)
	}
	return ParseBytes(data)
}

// Parse reads and parses a map from r.
func Parse(r io.Reader) (*Map, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading map: %w", err)
	}
	return ParseBytes(data)
}

// ParseBytes parses map source bytes.
func ParseBytes(data []byte) (*Map, error) {
	p := &parser{src: encoding.DecodeSource(data), line: 1}
	return p.parseMap()
}

type parser struct {
	src  string
	pos  int
	line int
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: line %d: %s", ErrSyntax, p.line, fmt.Sprintf(format, args...))
}

// skipSpace advances past whitespace and // comments.
func (p *parser) skipSpace() {
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == '\n':
			p.line++
			p.pos++
		case c == ' ' || c == '\t' || c == '\r':
			p.pos++
		case c == '/' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '/':
			for p.pos < len(p.src) && p.src[p.pos] != '\n' {
				p.pos++
			}
		default:
			return
		}
	}
}

// peek returns the next significant byte, or 0 at end of input.
func (p *parser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) expect(c byte) error {
	got := p.peek()
	if got != c {
		if got == 0 {
			return p.errorf("expected %q, got end of input", c)
		}
		return p.errorf("expected %q, got %q", c, got)
	}
	p.pos++
	return nil
}

// word reads a whitespace-delimited token.
func (p *parser) word() (string, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) && !isSpace(p.src[p.pos]) {
		p.pos++
	}
	if start == p.pos {
		return "", p.errorf("unexpected end of input")
	}
	return p.src[start:p.pos], nil
}

// number reads a float that may be followed directly by ')' or ']'.
func (p *parser) number() (float64, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if isSpace(c) || c == ')' || c == ']' || c == '(' || c == '[' {
			break
		}
		p.pos++
	}
	tok := p.src[start:p.pos]
	if tok == "" {
		return 0, p.errorf("expected number")
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, p.errorf("invalid number %q", tok)
	}
	return v, nil
}

func (p *parser) quoted() (string, error) {
	if err := p.expect('"'); err != nil {
		return "", err
	}
	start := p.pos
	for p.pos < len(p.src) && p.src[p.pos] != '"' {
		if p.src[p.pos] == '\n' {
			p.line++
		}
		p.pos++
	}
	if p.pos >= len(p.src) {
		return "", p.errorf("unterminated string")
	}
	s := p.src[start:p.pos]
	p.pos++
	return s, nil
}

// moreOnLine reports whether another token follows on the current line.
func (p *parser) moreOnLine() bool {
	for i := p.pos; i < len(p.src); i++ {
		switch c := p.src[i]; c {
		case ' ', '\t', '\r':
			continue
		case '\n':
			return false
		case '/':
			return !(i+1 < len(p.src) && p.src[i+1] == '/')
		default:
			return true
		}
	}
	return false
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

func (p *parser) parseMap() (*Map, error) {
	m := &Map{}
	for p.peek() != 0 {
		e, err := p.parseEntity()
		if err != nil {
			return nil, err
		}
		m.Entities = append(m.Entities, e)
	}
	for _, e := range m.Entities {
		for _, b := range e.Brushes {
			for _, f := range b.Faces {
				if f.Valve {
					m.Format = FormatValve220
				}
			}
		}
	}
	return m, nil
}

func (p *parser) parseEntity() (*Entity, error) {
	p.skipSpace()
	e := &Entity{Line: p.line}
	if err := p.expect('{'); err != nil {
		return nil, err
	}
	for {
		switch p.peek() {
		case '}':
			p.pos++
			return e, nil
		case '"':
			key, err := p.quoted()
			if err != nil {
				return nil, err
			}
			value, err := p.quoted()
			if err != nil {
				return nil, err
			}
			e.Properties.Set(key, value)
		case '{':
			b, err := p.parseBrush()
			if err != nil {
				return nil, err
			}
			e.Brushes = append(e.Brushes, b)
		case 0:
			return nil, p.errorf("unterminated entity starting at line %d", e.Line)
		default:
			return nil, p.errorf("unexpected %q in entity", p.src[p.pos])
		}
	}
}

func (p *parser) parseBrush() (*Brush, error) {
	b := &Brush{Line: p.line}
	if err := p.expect('{'); err != nil {
		return nil, err
	}
	for {
		switch p.peek() {
		case '}':
			p.pos++
			return b, nil
		case '(':
			f, err := p.parseFace()
			if err != nil {
				return nil, err
			}
			b.Faces = append(b.Faces, f)
		case 0:
			return nil, p.errorf("unterminated brush starting at line %d", b.Line)
		default:
			w, _ := p.word()
			return nil, p.errorf("unsupported brush primitive %q", w)
		}
	}
}

func (p *parser) point() (math.Vec3, error) {
	if err := p.expect('('); err != nil {
		return math.Vec3{}, err
	}
	var v [3]float64
	for i := range v {
		n, err := p.number()
		if err != nil {
			return math.Vec3{}, err
		}
		v[i] = n
	}
	if err := p.expect(')'); err != nil {
		return math.Vec3{}, err
	}
	return math.Vec3{X: v[0], Y: v[1], Z: v[2]}, nil
}

// axis reads a Valve220 "[ x y z offset ]" block.
func (p *parser) axis() (math.Vec3, float64, error) {
	if err := p.expect('['); err != nil {
		return math.Vec3{}, 0, err
	}
	var v [4]float64
	for i := range v {
		n, err := p.number()
		if err != nil {
			return math.Vec3{}, 0, err
		}
		v[i] = n
	}
	if err := p.expect(']'); err != nil {
		return math.Vec3{}, 0, err
	}
	return math.Vec3{X: v[0], Y: v[1], Z: v[2]}, v[3], nil
}

func (p *parser) numbers(dst ...*float64) error {
	for _, d := range dst {
		n, err := p.number()
		if err != nil {
			return err
		}
		*d = n
	}
	return nil
}

func (p *parser) parseFace() (*Face, error) {
	p.skipSpace()
	f := &Face{Line: p.line}
	for i := range f.Points {
		pt, err := p.point()
		if err != nil {
			return nil, err
		}
		f.Points[i] = pt
	}

	tex, err := p.word()
	if err != nil {
		return nil, err
	}
	f.Texture = tex

	if p.peek() == '[' {
		f.Valve = true
		if f.UAxis, f.Offset[0], err = p.axis(); err != nil {
			return nil, err
		}
		if f.VAxis, f.Offset[1], err = p.axis(); err != nil {
			return nil, err
		}
		if err := p.numbers(&f.Rotation, &f.Scale[0], &f.Scale[1]); err != nil {
			return nil, err
		}
	} else {
		if err := p.numbers(&f.Offset[0], &f.Offset[1], &f.Rotation, &f.Scale[0], &f.Scale[1]); err != nil {
			return nil, err
		}
	}

	if p.moreOnLine() && p.peek() != '(' && p.peek() != '}' {
		var contents, surface, value float64
		if err := p.numbers(&contents, &surface, &value); err != nil {
			return nil, err
		}
		f.HasSurface = true
		f.Contents = uint32(int64(contents))
		f.Surface = uint32(int64(surface))
		f.Value = int32(value)
	}
	return f, nil
}
