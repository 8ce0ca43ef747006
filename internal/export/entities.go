package export

import (
	"fmt"
	gomath "math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Entity record field numbers.
const (
	fieldIndex     protowire.Number = 1
	fieldClassName protowire.Number = 2
	fieldProperty  protowire.Number = 3
	fieldOrigin    protowire.Number = 4
	fieldBrushes   protowire.Number = 5

	fieldKey   protowire.Number = 1
	fieldValue protowire.Number = 2
)

// marshalEntity encodes e as a protobuf wire message. Properties are
// repeated nested messages in declaration order; the origin is a packed
// run of three fixed32 floats.
func marshalEntity(e Entity) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldIndex, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(e.Index))
	b = protowire.AppendTag(b, fieldClassName, protowire.BytesType)
	b = protowire.AppendString(b, e.ClassName)
	for _, p := range e.Properties {
		var kv []byte
		kv = protowire.AppendTag(kv, fieldKey, protowire.BytesType)
		kv = protowire.AppendString(kv, p.Key)
		kv = protowire.AppendTag(kv, fieldValue, protowire.BytesType)
		kv = protowire.AppendString(kv, p.Value)
		b = protowire.AppendTag(b, fieldProperty, protowire.BytesType)
		b = protowire.AppendBytes(b, kv)
	}
	if e.HasOrigin {
		var packed []byte
		for _, c := range e.Origin {
			packed = protowire.AppendFixed32(packed, gomath.Float32bits(c))
		}
		b = protowire.AppendTag(b, fieldOrigin, protowire.BytesType)
		b = protowire.AppendBytes(b, packed)
	}
	b = protowire.AppendTag(b, fieldBrushes, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(e.Brushes))
	return b
}

func unmarshalEntity(b []byte) (Entity, error) {
	var e Entity
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return e, fmt.Errorf("%w: %v", ErrInvalidEntities, protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case num == fieldIndex && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return e, fmt.Errorf("%w: index: %v", ErrInvalidEntities, protowire.ParseError(m))
			}
			e.Index, n = uint32(v), m
		case num == fieldClassName && typ == protowire.BytesType:
			v, m := protowire.ConsumeString(b)
			if m < 0 {
				return e, fmt.Errorf("%w: classname: %v", ErrInvalidEntities, protowire.ParseError(m))
			}
			e.ClassName, n = v, m
		case num == fieldProperty && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return e, fmt.Errorf("%w: property: %v", ErrInvalidEntities, protowire.ParseError(m))
			}
			p, err := unmarshalProperty(v)
			if err != nil {
				return e, err
			}
			e.Properties = append(e.Properties, p)
			n = m
		case num == fieldOrigin && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 || len(v) != 12 {
				return e, fmt.Errorf("%w: origin", ErrInvalidEntities)
			}
			for i := range e.Origin {
				bits, k := protowire.ConsumeFixed32(v)
				e.Origin[i] = gomath.Float32frombits(bits)
				v = v[k:]
			}
			e.HasOrigin, n = true, m
		case num == fieldBrushes && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return e, fmt.Errorf("%w: brushes: %v", ErrInvalidEntities, protowire.ParseError(m))
			}
			e.Brushes, n = uint32(v), m
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return e, fmt.Errorf("%w: field %d: %v", ErrInvalidEntities, num, protowire.ParseError(n))
			}
		}
		b = b[n:]
	}
	return e, nil
}

func unmarshalProperty(b []byte) (Property, error) {
	var p Property
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return p, fmt.Errorf("%w: property tag: %v", ErrInvalidEntities, protowire.ParseError(n))
		}
		b = b[n:]
		if typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, b)
		} else {
			var v string
			v, n = protowire.ConsumeString(b)
			switch num {
			case fieldKey:
				p.Key = v
			case fieldValue:
				p.Value = v
			}
		}
		if n < 0 {
			return p, fmt.Errorf("%w: property: %v", ErrInvalidEntities, protowire.ParseError(n))
		}
		b = b[n:]
	}
	return p, nil
}
