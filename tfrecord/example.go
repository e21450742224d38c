package tfrecord

import (
	"math"
	"sort"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Kind is the value type of a Feature.
type Kind int

const (
	KindBytes Kind = iota + 1
	KindFloat
	KindInt64
)

// A Feature is a list of values of one kind.
type Feature struct {
	Kind  Kind
	Bytes [][]byte
	Float []float32
	Int64 []int64
}

func BytesFeature(values ...[]byte) Feature {
	return Feature{Kind: KindBytes, Bytes: values}
}

func FloatFeature(values ...float32) Feature {
	return Feature{Kind: KindFloat, Float: values}
}

func Int64Feature(values ...int64) Feature {
	return Feature{Kind: KindInt64, Int64: values}
}

// An Example is a tf.train.Example: named features.
type Example map[string]Feature

// Marshal encodes the example in protobuf wire format.
// Features are written in name order.
func (e Example) Marshal() []byte {
	names := make([]string, 0, len(e))
	for name := range e {
		names = append(names, name)
	}
	sort.Strings(names)

	var features []byte
	for _, name := range names {
		var entry []byte
		entry = protowire.AppendTag(entry, 1, protowire.BytesType)
		entry = protowire.AppendString(entry, name)
		entry = protowire.AppendTag(entry, 2, protowire.BytesType)
		entry = protowire.AppendBytes(entry, e[name].marshal())

		features = protowire.AppendTag(features, 1, protowire.BytesType)
		features = protowire.AppendBytes(features, entry)
	}

	var res []byte
	res = protowire.AppendTag(res, 1, protowire.BytesType)
	return protowire.AppendBytes(res, features)
}

func (f Feature) marshal() []byte {
	var list []byte
	switch f.Kind {
	case KindBytes:
		for _, b := range f.Bytes {
			list = protowire.AppendTag(list, 1, protowire.BytesType)
			list = protowire.AppendBytes(list, b)
		}
	case KindFloat:
		var packed []byte
		for _, x := range f.Float {
			packed = protowire.AppendFixed32(packed, math.Float32bits(x))
		}
		list = protowire.AppendTag(list, 1, protowire.BytesType)
		list = protowire.AppendBytes(list, packed)
	case KindInt64:
		var packed []byte
		for _, x := range f.Int64 {
			packed = protowire.AppendVarint(packed, uint64(x))
		}
		list = protowire.AppendTag(list, 1, protowire.BytesType)
		list = protowire.AppendBytes(list, packed)
	}
	var res []byte
	res = protowire.AppendTag(res, protowire.Number(f.Kind), protowire.BytesType)
	return protowire.AppendBytes(res, list)
}

// UnmarshalExample decodes a tf.train.Example.
func UnmarshalExample(data []byte) (Example, error) {
	res := Example{}
	err := forEachField(data, func(num protowire.Number, typ protowire.Type, value []byte) error {
		if num != 1 || typ != protowire.BytesType {
			return nil
		}
		return forEachField(value, func(num protowire.Number, typ protowire.Type, entry []byte) error {
			if num != 1 || typ != protowire.BytesType {
				return nil
			}
			return res.unmarshalEntry(entry)
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "unmarshal example")
	}
	return res, nil
}

func (e Example) unmarshalEntry(entry []byte) error {
	var name string
	var feature Feature
	err := forEachField(entry, func(num protowire.Number, typ protowire.Type, value []byte) error {
		if typ != protowire.BytesType {
			return nil
		}
		switch num {
		case 1:
			name = string(value)
		case 2:
			f, err := unmarshalFeature(value)
			if err != nil {
				return errors.Wrap(err, "feature")
			}
			feature = f
		}
		return nil
	})
	if err != nil {
		return err
	}
	e[name] = feature
	return nil
}

func unmarshalFeature(data []byte) (Feature, error) {
	var f Feature
	err := forEachField(data, func(num protowire.Number, typ protowire.Type, list []byte) error {
		if typ != protowire.BytesType || num < 1 || num > 3 {
			return nil
		}
		f.Kind = Kind(num)
		return forEachField(list, func(_ protowire.Number, typ protowire.Type, value []byte) error {
			switch f.Kind {
			case KindBytes:
				f.Bytes = append(f.Bytes, append([]byte{}, value...))
			case KindFloat:
				if typ == protowire.Fixed32Type {
					v, _ := protowire.ConsumeFixed32(value)
					f.Float = append(f.Float, math.Float32frombits(v))
					return nil
				}
				for len(value) > 0 {
					v, n := protowire.ConsumeFixed32(value)
					if n < 0 {
						return protowire.ParseError(n)
					}
					f.Float = append(f.Float, math.Float32frombits(v))
					value = value[n:]
				}
			case KindInt64:
				if typ == protowire.VarintType {
					v, _ := protowire.ConsumeVarint(value)
					f.Int64 = append(f.Int64, int64(v))
					return nil
				}
				for len(value) > 0 {
					v, n := protowire.ConsumeVarint(value)
					if n < 0 {
						return protowire.ParseError(n)
					}
					f.Int64 = append(f.Int64, int64(v))
					value = value[n:]
				}
			}
			return nil
		})
	})
	return f, err
}

// forEachField calls f with the number, type and raw value
// of every field in a message. For length-delimited fields
// the value is the payload; for scalar fields it is the
// encoded scalar.
func forEachField(data []byte, f func(protowire.Number, protowire.Type, []byte) error) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]
		var value []byte
		if typ == protowire.BytesType {
			v, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return protowire.ParseError(m)
			}
			value, n = v, m
		} else {
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			value = data[:n]
		}
		if err := f(num, typ, value); err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}
