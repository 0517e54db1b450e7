package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"

	"github.com/imgajeed76/sqlgit/internal/util"
)

// Method names a compression method. The string values are stored
// verbatim in the compression columns and the metadata table, so they
// are format constants.
type Method string

const (
	MethodNone Method = "none"
	MethodZlib Method = "zlib"
	MethodZstd Method = "zstd"
)

// ParseMethod parses a stored compression method name.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case MethodNone, MethodZlib, MethodZstd:
		return Method(s), nil
	default:
		return "", fmt.Errorf("%w: unknown method %q", util.ErrCompression, s)
	}
}

// DictKind keys the trained zstd dictionaries. Commits and trees have
// highly repetitive structure and get their own dictionaries; chunks
// share one. Inline blobs and tags compress without a dictionary.
type DictKind string

const (
	DictCommit DictKind = "commit"
	DictTree   DictKind = "tree"
	DictChunk  DictKind = "chunk"

	// DictNone selects the dictionary-free encoder.
	DictNone DictKind = ""
)

// DictKinds lists the trainable dictionary kinds.
var DictKinds = []DictKind{DictCommit, DictTree, DictChunk}

// Codec dispatches compression and decompression for the store. A
// Codec is built once at repository open time and is read-only for the
// rest of the session, except for SetMethod. Dictionary training does
// not change a Codec; it builds a new one that replaces the store's.
type Codec struct {
	method   Method
	dicts    map[DictKind][]byte
	encoders map[DictKind]*zstd.Encoder
	plainEnc *zstd.Encoder
	decoder  *zstd.Decoder
}

// NewCodec builds a codec for the active method. dicts holds the
// trained per-kind dictionaries (absent kinds compress dictionary-free)
// and legacy is the old single-dictionary slot, registered for decode
// only so frames written before per-kind training stay readable.
func NewCodec(method Method, dicts map[DictKind][]byte, legacy []byte) (*Codec, error) {
	c := &Codec{
		method:   method,
		dicts:    map[DictKind][]byte{},
		encoders: map[DictKind]*zstd.Encoder{},
	}

	var decOpts []zstd.DOption
	for kind, dict := range dicts {
		if len(dict) == 0 {
			continue
		}
		c.dicts[kind] = dict
		enc, err := zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.SpeedDefault),
			zstd.WithEncoderDict(dict),
		)
		if err != nil {
			return nil, fmt.Errorf("%w: encoder for %s dictionary: %v", util.ErrCompression, kind, err)
		}
		c.encoders[kind] = enc
		decOpts = append(decOpts, zstd.WithDecoderDicts(dict))
	}
	if len(legacy) > 0 {
		decOpts = append(decOpts, zstd.WithDecoderDicts(legacy))
	}

	var err error
	c.plainEnc, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("%w: zstd encoder: %v", util.ErrCompression, err)
	}
	c.decoder, err = zstd.NewReader(nil, decOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: zstd decoder: %v", util.ErrCompression, err)
	}
	return c, nil
}

// Method returns the active compression method for new writes.
func (c *Codec) Method() Method {
	return c.method
}

// SetMethod switches the active compression method for new writes.
// Existing rows keep their recorded method and stay readable.
func (c *Codec) SetMethod(m Method) {
	c.method = m
}

// HasDict reports whether a trained dictionary is loaded for kind.
func (c *Codec) HasDict(kind DictKind) bool {
	_, ok := c.encoders[kind]
	return ok
}

// DictID returns the dictionary ID embedded in the trained dictionary
// for kind, or 0 when none is loaded.
func (c *Codec) DictID(kind DictKind) uint32 {
	dict, ok := c.dicts[kind]
	if !ok {
		return 0
	}
	id, err := ParseDictID(dict)
	if err != nil {
		return 0
	}
	return id
}

// Compress compresses data with the active method. For zstd, kind
// selects the trained dictionary; DictNone (and kinds with no trained
// dictionary) compress dictionary-free.
func (c *Codec) Compress(data []byte, kind DictKind) ([]byte, error) {
	switch c.method {
	case MethodNone:
		return data, nil
	case MethodZlib:
		var buf bytes.Buffer
		w := zlib.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("%w: zlib: %v", util.ErrCompression, err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("%w: zlib: %v", util.ErrCompression, err)
		}
		return buf.Bytes(), nil
	case MethodZstd:
		if enc, ok := c.encoders[kind]; ok {
			return enc.EncodeAll(data, nil), nil
		}
		return c.plainEnc.EncodeAll(data, nil), nil
	default:
		return nil, fmt.Errorf("%w: unknown method %q", util.ErrCompression, c.method)
	}
}

// Decompress reverses Compress for a row stored with the given method.
// zstd frames carry their dictionary ID; the decoder resolves it
// against the registered dictionaries, and frames with dict_id=0 never
// require one.
func (c *Codec) Decompress(data []byte, method Method) ([]byte, error) {
	switch method {
	case MethodNone:
		return data, nil
	case MethodZlib:
		r, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: zlib: %v", util.ErrCompression, err)
		}
		defer r.Close()
		raw, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("%w: zlib: %v", util.ErrCompression, err)
		}
		return raw, nil
	case MethodZstd:
		raw, err := c.decoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", util.ErrCompression, err)
		}
		return raw, nil
	default:
		return nil, fmt.Errorf("%w: unknown method %q", util.ErrCompression, method)
	}
}
