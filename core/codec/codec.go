package codec

import (
	"encoding/json"
	"encoding/xml"
	"errors"
	"strings"
)

var (
	ErrUnsupportedCodec = errors.New("unsupported codec")
)

// Codec serializes response models and deserializes request bodies
type Codec interface {
	// Encode encodes a value to bytes
	Encode(v interface{}) ([]byte, error)

	// Decode decodes bytes to a value
	Decode(data []byte, v interface{}) error

	// Name returns the codec name
	Name() string

	// ContentType returns the media type the codec produces
	ContentType() string
}

// Registry holds the codecs available to response formatters, keyed by media type.
// A Registry is built once at boot and only read afterwards.
type Registry struct {
	codecs []Codec
}

// NewRegistry creates a registry from the given codecs, in preference order
func NewRegistry(codecs ...Codec) *Registry {
	return &Registry{codecs: codecs}
}

// Default returns a registry with the JSON, XML and Protobuf codecs
func Default() *Registry {
	return NewRegistry(&JSONCodec{}, &XMLCodec{}, &ProtobufCodec{})
}

// Lookup returns the first codec that can produce the given media type.
// Parameters such as charset are ignored.
func (r *Registry) Lookup(contentType string) (Codec, error) {
	mediaType := contentType
	if idx := strings.IndexByte(mediaType, ';'); idx != -1 {
		mediaType = mediaType[:idx]
	}
	mediaType = strings.TrimSpace(strings.ToLower(mediaType))

	for _, c := range r.codecs {
		if c.ContentType() == mediaType {
			return c, nil
		}
	}
	return nil, ErrUnsupportedCodec
}

// Codecs returns the registered codecs
func (r *Registry) Codecs() []Codec {
	out := make([]Codec, len(r.codecs))
	copy(out, r.codecs)
	return out
}

// JSONCodec implements JSON encoding/decoding
type JSONCodec struct{}

func (c *JSONCodec) Encode(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (c *JSONCodec) Decode(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (c *JSONCodec) Name() string {
	return "json"
}

func (c *JSONCodec) ContentType() string {
	return "application/json"
}

// XMLCodec implements XML encoding/decoding
type XMLCodec struct{}

func (c *XMLCodec) Encode(v interface{}) ([]byte, error) {
	data, err := xml.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), data...), nil
}

func (c *XMLCodec) Decode(data []byte, v interface{}) error {
	return xml.Unmarshal(data, v)
}

func (c *XMLCodec) Name() string {
	return "xml"
}

func (c *XMLCodec) ContentType() string {
	return "application/xml"
}
