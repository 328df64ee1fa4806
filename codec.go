package odata

import (
	"bytes"

	"github.com/goccy/go-json"
)

// Codec converts between Go values and request or response payloads.
type Codec interface {
	Marshal(v interface{}) ([]byte, error)
	Unmarshal(data []byte, v interface{}) error
	ContentType() string
}

// JSONCodec is the default Codec. Numbers decode as json.Number when the
// target is an interface, so large Edm.Int64 and Edm.Decimal values survive.
type JSONCodec struct{}

// Marshal encodes v as JSON.
func (JSONCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal decodes JSON data into v.
func (JSONCodec) Unmarshal(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

// ContentType returns the media type of request bodies.
func (JSONCodec) ContentType() string {
	return "application/json"
}
