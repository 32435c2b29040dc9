package pwp

import "encoding/json"

// JSONCodec encodes/decodes frames as JSON. This is the default and the
// mandatory format for the auth handshake.
type JSONCodec struct{}

func (c *JSONCodec) Encode(frame *Frame) ([]byte, error) {
	return json.Marshal(frame)
}

func (c *JSONCodec) Decode(data []byte) (*Frame, error) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, err
	}
	return &frame, nil
}

func (c *JSONCodec) Name() string { return CodecNameJSON }
