package msg

import "encoding/json"

// JSONCodec encodes/decodes messages as JSON.
type JSONCodec struct{}

func (c *JSONCodec) Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

func (c *JSONCodec) Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, err
	}
	return m, nil
}

func (c *JSONCodec) Name() string { return CodecNameJSON }
