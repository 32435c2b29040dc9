package msg

// Codec defines the serialization contract for messages.
// Implementations handle encoding/decoding messages to/from bytes.
type Codec interface {
	// Encode serializes a message to bytes.
	Encode(m Message) ([]byte, error)

	// Decode deserializes bytes into a message.
	Decode(data []byte) (Message, error)

	// Name returns the codec identifier (e.g., "json", "msgpack").
	Name() string
}

// CodecName constants for format negotiation.
const (
	CodecNameJSON    = "json"
	CodecNameMsgpack = "msgpack"
)

// GetCodec returns a codec by name. Defaults to JSON.
func GetCodec(name string) Codec {
	switch name {
	case CodecNameMsgpack:
		return &MsgpackCodec{}
	case CodecNameJSON, "":
		return &JSONCodec{}
	default:
		return &JSONCodec{}
	}
}
