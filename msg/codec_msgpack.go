package msg

import "github.com/vmihailenco/msgpack/v5"

// MsgpackCodec encodes/decodes messages as MessagePack.
type MsgpackCodec struct{}

func (c *MsgpackCodec) Encode(m Message) ([]byte, error) {
	return msgpack.Marshal(m)
}

func (c *MsgpackCodec) Decode(data []byte) (Message, error) {
	var m Message
	if err := msgpack.Unmarshal(data, &m); err != nil {
		return Message{}, err
	}
	return m, nil
}

func (c *MsgpackCodec) Name() string { return CodecNameMsgpack }
