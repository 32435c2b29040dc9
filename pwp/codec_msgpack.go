package pwp

import "github.com/vmihailenco/msgpack/v5"

// MsgpackCodec encodes/decodes frames as MessagePack, for clients that
// move large payloads and proofs and want a compact binary format.
type MsgpackCodec struct{}

func (c *MsgpackCodec) Encode(frame *Frame) ([]byte, error) {
	return msgpack.Marshal(frame)
}

func (c *MsgpackCodec) Decode(data []byte) (*Frame, error) {
	var frame Frame
	if err := msgpack.Unmarshal(data, &frame); err != nil {
		return nil, err
	}
	return &frame, nil
}

func (c *MsgpackCodec) Name() string { return CodecNameMsgpack }
