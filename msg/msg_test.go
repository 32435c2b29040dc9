package msg_test

import (
	"bytes"
	"testing"

	"github.com/xraph/provepool/id"
	"github.com/xraph/provepool/msg"
)

func TestConstructors(t *testing.T) {
	jobID := id.NewJobID()

	m := msg.NewExecute(jobID, []byte(`{"x":3}`))
	if m.Kind != msg.KindExecute || m.JobID != jobID.String() {
		t.Errorf("unexpected execute message: %+v", m)
	}
	if m.Terminal() {
		t.Error("execute must not be terminal")
	}

	p := msg.NewProgress(jobID, "witness")
	if p.Phase != "witness" || p.Terminal() {
		t.Errorf("unexpected progress message: %+v", p)
	}

	r := msg.NewResult(jobID, []byte("proof"))
	if !r.Terminal() {
		t.Error("result must be terminal")
	}

	f := msg.NewFailure(jobID, "bad witness")
	if !f.Terminal() || f.Reason != "bad witness" {
		t.Errorf("unexpected failure message: %+v", f)
	}
}

func TestValidate(t *testing.T) {
	jobID := id.NewJobID()

	tests := []struct {
		name    string
		m       msg.Message
		wantErr bool
	}{
		{"valid execute", msg.NewExecute(jobID, []byte("p")), false},
		{"valid result", msg.NewResult(jobID, nil), false},
		{"unknown kind", msg.Message{Kind: "nope", JobID: jobID.String()}, true},
		{"missing job id", msg.Message{Kind: msg.KindExecute}, true},
		{"failure without reason", msg.Message{Kind: msg.KindFailure, JobID: jobID.String()}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.m.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCodecRoundTrip(t *testing.T) {
	jobID := id.NewJobID()
	original := msg.NewResult(jobID, []byte{0x01, 0x02, 0x03})

	for _, codec := range []msg.Codec{&msg.JSONCodec{}, &msg.MsgpackCodec{}} {
		t.Run(codec.Name(), func(t *testing.T) {
			data, err := codec.Encode(original)
			if err != nil {
				t.Fatalf("encode failed: %v", err)
			}

			decoded, err := codec.Decode(data)
			if err != nil {
				t.Fatalf("decode failed: %v", err)
			}

			if decoded.Kind != original.Kind || decoded.JobID != original.JobID {
				t.Errorf("round-trip mismatch: %+v != %+v", decoded, original)
			}
			if !bytes.Equal(decoded.Value, original.Value) {
				t.Errorf("value mismatch: %v != %v", decoded.Value, original.Value)
			}
		})
	}
}

func TestGetCodec(t *testing.T) {
	if msg.GetCodec("msgpack").Name() != msg.CodecNameMsgpack {
		t.Error("expected msgpack codec")
	}
	if msg.GetCodec("").Name() != msg.CodecNameJSON {
		t.Error("expected json codec for empty name")
	}
	if msg.GetCodec("protobuf").Name() != msg.CodecNameJSON {
		t.Error("expected json fallback for unknown name")
	}
}
