package gateway

import "testing"

func TestDecodeFrame(t *testing.T) {
	data := []byte(`{"type":"event","event":"chat","payload":{"sessionKey":"claude:main","text":"hi"}}`)
	frame, err := DecodeFrame(data)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if !frame.IsEvent() {
		t.Errorf("IsEvent = false for event frame")
	}
	if frame.Event != EventChat {
		t.Errorf("Event = %q, want chat", frame.Event)
	}
	if frame.SessionKey() != "claude:main" {
		t.Errorf("SessionKey = %q, want claude:main", frame.SessionKey())
	}
}

func TestDecodeFrameResponse(t *testing.T) {
	frame, err := DecodeFrame([]byte(`{"type":"response","id":"r1","result":{"protocol":2}}`))
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if frame.IsEvent() {
		t.Errorf("IsEvent = true for response frame")
	}
	if frame.ID != "r1" {
		t.Errorf("ID = %q, want r1", frame.ID)
	}
}

func TestDecodeFrameErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"invalid json", `{"type":`},
		{"not an object", `"hello"`},
		{"missing type", `{"event":"chat"}`},
		{"empty type", `{"type":"","event":"chat"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeFrame([]byte(tt.data)); err == nil {
				t.Fatal("DecodeFrame succeeded, want error")
			}
		})
	}
}

func TestSessionKeyMissing(t *testing.T) {
	frame := &Frame{Type: TypeEvent, Event: EventChat, Payload: map[string]any{"sessionKey": 42}}
	if key := frame.SessionKey(); key != "" {
		t.Errorf("SessionKey = %q for non-string value, want empty", key)
	}
	frame = &Frame{Type: TypeEvent, Event: EventChat}
	if key := frame.SessionKey(); key != "" {
		t.Errorf("SessionKey = %q for nil payload, want empty", key)
	}
}
