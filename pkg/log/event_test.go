package log

import (
	"bytes"
	"testing"
)

func TestEnumStrings(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{DirectionIn.String(), "IN"},
		{DirectionOut.String(), "OUT"},
		{Direction(9).String(), "UNKNOWN"},
		{DirectionIn.Tag(), "Peer"},
		{DirectionOut.Tag(), "Local"},
		{LayerTransport.String(), "TRANSPORT"},
		{LayerTLS.String(), "TLS"},
		{LayerSession.String(), "SESSION"},
		{CategoryData.String(), "DATA"},
		{CategoryState.String(), "STATE"},
		{CategoryError.String(), "ERROR"},
		{RoleClient.String(), "CLIENT"},
		{RoleServer.String(), "SERVER"},
		{StateEntityConnection.String(), "CONNECTION"},
		{StateEntityTLS.String(), "TLS"},
		{StateEntityTrust.String(), "TRUST"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestNewDataEventCopies(t *testing.T) {
	src := []byte("abc")
	ev := NewDataEvent(src)
	src[0] = 'z'

	if !bytes.Equal(ev.Data, []byte("abc")) {
		t.Errorf("Data = %q, want copy of original", ev.Data)
	}
	if ev.Size != 3 || ev.Truncated {
		t.Errorf("Size=%d Truncated=%v, want 3 false", ev.Size, ev.Truncated)
	}
}

func TestNewDataEventTruncates(t *testing.T) {
	src := make([]byte, MaxDataCapture+10)
	ev := NewDataEvent(src)

	if ev.Size != len(src) {
		t.Errorf("Size = %d, want %d", ev.Size, len(src))
	}
	if len(ev.Data) != MaxDataCapture {
		t.Errorf("len(Data) = %d, want %d", len(ev.Data), MaxDataCapture)
	}
	if !ev.Truncated {
		t.Error("Truncated = false, want true")
	}
}
