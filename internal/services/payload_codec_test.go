package services

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"latepass-system/internal/status"
)

func testPayload() TicketPayload {
	return TicketPayload{
		TicketID:    "a1b2c3d4e5f60718",
		StudentID:   "student-1",
		TimetableID: "tt-1",
		ExpiresAt:   time.Date(2025, 9, 1, 9, 15, 0, 0, time.UTC).Unix(),
	}
}

func TestPayloadCodec_RoundTrip(t *testing.T) {
	codec := NewPayloadCodec("test-secret")

	encoded, err := codec.Encode(testPayload())
	require.NoError(t, err)
	assert.Contains(t, encoded, ".")

	decoded, err := codec.Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, testPayload(), decoded)
}

func TestPayloadCodec_Decode_Rejections(t *testing.T) {
	codec := NewPayloadCodec("test-secret")

	valid, err := codec.Encode(testPayload())
	require.NoError(t, err)
	parts := strings.SplitN(valid, ".", 2)

	otherKey, err := NewPayloadCodec("other-secret").Encode(testPayload())
	require.NoError(t, err)

	tests := []struct {
		name    string
		qrData  string
		wantErr error
	}{
		{name: "empty", qrData: "", wantErr: status.ErrMalformedPayload},
		{name: "no separator", qrData: "lmaooolol", wantErr: status.ErrMalformedPayload},
		{name: "empty signature", qrData: parts[0] + ".", wantErr: status.ErrMalformedPayload},
		{name: "invalid base64", qrData: "!!!." + parts[1], wantErr: status.ErrMalformedPayload},
		{name: "tampered body", qrData: parts[0][:len(parts[0])-2] + "xx." + parts[1], wantErr: status.ErrInvalidSignature},
		{name: "tampered signature", qrData: parts[0] + "." + strings.Repeat("0", len(parts[1])), wantErr: status.ErrInvalidSignature},
		{name: "signed with another key", qrData: otherKey, wantErr: status.ErrInvalidSignature},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.Decode(tt.qrData)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPayloadCodec_Decode_IncompletePayload(t *testing.T) {
	codec := NewPayloadCodec("test-secret")

	// Correctly signed but structurally incomplete payloads are rejected.
	encoded, err := codec.Encode(TicketPayload{TicketID: "only-id"})
	require.NoError(t, err)

	_, err = codec.Decode(encoded)
	assert.ErrorIs(t, err, status.ErrMalformedPayload)
}

func TestTicketPayload_Matches(t *testing.T) {
	expiresAt := time.Date(2025, 9, 1, 9, 15, 0, 0, time.UTC)
	p := TicketPayload{ExpiresAt: expiresAt.Unix()}

	assert.True(t, p.Matches(expiresAt))
	assert.False(t, p.Matches(expiresAt.Add(time.Minute)))
}
