package cookie

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/passage/internal/protocol"
)

var testSecret = []byte("test-secret")

func testAuth(now time.Time) *Auth {
	return &Auth{
		Timestamp:  uint64(now.Unix()),
		ClientAddr: "203.0.113.9",
		UserName:   "Notch",
		UserID:     uuid.MustParse("069a79f4-44e9-4726-a5be-fca90e38aaf5"),
		Target:     "hub-1",
		ProfileProperties: []protocol.ProfileProperty{
			{Name: "textures", Value: "blob", Signature: "sig"},
		},
		Extra: map[string]string{"rank": "admin"},
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	signed := Sign([]byte("payload"), testSecret)
	require.Greater(t, len(signed), len("payload"))

	payload, err := Verify(signed, testSecret)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), payload)
}

func TestVerifyRejectsTampering(t *testing.T) {
	signed := Sign([]byte("payload"), testSecret)

	for i := range signed {
		flipped := make([]byte, len(signed))
		copy(flipped, signed)
		flipped[i] ^= 0x01

		_, err := Verify(flipped, testSecret)
		assert.ErrorIs(t, err, ErrBadSignature, "bit flip at byte %d", i)
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	signed := Sign([]byte("payload"), testSecret)
	_, err := Verify(signed, []byte("other-secret"))
	require.ErrorIs(t, err, ErrBadSignature)
}

func TestVerifyRejectsTruncated(t *testing.T) {
	_, err := Verify([]byte("too short"), testSecret)
	require.ErrorIs(t, err, ErrBadSignature)
}

func TestOpenAuthRoundTrip(t *testing.T) {
	now := time.Now()
	payload := testAuth(now)

	sealed, err := SealAuth(payload, testSecret)
	require.NoError(t, err)

	opened, err := OpenAuth(sealed, testSecret, "203.0.113.9", time.Hour, now)
	require.NoError(t, err)
	assert.Equal(t, payload, opened)
}

func TestOpenAuthRejectsExpired(t *testing.T) {
	now := time.Now()
	sealed, err := SealAuth(testAuth(now), testSecret)
	require.NoError(t, err)

	_, err = OpenAuth(sealed, testSecret, "203.0.113.9", time.Minute, now.Add(2*time.Minute))
	require.ErrorIs(t, err, ErrExpired)
}

func TestOpenAuthRejectsAddressMismatch(t *testing.T) {
	now := time.Now()
	sealed, err := SealAuth(testAuth(now), testSecret)
	require.NoError(t, err)

	_, err = OpenAuth(sealed, testSecret, "198.51.100.1", time.Hour, now)
	require.ErrorIs(t, err, ErrAddrMismatch)
}

func TestResealUpdatesOnlyTimestampAndTarget(t *testing.T) {
	issued := time.Now().Add(-time.Minute)
	original := testAuth(issued)

	later := issued.Add(time.Minute)
	resealed, err := Reseal(original, "hub-2", testSecret, later)
	require.NoError(t, err)

	opened, err := OpenAuth(resealed, testSecret, "203.0.113.9", time.Hour, later)
	require.NoError(t, err)

	assert.Equal(t, uint64(later.Unix()), opened.Timestamp)
	assert.Equal(t, "hub-2", opened.Target)
	assert.Equal(t, original.ClientAddr, opened.ClientAddr)
	assert.Equal(t, original.UserName, opened.UserName)
	assert.Equal(t, original.UserID, opened.UserID)
	assert.Equal(t, original.ProfileProperties, opened.ProfileProperties)
	assert.Equal(t, original.Extra, opened.Extra)

	// the input payload is untouched
	assert.Equal(t, "hub-1", original.Target)
	assert.Equal(t, uint64(issued.Unix()), original.Timestamp)
}

func TestSessionRoundTrip(t *testing.T) {
	sess := &Session{
		ID:            uuid.New(),
		ServerAddress: "play.example.com",
		ServerPort:    25565,
	}

	raw, err := EncodeSession(sess)
	require.NoError(t, err)

	got, err := DecodeSession(raw)
	require.NoError(t, err)
	assert.Equal(t, sess, got)
}

func TestDecodeSessionRejectsGarbage(t *testing.T) {
	_, err := DecodeSession([]byte("not json"))
	require.Error(t, err)
}
