package codec

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/gogotex/docstore/internal/document"
)

func sampleDoc() document.Document {
	created := time.Date(2024, 3, 1, 12, 0, 0, 123456789, time.UTC)
	return document.Document{
		ID:        42,
		Name:      "doc",
		Owner:     "me",
		Namespace: "ns",
		Payload:   document.StringPtr(`{'key': 'value'}`),
		Created:   created,
		Updated:   created.Add(time.Second),
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	d := sampleDoc()
	b, err := Encode(d)
	require.NoError(t, err)

	got, err := Decode("42", b)
	require.NoError(t, err)
	require.Equal(t, d, got)
}

func TestEncodeEmptyPayload(t *testing.T) {
	d := sampleDoc()
	d.Payload = document.StringPtr("")
	b, err := Encode(d)
	require.NoError(t, err)

	got, err := Decode("42", b)
	require.NoError(t, err)
	require.NotNil(t, got.Payload)
	require.Equal(t, "", *got.Payload)
}

func TestDecodeGarbage(t *testing.T) {
	_, err := Decode("00000000000000000007.doc", []byte("not bson at all"))
	require.Error(t, err)

	var de *document.DecodeError
	require.True(t, errors.As(err, &de))
	require.Equal(t, "00000000000000000007.doc", de.Key)
}

func TestDecodeMissingField(t *testing.T) {
	b, err := bson.Marshal(bson.M{"v": Version, "id": int64(3), "name": "x"})
	require.NoError(t, err)

	_, err = Decode("3", b)
	var de *document.DecodeError
	require.True(t, errors.As(err, &de))
	require.ErrorIs(t, err, errMissingField)
}

func TestDecodeUnknownVersion(t *testing.T) {
	d := sampleDoc()
	b, err := Encode(d)
	require.NoError(t, err)

	var raw bson.M
	require.NoError(t, bson.Unmarshal(b, &raw))
	raw["v"] = int32(99)
	b, err = bson.Marshal(raw)
	require.NoError(t, err)

	_, err = Decode("42", b)
	require.ErrorIs(t, err, errUnknownVersion)
}

func TestDecodeZeroID(t *testing.T) {
	d := sampleDoc()
	d.ID = 0
	b, err := Encode(d)
	require.NoError(t, err)

	_, err = Decode("0", b)
	require.ErrorIs(t, err, errZeroID)
}
