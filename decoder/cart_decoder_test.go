package decoder

import (
	"encoding/hex"
	"testing"

	"cart-monitor-service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
	"pgregory.net/rapid"
)

func TestProtobufDecoder_Decode(t *testing.T) {
	payload := MarshalProtobuf("alice", []models.CartItem{
		{ProductID: "OLJCESPC7Z", Quantity: 1},
		{ProductID: "2ZYFJ3GM2N", Quantity: 3},
	})

	result := ProtobufDecoder{}.Decode(payload)

	decoded, ok := result.(Decoded)
	require.True(t, ok, "expected Decoded, got %T", result)
	assert.Equal(t, []models.CartItem{
		{ProductID: "OLJCESPC7Z", Quantity: 1},
		{ProductID: "2ZYFJ3GM2N", Quantity: 3},
	}, decoded.Items())
}

func TestProtobufDecoder_SkipsUnknownFields(t *testing.T) {
	payload := MarshalProtobuf("alice", []models.CartItem{{ProductID: "66VCHSJNUP", Quantity: 2}})
	payload = protowire.AppendTag(payload, 9, protowire.VarintType)
	payload = protowire.AppendVarint(payload, 42)

	result := ProtobufDecoder{}.Decode(payload)

	require.IsType(t, Decoded{}, result)
	assert.Len(t, result.Items(), 1)
}

func TestProtobufDecoder_CatalogIDsMatchingPlaceholderIDs(t *testing.T) {
	payload := MarshalProtobuf("alice", []models.CartItem{
		{ProductID: models.EmptyCartProductID, Quantity: 1},
		{ProductID: models.DecodeErrorProductID, Quantity: 2},
	})

	items := ProtobufDecoder{}.Decode(payload).Items()

	require.Len(t, items, 2)
	for _, item := range items {
		assert.False(t, item.Placeholder, item.ProductID)
	}
}

func TestProtobufDecoder_EmptyPayloads(t *testing.T) {
	tests := map[string][]byte{
		"nil":         nil,
		"zero length": {},
		"no lines":    MarshalProtobuf("alice", nil),
	}
	for name, payload := range tests {
		t.Run(name, func(t *testing.T) {
			result := ProtobufDecoder{}.Decode(payload)

			require.IsType(t, Empty{}, result)
			items := result.Items()
			require.Len(t, items, 1)
			assert.Equal(t, models.EmptyCartProductID, items[0].ProductID)
			assert.True(t, items[0].Placeholder)
		})
	}
}

func TestProtobufDecoder_Malformed(t *testing.T) {
	tests := map[string][]byte{
		"field number zero":  {0x00, 0x01},
		"overflowing varint": {0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		"truncated length":   {0x12, 0x10, 0x0a},
		"reserved wire type": []byte("not-a-cart"),
		"zero quantity":      MarshalProtobuf("bob", []models.CartItem{{ProductID: "9SIQT8TOJO", Quantity: 0}}),
		"empty product id":   MarshalProtobuf("bob", []models.CartItem{{ProductID: "", Quantity: 1}}),
		"items as varint":    {0x10, 0x01},
	}
	for name, payload := range tests {
		t.Run(name, func(t *testing.T) {
			result := ProtobufDecoder{}.Decode(payload)

			failed, ok := result.(Failed)
			require.True(t, ok, "expected Failed, got %T", result)
			assert.Error(t, failed.Err)

			items := result.Items()
			require.Len(t, items, 1)
			assert.Equal(t, models.DecodeErrorProductID, items[0].ProductID)
			assert.NotEmpty(t, items[0].Error)
			assert.NotEmpty(t, items[0].RawPayload)
			assert.True(t, items[0].Placeholder)
		})
	}
}

func TestFailed_RawPayloadEncoding(t *testing.T) {
	binary := []byte{0x00, 0x01, 0xfe}
	assert.Equal(t, hex.EncodeToString(binary), Failed{Raw: binary}.Items()[0].RawPayload)
	assert.Equal(t, "not-a-cart", Failed{Raw: []byte("not-a-cart")}.Items()[0].RawPayload)
}

func TestJSONDecoder_Decode(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    any
		items   int
	}{
		{"two lines", `{"user_id":"alice","items":[{"product_id":"a","quantity":1},{"product_id":"b","quantity":2}]}`, Decoded{}, 2},
		{"no items", `{"user_id":"alice","items":[]}`, Empty{}, 1},
		{"blank", "  ", Empty{}, 1},
		{"broken json", `{"user_id":`, Failed{}, 1},
		{"negative quantity", `{"items":[{"product_id":"a","quantity":-1}]}`, Failed{}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := JSONDecoder{}.Decode([]byte(tt.payload))
			assert.IsType(t, tt.want, result)
			assert.Len(t, result.Items(), tt.items)
		})
	}
}

func TestNew(t *testing.T) {
	d, err := New(FormatJSON)
	require.NoError(t, err)
	assert.IsType(t, JSONDecoder{}, d)

	d, err = New(FormatProtobuf)
	require.NoError(t, err)
	assert.IsType(t, ProtobufDecoder{}, d)

	_, err = New("avro")
	assert.Error(t, err)
}

func genItems() *rapid.Generator[[]models.CartItem] {
	return rapid.SliceOfN(rapid.Custom(func(t *rapid.T) models.CartItem {
		return models.CartItem{
			ProductID: rapid.StringMatching(`[A-Z0-9]{1,10}`).Draw(t, "product_id"),
			Quantity:  rapid.IntRange(1, 1000).Draw(t, "quantity"),
		}
	}), 1, 20)
}

func TestProperty_ValidPayloadsRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		items := genItems().Draw(t, "items")
		userID := rapid.StringMatching(`[a-z0-9-]{1,16}`).Draw(t, "user_id")

		result := ProtobufDecoder{}.Decode(MarshalProtobuf(userID, items))

		decoded, ok := result.(Decoded)
		if !ok {
			t.Fatalf("expected Decoded, got %T", result)
		}
		if len(decoded.Lines) != len(items) {
			t.Fatalf("expected %d lines, got %d", len(items), len(decoded.Lines))
		}
		for i := range items {
			if decoded.Lines[i] != items[i] {
				t.Fatalf("line %d: expected %+v, got %+v", i, items[i], decoded.Lines[i])
			}
		}
	})
}

func TestProperty_MalformedPayloadsYieldOneDiagnostic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		// Field number zero can never start a valid message.
		prefix := rapid.ByteRange(0x00, 0x07).Draw(t, "tag")
		rest := rapid.SliceOf(rapid.Byte()).Draw(t, "rest")
		payload := append([]byte{prefix}, rest...)

		result := ProtobufDecoder{}.Decode(payload)

		if _, ok := result.(Failed); !ok {
			t.Fatalf("expected Failed, got %T", result)
		}
		items := result.Items()
		if len(items) != 1 || items[0].ProductID != models.DecodeErrorProductID {
			t.Fatalf("expected one diagnostic item, got %+v", items)
		}
	})
}

func TestProperty_ArbitraryBytesNeverPanic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		payload := rapid.SliceOf(rapid.Byte()).Draw(t, "payload")

		items := ProtobufDecoder{}.Decode(payload).Items()
		if len(items) == 0 {
			t.Fatalf("decode produced no items")
		}
	})
}
