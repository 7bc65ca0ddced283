// Package decoder turns the raw cart blobs held in the cache into line items.
//
// Decoding never fails from the caller's point of view: every payload maps
// to exactly one Result, and Result.Items always yields at least one item.
package decoder

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"cart-monitor-service/models"

	"google.golang.org/protobuf/encoding/protowire"
)

const (
	FormatProtobuf = "protobuf"
	FormatJSON     = "json"
)

const (
	emptyCartName   = "No items in cart"
	decodeErrorName = "Error decoding cart"
)

var (
	errEmptyProductID  = errors.New("empty product id")
	errInvalidQuantity = errors.New("quantity must be at least 1")
)

// Result is one of Decoded, Empty or Failed.
type Result interface {
	// Items projects the result onto the items of a cart record.
	Items() []models.CartItem
	isResult()
}

// Decoded holds the lines of a successfully decoded cart, in stored order.
// Product names are left blank for enrichment.
type Decoded struct {
	Lines []models.CartItem
}

// Empty is returned for a missing payload or a cart without lines.
type Empty struct{}

// Failed carries an undecodable payload and the reason it was rejected.
type Failed struct {
	Raw []byte
	Err error
}

func (Decoded) isResult() {}
func (Empty) isResult()   {}
func (Failed) isResult()  {}

func (d Decoded) Items() []models.CartItem {
	items := make([]models.CartItem, len(d.Lines))
	copy(items, d.Lines)
	return items
}

func (Empty) Items() []models.CartItem {
	return []models.CartItem{{
		ProductID:   models.EmptyCartProductID,
		ProductName: emptyCartName,
		Placeholder: true,
	}}
}

func (f Failed) Items() []models.CartItem {
	msg := "undecodable payload"
	if f.Err != nil {
		msg = f.Err.Error()
	}
	return []models.CartItem{{
		ProductID:   models.DecodeErrorProductID,
		ProductName: decodeErrorName,
		RawPayload:  rawString(f.Raw),
		Error:       msg,
		Placeholder: true,
	}}
}

// CartDecoder decodes a stored cart payload.
type CartDecoder interface {
	Decode(payload []byte) Result
}

// New returns the decoder for format.
func New(format string) (CartDecoder, error) {
	switch format {
	case FormatProtobuf, "":
		return ProtobufDecoder{}, nil
	case FormatJSON:
		return JSONDecoder{}, nil
	default:
		return nil, fmt.Errorf("unsupported cart payload format %q", format)
	}
}

// ProtobufDecoder reads the Online Boutique cartservice encoding:
//
//	message Cart     { string user_id = 1; repeated CartItem items = 2; }
//	message CartItem { string product_id = 1; int32 quantity = 2; }
type ProtobufDecoder struct{}

func (ProtobufDecoder) Decode(payload []byte) Result {
	if len(payload) == 0 {
		return Empty{}
	}
	lines, err := consumeCart(payload)
	if err != nil {
		return Failed{Raw: payload, Err: err}
	}
	if len(lines) == 0 {
		return Empty{}
	}
	return Decoded{Lines: lines}
}

func consumeCart(b []byte) ([]models.CartItem, error) {
	var lines []models.CartItem
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("cart: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == 1 && typ == protowire.BytesType:
			var v []byte
			v, n = protowire.ConsumeBytes(b)
			if n >= 0 && !utf8.Valid(v) {
				return nil, errors.New("cart: user_id is not valid UTF-8")
			}
		case num == 2 && typ == protowire.BytesType:
			var v []byte
			v, n = protowire.ConsumeBytes(b)
			if n >= 0 {
				line, err := consumeItem(v)
				if err != nil {
					return nil, fmt.Errorf("cart item %d: %w", len(lines), err)
				}
				lines = append(lines, line)
			}
		case num == 1 || num == 2:
			return nil, fmt.Errorf("cart: field %d has wire type %d", num, typ)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return nil, fmt.Errorf("cart: %w", protowire.ParseError(n))
		}
		b = b[n:]
	}
	return lines, nil
}

func consumeItem(b []byte) (models.CartItem, error) {
	var item models.CartItem
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return item, protowire.ParseError(n)
		}
		b = b[n:]

		switch {
		case num == 1 && typ == protowire.BytesType:
			var v []byte
			v, n = protowire.ConsumeBytes(b)
			if n >= 0 {
				if !utf8.Valid(v) {
					return item, errors.New("product_id is not valid UTF-8")
				}
				item.ProductID = string(v)
			}
		case num == 2 && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			item.Quantity = int(int32(v))
		case num == 1 || num == 2:
			return item, fmt.Errorf("field %d has wire type %d", num, typ)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return item, protowire.ParseError(n)
		}
		b = b[n:]
	}
	return item, validate(item)
}

// JSONDecoder reads carts stored as {"user_id": ..., "items": [{"product_id": ..., "quantity": ...}]}.
type JSONDecoder struct{}

type jsonCart struct {
	UserID string `json:"user_id"`
	Items  []struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	} `json:"items"`
}

func (JSONDecoder) Decode(payload []byte) Result {
	if len(strings.TrimSpace(string(payload))) == 0 {
		return Empty{}
	}
	var cart jsonCart
	if err := json.Unmarshal(payload, &cart); err != nil {
		return Failed{Raw: payload, Err: fmt.Errorf("cart: %w", err)}
	}
	if len(cart.Items) == 0 {
		return Empty{}
	}

	lines := make([]models.CartItem, 0, len(cart.Items))
	for i, it := range cart.Items {
		line := models.CartItem{ProductID: it.ProductID, Quantity: it.Quantity}
		if err := validate(line); err != nil {
			return Failed{Raw: payload, Err: fmt.Errorf("cart item %d: %w", i, err)}
		}
		lines = append(lines, line)
	}
	return Decoded{Lines: lines}
}

func validate(item models.CartItem) error {
	if item.ProductID == "" {
		return errEmptyProductID
	}
	if item.Quantity < 1 {
		return fmt.Errorf("%w, got %d", errInvalidQuantity, item.Quantity)
	}
	return nil
}

// rawString renders printable payloads as text and everything else as hex.
func rawString(raw []byte) string {
	if utf8.Valid(raw) && strings.IndexFunc(string(raw), func(r rune) bool {
		return unicode.IsControl(r) && r != '\n' && r != '\t'
	}) < 0 {
		return string(raw)
	}
	return hex.EncodeToString(raw)
}

// MarshalProtobuf encodes a cart in the cartservice wire format. Product
// names are not part of the stored cart and are dropped.
func MarshalProtobuf(userID string, items []models.CartItem) []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendString(b, userID)
	for _, it := range items {
		var line []byte
		line = protowire.AppendTag(line, 1, protowire.BytesType)
		line = protowire.AppendString(line, it.ProductID)
		line = protowire.AppendTag(line, 2, protowire.VarintType)
		line = protowire.AppendVarint(line, uint64(int64(it.Quantity)))

		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, line)
	}
	return b
}
