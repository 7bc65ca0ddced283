package models

import (
	"strings"
	"unicode/utf8"
)

// UnknownProductName is used when the catalog cannot resolve a product.
const UnknownProductName = "Unknown"

// Placeholder product ids for carts whose payload yields no real lines.
const (
	EmptyCartProductID   = "empty_cart"
	DecodeErrorProductID = "decode_error"
)

// CartKeyPrefix is the prefix of every cart key in the cache keyspace.
const CartKeyPrefix = "cart:"

// CartDataField is the hash field holding the serialized cart.
const CartDataField = "data"

type EntryType string

const EntryTypeHash EntryType = "hash"

// CacheEntry is a key observed during a keyspace scan. Fields is only
// populated for hash entries once they have been selected for processing.
type CacheEntry struct {
	Key         string
	Type        EntryType
	IdleSeconds int64
	Fields      map[string][]byte
}

// UserID derives the owning user from a key of the form "cart:<user_id>".
// Keys without the prefix are returned unchanged.
func (e CacheEntry) UserID() string {
	if _, id, ok := strings.Cut(e.Key, ":"); ok {
		return id
	}
	return e.Key
}

// Payload returns the raw serialized cart, or nil when the field is absent.
func (e CacheEntry) Payload() []byte {
	return e.Fields[CartDataField]
}

type CartItem struct {
	ProductID   string `json:"product_id"`
	Quantity    int    `json:"quantity"`
	ProductName string `json:"product_name"`
	RawPayload  string `json:"raw_payload,omitempty"`
	Error       string `json:"error,omitempty"`
	// Placeholder marks an item that stands in for a cart with no real lines.
	// Placeholders are never looked up in the catalog.
	Placeholder bool `json:"placeholder,omitempty"`
}

type CartRecord struct {
	UserID          string     `json:"user_id"`
	IdleTimeSeconds int64      `json:"idle_time_seconds"`
	Items           []CartItem `json:"items"`
}

// Normalized returns a copy of r whose strings are valid UTF-8. Every invalid
// byte becomes U+FFFD, the same substitution encoding/json makes, so the
// record survives a trip through an AbandonmentEvent unchanged.
func (r CartRecord) Normalized() CartRecord {
	out := r
	out.UserID = ValidUTF8(r.UserID)
	if r.Items != nil {
		out.Items = make([]CartItem, len(r.Items))
		for i, item := range r.Items {
			item.ProductID = ValidUTF8(item.ProductID)
			item.ProductName = ValidUTF8(item.ProductName)
			item.RawPayload = ValidUTF8(item.RawPayload)
			item.Error = ValidUTF8(item.Error)
			out.Items[i] = item
		}
	}
	return out
}

// ValidUTF8 replaces each invalid byte of s with U+FFFD.
func ValidUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			b.WriteRune(utf8.RuneError)
		} else {
			b.WriteString(s[i : i+size])
		}
		i += size
	}
	return b.String()
}
