package dto

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"marketplace-ledger/internal/core/ports"

	"github.com/google/uuid"
)

// EncodeCursor renders a page position as an opaque token.
func EncodeCursor(c *ports.TransactionCursor) string {
	if c == nil {
		return ""
	}
	raw := strconv.FormatInt(c.CreatedAt.UnixNano(), 10) + "|" + c.ID.String()
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a token produced by EncodeCursor. An empty token means the first page.
func DecodeCursor(token string) (*ports.TransactionCursor, error) {
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor")
	}
	nanos, id, ok := strings.Cut(string(raw), "|")
	if !ok {
		return nil, fmt.Errorf("invalid cursor")
	}
	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor")
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor")
	}
	return &ports.TransactionCursor{CreatedAt: time.Unix(0, n).UTC(), ID: parsed}, nil
}
