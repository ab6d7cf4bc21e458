package handler

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"marketplace-ledger/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// queryLimit parses the optional limit query parameter. Zero means "use the default".
func queryLimit(c *gin.Context) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, apperror.Validation("limit must be a positive integer")
	}
	return n, nil
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperror.Validation(fmt.Sprintf("%s must be a UUID", name))
	}
	return id, nil
}

// queryTime accepts RFC 3339 timestamps or plain dates. A plain end date
// covers the whole day.
func queryTime(c *gin.Context, name string, endOfDay bool) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, apperror.Validation(fmt.Sprintf("%s must be RFC 3339 or YYYY-MM-DD", name))
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func optionalQuery(c *gin.Context, name string) *string {
	v, ok := c.GetQuery(name)
	if !ok || v == "" {
		return nil
	}
	return &v
}
