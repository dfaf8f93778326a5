package handlers

import (
	"strconv"
	"time"

	"funnelboard/internal/models/fberrors"

	"github.com/gin-gonic/gin"
)

const DateLayout = "2006-01-02"

// ParamID reads a positive integer path parameter. It answers 400 and
// returns false when the value is not one.
func ParamID(c *gin.Context, name string) (uint, bool) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || n == 0 {
		fberrors.Abort(c, fberrors.Validation("%s must be a positive integer", name))
		return 0, false
	}
	return uint(n), true
}

// QueryID reads an optional positive integer query parameter.
func QueryID(c *gin.Context, name string) (*uint, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || n == 0 {
		fberrors.Abort(c, fberrors.Validation("%s must be a positive integer", name))
		return nil, false
	}
	id := uint(n)
	return &id, true
}

// QueryDate reads an optional YYYY-MM-DD query parameter as UTC midnight.
func QueryDate(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	t, err := time.ParseInLocation(DateLayout, raw, time.UTC)
	if err != nil {
		fberrors.Abort(c, fberrors.Validation("%s: invalid date format, use YYYY-MM-DD", name))
		return nil, false
	}
	return &t, true
}

// BindJSON decodes the body into obj and answers 400 on failure.
func BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		fberrors.Abort(c, fberrors.Validation("invalid request body"))
		return false
	}
	return true
}

// QueryRange reads start_date and end_date. The end date covers its whole
// day.
func QueryRange(c *gin.Context) (start, end *time.Time, ok bool) {
	if start, ok = QueryDate(c, "start_date"); !ok {
		return nil, nil, false
	}
	if end, ok = QueryDate(c, "end_date"); !ok {
		return nil, nil, false
	}
	if end != nil {
		last := end.Add(24*time.Hour - time.Nanosecond)
		end = &last
	}
	if start != nil && end != nil && end.Before(*start) {
		fberrors.Abort(c, fberrors.Validation("end_date is before start_date"))
		return nil, nil, false
	}
	return start, end, true
}
