// Package http exposes the budget services as a JSON API.
//
// This file implements utilities for decoding request bodies and parsing
// query parameters into domain values.

package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"dailybudget/internal/core"

	"github.com/shopspring/decimal"
)

const maxBodyBytes = 1 << 20

// DecodeJSON reads a single JSON object into dst. Unknown fields and
// trailing data are rejected.
func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return core.Invalid("body", "Request body is required")
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return core.Invalid("body", "Request body is required")
		}
		return core.Invalid("body", "Invalid request body: %v", err)
	}
	if dec.More() {
		return core.Invalid("body", "Request body must contain a single JSON object")
	}
	return nil
}

// ParseDay accepts a millisecond timestamp or a yyyy-MM-dd date in loc.
// The empty string is core.NoDay.
func ParseDay(value string, loc *time.Location) (core.Day, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return core.NoDay, nil
	}
	if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
		return core.Day(ms), nil
	}
	return core.ParseDay(value, loc)
}

// ParseDayParam reads a day from the query, failing with a validation error
// that names the parameter.
func ParseDayParam(query url.Values, key string, loc *time.Location) (core.Day, error) {
	d, err := ParseDay(query.Get(key), loc)
	if err != nil {
		return core.NoDay, core.Invalid(key, "Invalid %s: expected yyyy-MM-dd or milliseconds", key)
	}
	return d, nil
}

// ParseToday reads the caller's local midnight from ?today=, falling back to
// the server's today in loc.
func ParseToday(query url.Values, loc *time.Location, now time.Time) (core.Day, error) {
	d, err := ParseDayParam(query, "today", loc)
	if err != nil || d.IsSet() {
		return d, err
	}
	return core.DayOf(now, loc), nil
}

func parseAmountParam(query url.Values, key string) (decimal.NullDecimal, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.NullDecimal{}, core.Invalid(key, "Invalid %s", key)
	}
	return decimal.NewNullDecimal(d), nil
}

// ParseEntryFilter builds a listing filter from date, from, to, category,
// minAmount, maxAmount and search. A present but empty category selects
// uncategorized entries.
func ParseEntryFilter(query url.Values, loc *time.Location) (core.EntryFilter, error) {
	var f core.EntryFilter
	var err error
	if f.Date, err = ParseDayParam(query, "date", loc); err != nil {
		return f, err
	}
	if f.From, err = ParseDayParam(query, "from", loc); err != nil {
		return f, err
	}
	if f.To, err = ParseDayParam(query, "to", loc); err != nil {
		return f, err
	}
	if f.MinAmount, err = parseAmountParam(query, "minAmount"); err != nil {
		return f, err
	}
	if f.MaxAmount, err = parseAmountParam(query, "maxAmount"); err != nil {
		return f, err
	}
	if _, present := query["category"]; present {
		f.Category = core.Some(strings.TrimSpace(query.Get("category")))
	}
	f.Search = query.Get("search")
	return f, nil
}

// ParseBool treats "1", "true" and "yes" as true.
func ParseBool(query url.Values, key string) bool {
	switch strings.ToLower(strings.TrimSpace(query.Get(key))) {
	case "1", "true", "yes":
		return true
	}
	return false
}
