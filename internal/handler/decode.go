package handler

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

// Form-driven clients send numbers as strings ("5", "20.5"). The types
// below accept either a JSON number or a numeric string. An empty string
// decodes to zero so the service reports the field as missing.

// jsonScalar returns the literal of a number or the trimmed contents of a
// string. ok is false for null and "".
func jsonScalar(b []byte) (s string, ok bool, err error) {
	s = strings.TrimSpace(string(b))
	if s == "null" {
		return "", false, nil
	}
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal(b, &s); err != nil {
			return "", false, err
		}
		s = strings.TrimSpace(s)
	}
	return s, s != "", nil
}

// flexID is a positive id.
type flexID uint64

func (f *flexID) UnmarshalJSON(b []byte) error {
	s, ok, err := jsonScalar(b)
	if err != nil || !ok {
		*f = 0
		return err
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return errors.New("id must be a positive integer")
	}
	*f = flexID(n)
	return nil
}

// flexInt is a signed count such as quantity or totalSeats. Integral
// floats like 5.0 are accepted; negative values pass through so range
// checks stay in the service.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s, ok, err := jsonScalar(b)
	if err != nil || !ok {
		*f = 0
		return err
	}
	if n, err := strconv.Atoi(s); err == nil {
		*f = flexInt(n)
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v != math.Trunc(v) || math.IsInf(v, 0) || math.Abs(v) > math.MaxInt32 {
		return errors.New("value must be a whole number")
	}
	*f = flexInt(v)
	return nil
}

// flexFloat is a price.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s, ok, err := jsonScalar(b)
	if err != nil || !ok {
		*f = 0
		return err
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return errors.New("value must be a number")
	}
	*f = flexFloat(v)
	return nil
}
