package handler

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexID(t *testing.T) {
	cases := map[string]uint64{`7`: 7, `"42"`: 42, `" 9 "`: 9, `null`: 0, `""`: 0}
	for in, want := range cases {
		var id flexID
		require.NoError(t, json.Unmarshal([]byte(in), &id), in)
		assert.Equal(t, want, uint64(id), in)
	}
	for _, bad := range []string{`-1`, `"abc"`, `1.5`} {
		var id flexID
		assert.Error(t, json.Unmarshal([]byte(bad), &id), bad)
	}
}

func TestFlexInt(t *testing.T) {
	cases := map[string]int{`5`: 5, `"5"`: 5, `" 12 "`: 12, `"-1"`: -1, `-3`: -3, `5.0`: 5, `"7.0"`: 7, `""`: 0, `null`: 0}
	for in, want := range cases {
		var n flexInt
		require.NoError(t, json.Unmarshal([]byte(in), &n), in)
		assert.Equal(t, want, int(n), in)
	}
	for _, bad := range []string{`"two"`, `2.5`, `"2.5"`, `true`, `1e20`} {
		var n flexInt
		assert.Error(t, json.Unmarshal([]byte(bad), &n), bad)
	}
}

func TestFlexFloat(t *testing.T) {
	cases := map[string]float64{`20`: 20, `"20"`: 20, `"19.99"`: 19.99, `0`: 0, `""`: 0, `"-1"`: -1}
	for in, want := range cases {
		var f flexFloat
		require.NoError(t, json.Unmarshal([]byte(in), &f), in)
		assert.InDelta(t, want, float64(f), 1e-9, in)
	}
	for _, bad := range []string{`"free"`, `"NaN"`, `"Inf"`, `[]`} {
		var f flexFloat
		assert.Error(t, json.Unmarshal([]byte(bad), &f), bad)
	}
}

func TestEventDate(t *testing.T) {
	cases := map[string]time.Time{
		`"2030-06-01"`:                time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC),
		`"2030-06-01T20:30"`:          time.Date(2030, 6, 1, 20, 30, 0, 0, time.UTC),
		`"2030-06-01T20:30:15"`:       time.Date(2030, 6, 1, 20, 30, 15, 0, time.UTC),
		`"2030-06-01T20:30:00+02:00"`: time.Date(2030, 6, 1, 18, 30, 0, 0, time.UTC),
	}
	for in, want := range cases {
		var d eventDate
		require.NoError(t, json.Unmarshal([]byte(in), &d), in)
		assert.True(t, want.Equal(d.Time), "%s: got %s", in, d.Time)
	}

	var d eventDate
	require.NoError(t, json.Unmarshal([]byte(`""`), &d))
	assert.True(t, d.IsZero())
	assert.Error(t, json.Unmarshal([]byte(`"next tuesday"`), &d))
	assert.Error(t, json.Unmarshal([]byte(`20300601`), &d))
}

func TestUpdateEventReqPatch(t *testing.T) {
	var req updateEventReq
	require.NoError(t, json.Unmarshal([]byte(`{"title":"New","date":"2031-01-02"}`), &req))
	p := req.patch()
	require.NotNil(t, p.Title)
	assert.Equal(t, "New", *p.Title)
	require.NotNil(t, p.Date)
	assert.Equal(t, 2031, p.Date.Year())
	assert.Nil(t, p.Price)
	assert.Nil(t, p.TotalSeats)

	req = updateEventReq{}
	require.NoError(t, json.Unmarshal([]byte(`{"totalSeats":"40","availableSeats":"12","price":"35.5"}`), &req))
	p = req.patch()
	require.NotNil(t, p.TotalSeats)
	assert.Equal(t, 40, *p.TotalSeats)
	require.NotNil(t, p.AvailableSeats)
	assert.Equal(t, 12, *p.AvailableSeats)
	require.NotNil(t, p.Price)
	assert.Equal(t, 35.5, *p.Price)
}

func TestGetUserID(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest("GET", "/", nil), httptest.NewRecorder())

	_, err := getUserID(c)
	assert.Error(t, err)

	c.Set("user_id", uint64(5))
	id, err := getUserID(c)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), id)

	c.Set("user_id", "12")
	id, err = getUserID(c)
	require.NoError(t, err)
	assert.Equal(t, uint64(12), id)

	c.Set("user_id", int64(-3))
	_, err = getUserID(c)
	assert.Error(t, err)
}
