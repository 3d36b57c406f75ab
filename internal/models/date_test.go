package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateOfUsesLocation(t *testing.T) {
	dhaka, err := time.LoadLocation("Asia/Dhaka")
	require.NoError(t, err)

	// 20:30 UTC is 02:30 the next day in Dhaka (UTC+6).
	now := time.Date(2025, 3, 10, 20, 30, 0, 0, time.UTC)
	assert.Equal(t, "2025-03-11", DateOf(now, dhaka).String())
	assert.Equal(t, "2025-03-10", DateOf(now, time.UTC).String())
}

func TestDateJSON(t *testing.T) {
	d := NewDate(2025, time.February, 3)
	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2025-02-03"`, string(b))

	var back Date
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, d, back)

	assert.Error(t, json.Unmarshal([]byte(`"03/02/2025"`), &back))
}

func TestDateCompare(t *testing.T) {
	a := NewDate(2025, 1, 31)
	b := a.AddDays(1)
	assert.Equal(t, "2025-02-01", b.String())
	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
	assert.False(t, a.Before(a))
}

func TestDatePgtypeRoundTrip(t *testing.T) {
	d := NewDate(2025, 6, 1)
	v, err := d.DateValue()
	require.NoError(t, err)
	assert.True(t, v.Valid)

	var scanned Date
	require.NoError(t, scanned.ScanDate(v))
	assert.Equal(t, d, scanned)

	require.NoError(t, scanned.ScanDate(pgtype.Date{}))
	assert.True(t, scanned.IsZero())
}

func TestSpecialDayBlocks(t *testing.T) {
	var none *SpecialDay
	assert.False(t, none.BlocksParticipation())
	assert.True(t, (&SpecialDay{DayType: DayOfficeClosed}).BlocksParticipation())
	assert.True(t, (&SpecialDay{DayType: DayGovernmentHoliday}).BlocksParticipation())
	assert.False(t, (&SpecialDay{DayType: DaySpecialEvent}).BlocksParticipation())
}
