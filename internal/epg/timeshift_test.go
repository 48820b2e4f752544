package epg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseTimeshiftEmptyIsZero(t *testing.T) {
	d, err := ParseTimeshift("")
	require.NoError(t, err)
	require.Equal(t, time.Duration(0), d)
}

func TestParseTimeshiftHoursOnly(t *testing.T) {
	d, err := ParseTimeshift("2")
	require.NoError(t, err)
	require.Equal(t, 2*time.Hour, d)
}

func TestParseTimeshiftHoursAndMinutes(t *testing.T) {
	d, err := ParseTimeshift("1:45")
	require.NoError(t, err)
	require.Equal(t, time.Hour+45*time.Minute, d)
}

func TestParseTimeshiftNegative(t *testing.T) {
	d, err := ParseTimeshift("-1:30")
	require.NoError(t, err)
	require.Equal(t, -(time.Hour + 30*time.Minute), d)
}

func TestParseTimeshiftMinutesOnly(t *testing.T) {
	d, err := ParseTimeshift(":45")
	require.NoError(t, err)
	require.Equal(t, 45*time.Minute, d)
}

func TestParseTimeshiftPlusSign(t *testing.T) {
	d, err := ParseTimeshift("+2:00")
	require.NoError(t, err)
	require.Equal(t, 2*time.Hour, d)
}

func TestParseTimeshiftIANAZone(t *testing.T) {
	d, err := ParseTimeshift("UTC")
	require.NoError(t, err)
	require.Equal(t, time.Duration(0), d)
}

func TestParseTimeshiftInvalidErrors(t *testing.T) {
	_, err := ParseTimeshift("not-a-time-zone-or-offset")
	require.Error(t, err)
}

func TestShiftXMLTVTimeLeavesUnparsableValueUnchanged(t *testing.T) {
	require.Equal(t, "garbage", shiftXMLTVTime("garbage", time.Hour))
}
