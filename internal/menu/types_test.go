package menu

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClockTimeJSON(t *testing.T) {
	data, err := json.Marshal(ClockTime{Hour: 7, Minute: 5})
	require.NoError(t, err)
	assert.Equal(t, `"07:05"`, string(data))

	var parsed ClockTime
	require.NoError(t, json.Unmarshal([]byte(`"23:30"`), &parsed))
	assert.Equal(t, ClockTime{Hour: 23, Minute: 30}, parsed)

	assert.Error(t, json.Unmarshal([]byte(`"25:00"`), &parsed))
	assert.Error(t, json.Unmarshal([]byte(`"noon"`), &parsed))
}

func TestTimeRangeValid(t *testing.T) {
	lunch := TimeRange{Start: ClockTime{Hour: 11}, End: ClockTime{Hour: 14}}
	assert.True(t, lunch.Valid())

	backwards := TimeRange{Start: ClockTime{Hour: 14}, End: ClockTime{Hour: 11}}
	assert.False(t, backwards.Valid())

	empty := TimeRange{Start: ClockTime{Hour: 11}, End: ClockTime{Hour: 11}}
	assert.False(t, empty.Valid())

	lateNight := TimeRange{
		Start:           ClockTime{Hour: 22},
		End:             ClockTime{Hour: 2},
		CrossesMidnight: true,
	}
	assert.True(t, lateNight.Valid())
}

func TestHasAllMacros(t *testing.T) {
	item := MenuItem{Name: "Apple"}
	assert.False(t, item.HasAllMacros())

	item.Calories = Float64(95)
	item.ProteinG = Float64(0.5)
	item.CarbsG = Float64(25)
	assert.False(t, item.HasAllMacros(), "one missing field is still incomplete")

	item.FatG = Float64(0.3)
	assert.True(t, item.HasAllMacros())
}

func TestSnapshotByUniversity(t *testing.T) {
	snap := Snapshot{
		Halls: []DiningHall{
			{Name: "John Jay", University: "columbia"},
			{Name: "Okenshields", University: "cornell"},
			{Name: "Ferris Booth Commons", University: "columbia"},
		},
		GeneratedAt: time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
	}

	columbia := snap.ByUniversity("columbia")
	require.Len(t, columbia, 2)
	assert.Equal(t, "John Jay", columbia[0].Name)

	assert.Empty(t, snap.ByUniversity("nyu"))
}

func TestSnapshotIsZero(t *testing.T) {
	assert.True(t, Snapshot{}.IsZero())
	assert.False(t, Snapshot{GeneratedAt: time.Now()}.IsZero())
}

func TestAdapterErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewAdapterError("cornell", AdapterErrNetwork, cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "cornell")
	assert.Contains(t, err.Error(), "network")
}

func TestIsStoreCorruption(t *testing.T) {
	assert.True(t, IsStoreCorruption(&StoreCorruptionError{Reason: "bad publish"}))
	assert.False(t, IsStoreCorruption(errors.New("plain error")))
	assert.False(t, IsStoreCorruption(nil))
}
