package coach

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaceRoundTrip(t *testing.T) {
	for _, s := range []string{"0:00", "4:05", "7:03", "8:30", "9:59", "12:00", "25:07"} {
		secs, err := ParsePace(s)
		require.NoError(t, err, s)
		assert.Equal(t, s, FormatPace(secs))
	}
	for secs := 0; secs < 1800; secs += 7 {
		got, err := ParsePace(FormatPace(secs))
		require.NoError(t, err)
		assert.Equal(t, secs, got)
	}
}

func TestParsePaceRejectsMalformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"seconds out of range", "8:60"},
		{"single component", "480"},
		{"three components", "1:08:00"},
		{"non numeric", "8:3a"},
		{"negative", "-8:30"},
		{"empty seconds", "8:"},
		{"empty", ""},
		{"huge minutes", "307445734561825861:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePace(tt.input)
			var fe *FormatError
			require.True(t, errors.As(err, &fe), "want FormatError, got %v", err)
			assert.Equal(t, tt.input, fe.Value)
		})
	}
}

func TestPredictedPace(t *testing.T) {
	ref, err := ParsePace("8:30")
	require.NoError(t, err)

	assert.Equal(t, "9:00", FormatPace(PredictedPace(ref, RaceMarathon, DefaultPaceOffsets())))
	assert.Equal(t, "8:50", FormatPace(PredictedPace(ref, RaceHalf, nil)))
	assert.Equal(t, "8:40", FormatPace(PredictedPace(ref, Race10K, nil)))
	assert.Equal(t, "8:30", FormatPace(PredictedPace(ref, Race5K, nil)))

	custom := PaceOffsets{RaceMarathon: 45}
	assert.Equal(t, ref+45, PredictedPace(ref, RaceMarathon, custom))
}

func TestGoalPacePerMile(t *testing.T) {
	tests := []struct {
		name string
		goal string
		race RaceType
		want int
	}{
		{"marathon three part", "3:05:00", RaceMarathon, 423},
		{"marathon two part is hours", "3:05", RaceMarathon, 423},
		{"5k two part is minutes", "25:00", Race5K, 483},
		{"10k three part", "0:50:00", Race10K, 483},
		{"half two part", "1:45", RaceHalf, 481},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GoalPacePerMile(tt.goal, tt.race)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGoalTimeRejectsOutOfRange(t *testing.T) {
	tests := []struct {
		name string
		goal string
		race RaceType
	}{
		{"minutes component", "3:75:00", RaceMarathon},
		{"hour based minutes", "3:61", RaceHalf},
		{"too short", "0:45", Race5K},
		{"too long", "25:00:00", RaceMarathon},
		{"minute-style marathon exceeds a day", "45:30", RaceMarathon},
		{"four parts", "1:2:3:4", Race10K},
		{"garbage", "fast", Race5K},
		{"hours overflow", "5124095576030432:00:00", RaceMarathon},
		{"two part overflow", "5124095576030432:00", RaceHalf},
		{"minutes overflow", "0:99999999999999999:00", Race10K},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := GoalPacePerMile(tt.goal, tt.race)
			var fe *FormatError
			assert.True(t, errors.As(err, &fe), "want FormatError, got %v", err)
		})
	}
}

func TestParseRaceType(t *testing.T) {
	rt, err := ParseRaceType("Half Marathon")
	require.NoError(t, err)
	assert.Equal(t, RaceHalf, rt)
	assert.True(t, rt.HourBased())
	assert.False(t, Race10Mile.HourBased())

	_, err = ParseRaceType("ultra")
	var fe *FormatError
	assert.True(t, errors.As(err, &fe))
}

func TestSpeedToPace(t *testing.T) {
	assert.InDelta(t, 480, SpeedToPace(MetersPerMile/480), 1e-9)
	assert.Zero(t, SpeedToPace(0))
	assert.InDelta(t, 1, MetersToMiles(MetersPerMile), 1e-12)
}
