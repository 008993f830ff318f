package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meltforce/repflow/pkg/schema"
)

func requireValidationError(t *testing.T, err error) *schema.RepflowError {
	t.Helper()
	require.Error(t, err)
	rfErr, ok := err.(*schema.RepflowError)
	require.True(t, ok, "expected *schema.RepflowError, got %T", err)
	assert.Equal(t, schema.ErrCodeValidation, rfErr.Code)
	return rfErr
}

func TestValidateWorkoutJSON_MinimalValid(t *testing.T) {
	assert.NoError(t, ValidateWorkoutJSON([]byte(`{"name":"Quick","intervals":[]}`)))
}

func TestValidateWorkoutJSON_FullValid(t *testing.T) {
	doc := `{
		"id": "w-1",
		"name": "Morning Strength",
		"intervals": [
			{"kind": "warmup", "seconds": 300, "target": "easy"},
			{"kind": "repeat", "count": 3, "children": [
				{"kind": "reps", "sets": 1, "reps": 10, "name": "Squat", "load": "80%", "restSec": 60},
				{"kind": "time", "seconds": 45, "target": "zone 3"},
				{"kind": "rest", "seconds": 90}
			]},
			{"kind": "distance", "meters": 400, "target": "5k pace"},
			{"kind": "reps", "reps": 12, "name": "Plank", "followAlongUrl": "https://example.com/v/1"},
			{"kind": "cooldown", "seconds": 120}
		]
	}`
	assert.NoError(t, ValidateWorkoutJSON([]byte(doc)))
}

func TestValidateWorkoutJSON_InvalidJSON(t *testing.T) {
	requireValidationError(t, ValidateWorkoutJSON([]byte(`{not json`)))
}

func TestValidateWorkoutJSON_MissingIntervals(t *testing.T) {
	requireValidationError(t, ValidateWorkoutJSON([]byte(`{"name":"No intervals"}`)))
}

func TestValidateWorkoutJSON_UnknownKind(t *testing.T) {
	doc := `{"name":"Bad","intervals":[{"kind":"yoga"}]}`
	requireValidationError(t, ValidateWorkoutJSON([]byte(doc)))
}

func TestValidateWorkoutJSON_KindRequirements(t *testing.T) {
	for name, doc := range map[string]string{
		"warmup without seconds":   `{"name":"x","intervals":[{"kind":"warmup"}]}`,
		"time without seconds":     `{"name":"x","intervals":[{"kind":"time"}]}`,
		"distance without meters":  `{"name":"x","intervals":[{"kind":"distance"}]}`,
		"reps without name":        `{"name":"x","intervals":[{"kind":"reps","reps":10}]}`,
		"reps without reps":        `{"name":"x","intervals":[{"kind":"reps","name":"Squat"}]}`,
		"repeat without children":  `{"name":"x","intervals":[{"kind":"repeat","count":3}]}`,
		"repeat without count":     `{"name":"x","intervals":[{"kind":"repeat","children":[]}]}`,
		"negative seconds":         `{"name":"x","intervals":[{"kind":"time","seconds":-5}]}`,
		"negative restSec":         `{"name":"x","intervals":[{"kind":"reps","reps":10,"name":"Squat","restSec":-1}]}`,
		"unknown interval field":   `{"name":"x","intervals":[{"kind":"time","seconds":30,"speed":"fast"}]}`,
		"kind missing":             `{"name":"x","intervals":[{"seconds":30}]}`,
		"intervals not array":      `{"name":"x","intervals":"none"}`,
	} {
		t.Run(name, func(t *testing.T) {
			requireValidationError(t, ValidateWorkoutJSON([]byte(doc)))
		})
	}
}

func TestValidateWorkoutJSON_NestedRepeatValidated(t *testing.T) {
	doc := `{"name":"x","intervals":[
		{"kind":"repeat","count":2,"children":[
			{"kind":"repeat","count":3,"children":[
				{"kind":"distance"}
			]}
		]}
	]}`
	err := requireValidationError(t, ValidateWorkoutJSON([]byte(doc)))
	assert.Contains(t, err.Message, "meters")
}

func TestDecodeWorkout_RoundTrip(t *testing.T) {
	doc := `{
		"name": "Intervals",
		"intervals": [
			{"kind": "warmup", "seconds": 120},
			{"kind": "repeat", "count": 4, "children": [
				{"kind": "time", "seconds": 30, "target": "hard"},
				{"kind": "rest", "seconds": 30}
			]}
		]
	}`
	w, err := DecodeWorkout([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, "Intervals", w.Name)
	require.Len(t, w.Intervals, 2)

	rep := w.Intervals[1]
	assert.Equal(t, schema.IntervalRepeat, rep.Kind)
	require.NotNil(t, rep.Count)
	assert.Equal(t, 4, *rep.Count)
	require.Len(t, rep.Children, 2)
	assert.Equal(t, "hard", rep.Children[0].Target)
}

func TestDecodeWorkout_ManualRestPreservesNil(t *testing.T) {
	doc := `{"name":"x","intervals":[
		{"kind":"reps","reps":10,"name":"Squat","sets":2},
		{"kind":"rest"},
		{"kind":"cooldown","seconds":60}
	]}`
	w, err := DecodeWorkout([]byte(doc))
	require.NoError(t, err)

	// Absent restSec and rest seconds stay nil: manual rest, not zero.
	assert.Nil(t, w.Intervals[0].RestSec)
	assert.Nil(t, w.Intervals[1].Seconds)
}

func TestDecodeWorkout_ZeroRestDistinctFromAbsent(t *testing.T) {
	doc := `{"name":"x","intervals":[
		{"kind":"reps","reps":10,"name":"Squat","sets":2,"restSec":0}
	]}`
	w, err := DecodeWorkout([]byte(doc))
	require.NoError(t, err)
	require.NotNil(t, w.Intervals[0].RestSec)
	assert.Equal(t, 0, *w.Intervals[0].RestSec)
}

func TestDecodeWorkout_InvalidReturnsNilWorkout(t *testing.T) {
	w, err := DecodeWorkout([]byte(`{"name":"x","intervals":[{"kind":"repeat","count":0,"children":[]}]}`))
	requireValidationError(t, err)
	assert.Nil(t, w)
}
