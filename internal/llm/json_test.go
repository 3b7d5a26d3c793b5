package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type sample struct {
	Name  string `json:"name"`
	Score float64 `json:"score"`
}

func TestParseJSON(t *testing.T) {
	got, err := ParseJSON[sample](`{"name": "entropy", "score": 0.9}`)
	assert.NoError(t, err)
	assert.Equal(t, sample{Name: "entropy", Score: 0.9}, got)
}

func TestParseJSONToleratesFencesAndProse(t *testing.T) {
	response := "Sure! Here is the result:\n```json\n{\"name\": \"entropy\", \"score\": 0.5}\n```\nLet me know if you need anything else."
	got, err := ParseJSON[sample](response)
	assert.NoError(t, err)
	assert.Equal(t, "entropy", got.Name)
}

func TestParseJSONNoObject(t *testing.T) {
	_, err := ParseJSON[sample]("I cannot help with that.")
	assert.Error(t, err)
}

func TestParseJSONMalformed(t *testing.T) {
	_, err := ParseJSON[sample](`{"name": entropy}`)
	assert.Error(t, err)
}
