package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type summary struct {
	Summary string `json:"summary"`
}

func TestParseJSON(t *testing.T) {
	got, err := ParseJSON[summary]("Sure!\n```json\n{\"summary\": \"ok {nested}\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, "ok {nested}", got.Summary)

	_, err = ParseJSON[summary]("plain text")
	assert.ErrorIs(t, err, ErrNoJSON)

	_, err = ParseJSON[summary]("} backwards {")
	assert.ErrorIs(t, err, ErrNoJSON)

	_, err = ParseJSON[summary]("{not json}")
	assert.ErrorContains(t, err, "failed to unmarshal")
}
