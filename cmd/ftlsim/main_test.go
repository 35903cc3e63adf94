package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOps(t *testing.T) {
	ops, err := parseOps("28, 7,12.5,7")
	require.NoError(t, err)
	assert.Equal(t, []float64{7, 12.5, 28}, ops)

	_, err = parseOps(" , ")
	assert.Error(t, err)
	_, err = parseOps("7,abc")
	assert.Error(t, err)
}
