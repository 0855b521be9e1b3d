package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInts(t *testing.T) {
	got, err := parseInts("1, 10,100,")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 10, 100}, got)

	_, err = parseInts("1,x")
	assert.Error(t, err)

	_, err = parseInts("-1")
	assert.Error(t, err)

	_, err = parseInts(" , ")
	assert.Error(t, err)
}
