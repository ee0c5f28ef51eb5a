package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRecord_ValidLine(t *testing.T) {
	addr, wr, rd, reqs, ok := parseRecord("10.0.0.1@tcp 2097152 0 5")
	assert.True(t, ok)
	assert.Equal(t, "10.0.0.1@tcp", addr)
	assert.Equal(t, int64(2097152), wr)
	assert.Equal(t, int64(0), rd)
	assert.Equal(t, int64(5), reqs)
}

func TestParseRecord_TooFewTokensIsMalformed(t *testing.T) {
	_, _, _, _, ok := parseRecord("10.0.0.1@tcp 2097152 0")
	assert.False(t, ok)
}

func TestParseRecord_NonNumericTokenIsMalformed(t *testing.T) {
	_, _, _, _, ok := parseRecord("10.0.0.1@tcp abc 0 5")
	assert.False(t, ok)
}
