package store

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateName(t *testing.T) {
	valid := []string{"a.txt", "report 2024.pdf", "..hidden", "x..y", "été.bin"}
	for _, name := range valid {
		assert.NoError(t, ValidateName(name), name)
	}

	invalid := []string{"", ".", "..", "../etc/passwd", "dir/file", `dir\file`, "nul\x00byte"}
	for _, name := range invalid {
		err := ValidateName(name)
		assert.Error(t, err, name)
		assert.True(t, errors.Is(err, ErrInvalidName), name)
	}
}
