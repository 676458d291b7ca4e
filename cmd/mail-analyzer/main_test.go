package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, exitCode(nil))
	assert.Equal(t, 1, exitCode(errQuarantined))
	assert.Equal(t, 1, exitCode(fmt.Errorf("verdict: %w", errQuarantined)))
	assert.Equal(t, 2, exitCode(errors.New("boom")))
}
