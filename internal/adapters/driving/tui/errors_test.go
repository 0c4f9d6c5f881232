package tui

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrors(t *testing.T) {
	assert.Contains(t, ErrMissingRetrievalService.Error(), "retrieval service")
	assert.Contains(t, ErrInvalidPorts.Error(), "invalid ports")
	assert.False(t, errors.Is(ErrMissingRetrievalService, ErrInvalidPorts))
}
