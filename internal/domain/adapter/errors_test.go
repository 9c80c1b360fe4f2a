package adapter

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIs(t *testing.T) {
	err := fmt.Errorf("analyze: %w", Timeout("analysis", context.DeadlineExceeded))
	assert.ErrorIs(t, err, ErrTimeout)
	assert.NotErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	err = InvalidResponse("render", errors.New("missing artifactURL"))
	assert.ErrorIs(t, err, ErrInvalidResponse)
	assert.Equal(t, "render: invalid_response: missing artifactURL", err.Error())
}

func TestClassify(t *testing.T) {
	assert.Nil(t, Classify("x", nil))
	assert.ErrorIs(t, Classify("x", context.DeadlineExceeded), ErrTimeout)
	assert.ErrorIs(t, Classify("x", errors.New("connection refused")), ErrUnavailable)

	typed := InvalidResponse("x", errors.New("bad"))
	assert.Same(t, typed, Classify("x", typed))
}
