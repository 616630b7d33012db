package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errSample = Conflict("SAMPLE", "sample conflict")

func TestIsMatchesByCode(t *testing.T) {
	wrapped := fmt.Errorf("reserve: %w", errSample.WithMessage("book %d is busy", 7))

	assert.True(t, errors.Is(wrapped, errSample))
	assert.False(t, errors.Is(wrapped, Conflict("OTHER", "other")))
	assert.Equal(t, "book 7 is busy", wrapped.(interface{ Unwrap() error }).Unwrap().Error())
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindConflict, KindOf(fmt.Errorf("x: %w", errSample)))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}

func TestWithDetailsCopies(t *testing.T) {
	base := Validation("BAD", "bad input")
	withDetails := base.WithDetails(Detail{Field: "title", Message: "title is required"})

	assert.Empty(t, base.Details)
	assert.Len(t, withDetails.Details, 1)
	assert.ErrorIs(t, withDetails, base)
}
