package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationErrorMessage(t *testing.T) {
	assert.Equal(t, "validation failed: discordUsername is required", Invalid("discordUsername", "is required").Error())
	assert.Equal(t, "validation failed: body is empty", Invalid("", "body is empty").Error())
}

func TestAsValidationThroughWrap(t *testing.T) {
	err := fmt.Errorf("create user: %w", Invalid("query", "is required"))

	ve, ok := AsValidation(err)
	assert.True(t, ok)
	assert.Equal(t, "query", ve.Field)

	_, ok = AsValidation(errors.New("plain"))
	assert.False(t, ok)
}
