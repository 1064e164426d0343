package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateCardText(t *testing.T) {
	assert.NoError(t, ValidateCardText("hello"))
	assert.NoError(t, ValidateCardText(strings.Repeat("é", MaxTextCardLength)))
	assert.Error(t, ValidateCardText("   "))
	assert.Error(t, ValidateCardText(strings.Repeat("a", MaxTextCardLength+1)))
}

func TestValidateUsername(t *testing.T) {
	assert.NoError(t, ValidateUsername("loop_maker42"))
	assert.Error(t, ValidateUsername(""))
	assert.Error(t, ValidateUsername("ab"))
	assert.Error(t, ValidateUsername("Has Caps"))
}

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, ValidatePassword("12345678"))
	assert.Error(t, ValidatePassword("short"))
	assert.Error(t, ValidatePassword(strings.Repeat("a", 73)))
}

func TestErrorMessage(t *testing.T) {
	err := StepError("tagline", "Tagline is required.", StepSetup)
	assert.Equal(t, "tagline: Tagline is required.", err.Error())
	assert.Equal(t, -1, FieldError("x", "y").Step)
}

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("ann@example.com"))
	assert.Error(t, ValidateEmail(""))
	assert.Error(t, ValidateEmail("not-an-email"))
	assert.Error(t, ValidateEmail("Ann <ann@example.com>"))
	assert.Error(t, ValidateEmail(strings.Repeat("a", 250)+"@x.io"))
	assert.Equal(t, "ann@example.com", NormalizeEmail("  Ann@Example.COM "))
}
