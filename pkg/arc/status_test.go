package arc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusText(t *testing.T) {
	assert.Equal(t, "OK", StatusText(200))
	assert.Equal(t, "Not Found", StatusText(404))
	assert.Equal(t, "Custom Status", StatusText(999))
}
