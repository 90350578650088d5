package wakealarm

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mescon/gptimer/internal/clock"
)

func TestNewFactory_Unavailable(t *testing.T) {
	f, err := NewFactory(clock.WakeCapability{})
	assert.Nil(t, f)
	assert.ErrorIs(t, err, ErrUnsupported)
}
