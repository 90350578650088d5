//go:build !linux

package wakealarm

import (
	"github.com/mescon/gptimer/internal/clock"
	"github.com/mescon/gptimer/internal/timer"
)

// Factory is never constructed on this platform.
type Factory struct{}

var _ timer.AlarmFactory = (*Factory)(nil)

// NewFactory always fails: there is no wake-capable clock here.
func NewFactory(clock.WakeCapability) (*Factory, error) {
	return nil, ErrUnsupported
}

func (f *Factory) Create() (timer.Alarm, error) {
	return nil, ErrUnsupported
}
