package turngate

import (
	"time"

	"github.com/covecrm/dialer-bridge/internal/stepper"
)

func nowFromMs(ms int64) time.Time {
	return time.UnixMilli(ms)
}

func tzLocation(leadTZ, agentTZ string) *time.Location {
	return stepper.ResolveTZ(leadTZ, agentTZ)
}
