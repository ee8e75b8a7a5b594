package normflow

import (
	"fmt"
	"math"
)

// ReverseCheck reports how well a flow's Reverse inverts its Forward.
// Both quantities vanish up to round-off when Reverse is exact. This is a
// diagnostic, not an enforcement: NaN from a zero forward log-Jacobian
// propagates as-is.
type ReverseCheck struct {
	// MeanAbsDiff is the mean |x - Reverse(Forward(x))| over all sites.
	MeanAbsDiff float64

	// MeanJacDev is the mean |1 + minusLogJ/logJ| over all samples.
	MeanJacDev float64
}

// String formats the check the way the diagnostic is usually read.
func (c ReverseCheck) String() string {
	return fmt.Sprintf("reverse is OK if these vanish (up to round-off): %g & %g",
		c.MeanAbsDiff, c.MeanJacDev)
}

// CheckReverse draws nSamples from the model's prior, runs them forward and
// back through the flow, and reports the reconstruction and log-Jacobian
// deviations. A non-nil flowOverride replaces the model's own flow.
func CheckReverse(m *Model, nSamples int, flowOverride FlowNetwork) ReverseCheck {
	flow := m.Flow
	if flowOverride != nil {
		flow = flowOverride
	}

	x := m.Prior.Sample(nSamples)
	y, logJ := flow.Forward(x)
	xHat, minusLogJ := flow.Reverse(y)

	var diffSum float64
	var sites int
	for i, row := range x {
		for j, v := range row {
			diffSum += math.Abs(v - xHat[i][j])
			sites++
		}
	}

	var jacSum float64
	for i := range logJ {
		jacSum += math.Abs(1 + minusLogJ[i]/logJ[i])
	}

	return ReverseCheck{
		MeanAbsDiff: diffSum / float64(sites),
		MeanJacDev:  jacSum / float64(len(logJ)),
	}
}
