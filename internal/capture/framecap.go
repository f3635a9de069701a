package capture

import "github.com/haasonsaas/webagent/pkg/models"

// Frame cap bounds. A caller request lands in [2, 20]; profiles other than
// frames_only are further narrowed to [3, 12].
const (
	defaultFrameCap   = 8
	requestFrameFloor = 2
	requestFrameCeil  = 20
	profileFrameFloor = 3
	profileFrameCeil  = 12
)

// ResolveFrameCap resolves the effective frame ring capacity from an
// optional caller request and the session's capture profile.
func ResolveFrameCap(requested *int, profile models.CaptureProfile) int {
	cap := defaultFrameCap
	if requested != nil {
		cap = clamp(*requested, requestFrameFloor, requestFrameCeil)
	}
	if profile == models.ProfileFramesOnly {
		return cap
	}
	return clamp(cap, profileFrameFloor, profileFrameCeil)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
