package robot

import (
	"context"
	"time"
)

// every calls fn each period until ctx is done.
func every(ctx context.Context, period time.Duration, fn func()) error {
	t := time.NewTicker(period)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			fn()
		}
	}
}

// checkObstacle measures the range ahead while following the line and raises
// the obstacle flag for anything inside the near window. The servo and range
// sensor belong to the avoidance routine in every other state.
func (r *Robot) checkObstacle() {
	if r.shared.State() != LineFollowing {
		return
	}
	d, err := r.rng.MeasureDistance()
	if err != nil {
		r.setRange(-1)
		return
	}
	r.setRange(d)
	if d > r.cfg.NearMinCM && d <= r.cfg.NearMaxCM {
		r.shared.RaiseObstacle()
	}
}

// checkBarcode hands a finalized frame to the control task.
func (r *Robot) checkBarcode() {
	if r.shared.State() != LineFollowing || !r.decoder.FrameReady() {
		return
	}
	if r.shared.TransitionIf(LineFollowing, BarcodeScanning) {
		r.log.Debug().Msg("barcode frame ready")
	}
}

// checkJunction reports the junction marker once a turn is pending.
func (r *Robot) checkJunction() {
	if r.shared.State() != WaitingForJunction || !r.decoder.FrameReady() {
		return
	}
	if r.shared.TransitionIf(WaitingForJunction, ExecutingTurn) {
		r.log.Debug().Msg("junction reached")
	}
}
