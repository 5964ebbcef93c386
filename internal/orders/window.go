package orders

import (
	"fmt"
	"time"

	"github.com/ariefcatur/go-realtime-pos/internal/apperr"
)

// Window is the daily order acceptance gate, [OpenHour, CloseHour) local time.
type Window struct {
	OpenHour  int
	CloseHour int
	Location  *time.Location
	Enforced  bool
}

func (w Window) IsOpen(t time.Time) bool {
	if !w.Enforced {
		return true
	}
	loc := w.Location
	if loc == nil {
		loc = time.Local
	}
	h := t.In(loc).Hour()
	return h >= w.OpenHour && h < w.CloseHour
}

func (w Window) Check(t time.Time) error {
	if w.IsOpen(t) {
		return nil
	}
	return apperr.New(apperr.CodeOrderingClosed,
		fmt.Sprintf("orders are accepted between %02d:00 and %02d:00", w.OpenHour, w.CloseHour))
}
