package tracker

import (
	"time"

	"go.uber.org/zap"
)

// env is the handle every detector is built with: where to append, how to
// flush, what time it is.
type env struct {
	buf    *Buffer
	flush  func()
	now    func() time.Time
	logger *zap.Logger
}

// safe runs fn and swallows any panic so that a detector failure never
// reaches the host page.
func (e *env) safe(detector string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("tracker detector failed",
				zap.String("detector", detector),
				zap.Any("panic", r),
			)
		}
	}()
	fn()
}
