// timer/timer.go
package timer

import (
	"time"
)

// Handle is a scheduled callback. Stop cancels it and reports whether it was still pending.
type Handle interface {
	Stop() bool
}

// Scheduler 定时任务调度，房间的快照防抖和空房回收都通过它调度
type Scheduler interface {
	AfterFunc(delay time.Duration, callback func()) Handle
	Now() time.Time
}

// Real schedules on the runtime timer; callbacks run on their own goroutine.
type Real struct{}

func (Real) AfterFunc(delay time.Duration, callback func()) Handle {
	return time.AfterFunc(delay, callback)
}

func (Real) Now() time.Time {
	return time.Now()
}
