// timer/manual.go
package timer

import (
	"container/heap"
	"sync"
	"time"
)

type TimerTask struct {
	Id       int64
	Execute  time.Time
	Callback func()
	index    int
}

type TimerQueue []*TimerTask

func (q TimerQueue) Len() int { return len(q) }

func (q TimerQueue) Less(i, j int) bool {
	if q[i].Execute.Equal(q[j].Execute) {
		return q[i].Id < q[j].Id
	}
	return q[i].Execute.Before(q[j].Execute)
}

func (q TimerQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *TimerQueue) Push(x interface{}) {
	n := len(*q)
	task := x.(*TimerTask)
	task.index = n
	*q = append(*q, task)
}

func (q *TimerQueue) Pop() interface{} {
	old := *q
	n := len(old)
	task := old[n-1]
	old[n-1] = nil
	task.index = -1
	*q = old[0 : n-1]
	return task
}

// Manual is a virtual clock. Time only moves when Advance is called, and due
// callbacks run synchronously on the caller's goroutine in deadline order.
type Manual struct {
	mutex  sync.Mutex
	now    time.Time
	queue  TimerQueue
	nextId int64
}

func NewManual(start time.Time) *Manual {
	m := &Manual{
		now:    start,
		queue:  make(TimerQueue, 0),
		nextId: 1,
	}
	heap.Init(&m.queue)
	return m
}

func (m *Manual) Now() time.Time {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.now
}

func (m *Manual) AfterFunc(delay time.Duration, callback func()) Handle {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	task := &TimerTask{
		Id:       m.nextId,
		Execute:  m.now.Add(delay),
		Callback: callback,
	}
	m.nextId++

	heap.Push(&m.queue, task)
	return &manualHandle{manager: m, task: task}
}

// Advance moves the clock forward by d, firing every callback that falls due.
func (m *Manual) Advance(d time.Duration) {
	m.mutex.Lock()
	target := m.now.Add(d)
	m.mutex.Unlock()

	for {
		m.mutex.Lock()
		if m.queue.Len() == 0 || m.queue[0].Execute.After(target) {
			m.now = target
			m.mutex.Unlock()
			return
		}
		task := heap.Pop(&m.queue).(*TimerTask)
		m.now = task.Execute
		m.mutex.Unlock()

		// 回调里可能再次调度，不能持锁执行
		task.Callback()
	}
}

// Pending returns how many callbacks are scheduled and not yet fired or stopped.
func (m *Manual) Pending() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.queue.Len()
}

type manualHandle struct {
	manager *Manual
	task    *TimerTask
}

func (h *manualHandle) Stop() bool {
	h.manager.mutex.Lock()
	defer h.manager.mutex.Unlock()

	if h.task.index < 0 {
		return false
	}
	heap.Remove(&h.manager.queue, h.task.index)
	return true
}
