// broadcast/broadcast.go
package broadcast

import (
	"errors"

	"github.com/gorilla/websocket"

	"github.com/wfunc/tabletop/logger"
	"github.com/wfunc/tabletop/monitor"
	"github.com/wfunc/tabletop/network"
)

// Recipient is anything a frame can be queued to.
type Recipient interface {
	Send(data []byte) error
	CloseWith(code int, reason string)
}

// Fanout 同步、不阻塞的广播器。发送队列满的客户端会被断开
type Fanout struct {
	metrics *monitor.Metrics
}

func NewFanout(metrics *monitor.Metrics) *Fanout {
	return &Fanout{metrics: metrics}
}

// Broadcast queues data to every recipient except exclude (which may be nil) and
// returns how many recipients accepted it.
func (f *Fanout) Broadcast(recipients []Recipient, data []byte, exclude Recipient) int {
	delivered := 0
	for _, r := range recipients {
		if exclude != nil && r == exclude {
			continue
		}
		if err := r.Send(data); err != nil {
			f.metrics.BroadcastFailed()
			if errors.Is(err, network.ErrSendQueueFull) {
				logger.Log.Warnw("dropping slow consumer", "error", err)
				// CloseWith 会写 close 帧，不能在房间锁里同步执行
				go r.CloseWith(websocket.CloseTryAgainLater, "slow consumer")
			}
			continue
		}
		delivered++
	}
	return delivered
}

// SendTo queues data to a single recipient.
func (f *Fanout) SendTo(r Recipient, data []byte) bool {
	return f.Broadcast([]Recipient{r}, data, nil) == 1
}
