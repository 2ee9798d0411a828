package mqtt

import "log"

// bufferedMsg stores a serialized MQTT message for replay after reconnection.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// lifecycle reports whether the message is a system event rather than a tick.
func (m bufferedMsg) lifecycle() bool {
	return m.topic == TopicSystem
}

// offlineQueue holds messages published while the broker is unreachable.
// When full, the oldest scroll tick is evicted first; lifecycle events are
// only evicted once no ticks remain.
// Not safe for concurrent use; caller must synchronize.
type offlineQueue struct {
	msgs     []bufferedMsg
	capacity int
	dropped  int // since last drain
}

func newOfflineQueue(capacity int) *offlineQueue {
	return &offlineQueue{
		msgs:     make([]bufferedMsg, 0, capacity),
		capacity: capacity,
	}
}

func (q *offlineQueue) push(msg bufferedMsg) {
	if len(q.msgs) < q.capacity {
		q.msgs = append(q.msgs, msg)
		return
	}

	if q.dropped == 0 {
		log.Printf("mqtt: offline queue full (%d messages), dropping oldest ticks", q.capacity)
	}
	q.dropped++

	victim := -1
	for i, m := range q.msgs {
		if !m.lifecycle() {
			victim = i
			break
		}
	}
	if victim < 0 {
		if !msg.lifecycle() {
			// Only lifecycle events queued; a tick never displaces one.
			return
		}
		victim = 0
	}

	copy(q.msgs[victim:], q.msgs[victim+1:])
	q.msgs[len(q.msgs)-1] = msg
}

// drain returns the queued messages oldest first and how many were dropped,
// then empties the queue.
func (q *offlineQueue) drain() ([]bufferedMsg, int) {
	if len(q.msgs) == 0 && q.dropped == 0 {
		return nil, 0
	}
	var out []bufferedMsg
	if len(q.msgs) > 0 {
		out = make([]bufferedMsg, len(q.msgs))
		copy(out, q.msgs)
	}
	dropped := q.dropped
	q.msgs = q.msgs[:0]
	q.dropped = 0
	return out, dropped
}

func (q *offlineQueue) len() int {
	return len(q.msgs)
}
