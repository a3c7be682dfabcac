package channel

import "sync"

// Lanes runs tasks in FIFO order per key while different keys run
// concurrently. A lane's goroutine exits as soon as its queue is empty.
type Lanes struct {
	mu     sync.Mutex
	lanes  map[int64]*lane
	closed bool
	wg     sync.WaitGroup
}

type lane struct {
	queue []func()
}

func NewLanes() *Lanes {
	return &Lanes{lanes: make(map[int64]*lane)}
}

// Submit queues task on the lane of key. It returns false once the lanes
// are closed.
func (l *Lanes) Submit(key int64, task func()) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return false
	}

	if current, ok := l.lanes[key]; ok {
		current.queue = append(current.queue, task)
		return true
	}

	current := &lane{queue: []func(){task}}
	l.lanes[key] = current
	l.wg.Add(1)
	go l.run(key, current)

	return true
}

func (l *Lanes) run(key int64, current *lane) {
	defer l.wg.Done()

	for {
		l.mu.Lock()
		if len(current.queue) == 0 {
			delete(l.lanes, key)
			l.mu.Unlock()
			return
		}
		task := current.queue[0]
		current.queue[0] = nil
		current.queue = current.queue[1:]
		l.mu.Unlock()

		task()
	}
}

// Active returns the number of lanes with queued or running tasks.
func (l *Lanes) Active() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.lanes)
}

// Close stops accepting tasks and waits for queued ones to finish.
func (l *Lanes) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()

	l.wg.Wait()
}
