package listener

import "sync"

// queuedEvent is either a JobEvent or a runner status message, tagged by
// which field is meaningful.
type queuedEvent struct {
	isRunnerStatus bool
	job            JobEvent
	message        string
}

// Dispatcher fans a build's events out to every subscribed StatusListener
// without ever calling a listener from inside the driver's own call stack —
// Notify only enqueues; Drain, called by the driver between scheduling
// iterations, is what actually invokes listener methods. This satisfies the
// "listeners MUST NOT re-enter the scheduler" design note: even a listener
// that turns around and calls back into the engine only ever observes a
// queue, never the driver's live state.
type Dispatcher struct {
	mu        sync.Mutex
	listeners []StatusListener
	queue     []queuedEvent
}

// NewDispatcher creates a Dispatcher with no subscribers.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Subscribe adds l to the set of listeners notified on the next Drain.
func (d *Dispatcher) Subscribe(l StatusListener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, l)
}

// NotifyJob enqueues a job status event.
func (d *Dispatcher) NotifyJob(event JobEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queue = append(d.queue, queuedEvent{job: event})
}

// NotifyRunner enqueues a coarse runner lifecycle message.
func (d *Dispatcher) NotifyRunner(message string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queue = append(d.queue, queuedEvent{isRunnerStatus: true, message: message})
}

// Drain delivers every queued event to every subscribed listener, in
// enqueue order, then empties the queue. The driver goroutine is the only
// caller; listener panics are recovered so one misbehaving listener cannot
// abort the build.
func (d *Dispatcher) Drain() {
	d.mu.Lock()
	pending := d.queue
	d.queue = nil
	listeners := make([]StatusListener, len(d.listeners))
	copy(listeners, d.listeners)
	d.mu.Unlock()

	for _, ev := range pending {
		for _, l := range listeners {
			deliver(l, ev)
		}
	}
}

func deliver(l StatusListener, ev queuedEvent) {
	defer func() { _ = recover() }()
	if ev.isRunnerStatus {
		l.OnRunnerStatus(ev.message)
		return
	}
	l.OnJobStatus(ev.job)
}
