package notify

import (
	"github.com/sirupsen/logrus"
	"github.com/tezoscommons/geopin/internal/geopin/config"
	"github.com/tezoscommons/geopin/internal/geopin/db"
	"github.com/tezoscommons/geopin/internal/geopin/model"
	"github.com/tezoscommons/geopin/internal/geopin/network"
	"sync"
)

type Sink interface {
	Name() string
	Send(e *model.Event) error
}

/*
 * Dispatcher delivers events to its sinks from a single goroutine, so
 * sinks see events in the order Emit was called. Emit never waits on a
 * sink; when the queue is full the event is dropped and logged.
 */
type Dispatcher struct {
	log    *logrus.Entry
	queue  chan *model.Event
	sinks  []Sink
	l      *sync.Mutex
	closed bool
	done   chan struct{}
}

func NewDispatcher(size int, l *logrus.Entry, sinks ...Sink) *Dispatcher {
	if size <= 0 {
		size = 1024
	}
	d := &Dispatcher{
		log:   l.WithField("source", "notify"),
		queue: make(chan *model.Event, size),
		sinks: sinks,
		l:     &sync.Mutex{},
		done:  make(chan struct{}),
	}
	go d.run()
	return d
}

func NewEventDispatcher(c *config.Config, l *logrus.Entry, net network.NetworkInterface, journal *db.StormDB) *Dispatcher {
	sinks := []Sink{NewLogSink(l)}
	if journal != nil {
		sinks = append(sinks, NewJournalSink(journal))
	}
	if net != nil {
		sinks = append(sinks, NewNetworkSink(net))
	}
	return NewDispatcher(c.Registry.EventQueue, l, sinks...)
}

func (d *Dispatcher) AddSink(s Sink) {
	d.l.Lock()
	defer d.l.Unlock()
	d.sinks = append(d.sinks, s)
}

func (d *Dispatcher) Emit(e *model.Event) {
	if d == nil {
		return
	}
	d.l.Lock()
	defer d.l.Unlock()
	if d.closed {
		d.log.WithField("event", e.ID).Warn("dispatcher closed, dropping event")
		return
	}
	select {
	case d.queue <- e:
	default:
		d.log.WithField("event", e.ID).WithField("kind", e.Kind).Warn("event queue full, dropping event")
	}
}

// Close stops accepting events and waits until the queue is drained.
func (d *Dispatcher) Close() {
	d.l.Lock()
	if d.closed {
		d.l.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.l.Unlock()
	<-d.done
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for e := range d.queue {
		d.l.Lock()
		sinks := append([]Sink{}, d.sinks...)
		d.l.Unlock()
		for _, s := range sinks {
			if err := s.Send(e); err != nil {
				d.log.WithField("sink", s.Name()).WithField("event", e.ID).Warn(err)
			}
		}
	}
}
