package usecase

import (
	"sync/atomic"

	"github.com/antonkh/ragline/internal/core/domain"
)

const progressBuffer = 16

// progressDispatcher decouples event delivery from pipeline progress. Events
// are handed to the sink on a dedicated goroutine; when the buffer is full
// the event is dropped rather than blocking the run. Close waits until
// accepted events have been delivered, then releases the goroutine.
type progressDispatcher struct {
	events  chan domain.ProgressEvent
	done    chan struct{}
	dropped atomic.Int64
}

func newProgressDispatcher(onEvent domain.ProgressFunc) *progressDispatcher {
	d := &progressDispatcher{}
	if onEvent == nil {
		return d
	}

	d.events = make(chan domain.ProgressEvent, progressBuffer)
	d.done = make(chan struct{})
	go func() {
		defer close(d.done)
		for event := range d.events {
			onEvent(event)
		}
	}()
	return d
}

func (d *progressDispatcher) emit(stage domain.ProgressStage, message string, data map[string]any) {
	if d.events == nil {
		return
	}
	event := domain.ProgressEvent{
		Stage:   stage,
		Message: message,
		Data:    data,
	}
	select {
	case d.events <- event:
	default:
		d.dropped.Add(1)
	}
}

func (d *progressDispatcher) droppedEvents() int64 {
	return d.dropped.Load()
}

func (d *progressDispatcher) close() {
	if d.events == nil {
		return
	}
	close(d.events)
	<-d.done
}
