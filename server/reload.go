package server

import (
	"context"

	"github.com/kbukum/assetflow/dag"
	"github.com/kbukum/assetflow/logger"
)

// ReloadSubscriber turns finished runs into reload events. Successful runs
// reload every browser; failed runs send a build_error event instead.
type ReloadSubscriber struct {
	hub *Hub
	log *logger.Logger
}

var _ dag.Subscriber = (*ReloadSubscriber)(nil)

// NewReloadSubscriber creates a subscriber broadcasting on hub.
func NewReloadSubscriber(hub *Hub, log *logger.Logger) *ReloadSubscriber {
	if log == nil {
		log = logger.Nop()
	}
	return &ReloadSubscriber{hub: hub, log: log.WithComponent("reload")}
}

func (s *ReloadSubscriber) OnEvent(ctx context.Context, ev dag.Event) {
	if ev.Kind != dag.RunFinished || ev.Result == nil {
		return
	}
	res := ev.Result

	if !res.Success {
		errs := make(map[string]string)
		for name, rr := range res.Tasks {
			if rr.Status == dag.StatusFailed && rr.Err != nil {
				errs[name] = rr.Err.Error()
			}
		}
		s.hub.Broadcast(newMessage(EventBuildError, BuildErrorEvent{RunID: res.RunID, Errors: errs}))
		return
	}

	s.hub.Broadcast(newMessage(EventReload, ReloadEvent{
		RunID:    res.RunID,
		Tasks:    res.Order,
		Records:  res.Records(),
		Finished: ev.Time,
	}))
	s.log.WithContext(ctx).Info("Reloading browsers", logger.Fields(
		"clients", s.hub.ClientCount(),
		logger.FieldRunID, res.RunID,
	))
}
