package params

import (
	"encoding/hex"
	"strconv"
	"strings"

	"zenbeasts/core/types"
)

const (
	EventTypeConfigInitialized    = "config.initialized"
	EventTypeConfigUpdated        = "config.updated"
	EventTypeUpdateScheduled      = "config.update_scheduled"
	EventTypeAuthorityTransferred = "config.authority_transferred"
)

type configEvent struct {
	evt *types.Event
}

func (e configEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e configEvent) Event() *types.Event { return e.evt.Copy() }

func newInitializedEvent(cfg *Config, ts int64) configEvent {
	return configEvent{evt: &types.Event{
		Type: EventTypeConfigInitialized,
		Attributes: map[string]string{
			"authority":   hex.EncodeToString(cfg.Authority[:]),
			"treasury":    hex.EncodeToString(cfg.Treasury[:]),
			"rewardToken": cfg.RewardToken,
			"timestamp":   strconv.FormatInt(ts, 10),
		},
	}}
}

func newUpdatedEvent(fc FieldChange, updatedBy [20]byte, ts int64) configEvent {
	return configEvent{evt: &types.Event{
		Type: EventTypeConfigUpdated,
		Attributes: map[string]string{
			"parameter": fc.Name,
			"oldValue":  fc.Old,
			"newValue":  fc.New,
			"updatedBy": hex.EncodeToString(updatedBy[:]),
			"timestamp": strconv.FormatInt(ts, 10),
		},
	}}
}

func newScheduledEvent(pending *PendingUpdate, scheduledBy [20]byte, ts int64) configEvent {
	return configEvent{evt: &types.Event{
		Type: EventTypeUpdateScheduled,
		Attributes: map[string]string{
			"parameters":     strings.Join(changedNames(pending.Changes), ","),
			"activationTime": strconv.FormatInt(pending.ActivationTime, 10),
			"scheduledBy":    hex.EncodeToString(scheduledBy[:]),
			"timestamp":      strconv.FormatInt(ts, 10),
		},
	}}
}

func newAuthorityTransferredEvent(old, next [20]byte, ts int64) configEvent {
	return configEvent{evt: &types.Event{
		Type: EventTypeAuthorityTransferred,
		Attributes: map[string]string{
			"oldAuthority": hex.EncodeToString(old[:]),
			"newAuthority": hex.EncodeToString(next[:]),
			"timestamp":    strconv.FormatInt(ts, 10),
		},
	}}
}
