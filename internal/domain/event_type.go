package domain

import "encoding/json"

// EventType tags a notification with its event class. The set is closed:
// tags arriving off the wire that are not listed here are normalized to
// EventGenericAlert rather than being carried around as free-form strings,
// so an unrecognized tag degrades to a generic alert instead of silently
// taking an arbitrary code path.
type EventType string

const (
	EventKYCApproved          EventType = "kyc_approved"
	EventKYCRejected          EventType = "kyc_rejected"
	EventFundsCredited        EventType = "funds_credited"
	EventTransactionCompleted EventType = "transaction_completed"
	EventAccountSuspended     EventType = "account_suspended"
	EventGenericAlert         EventType = "alert"
)

// Priority levels used by the presentation layer to order and style toasts.
const (
	PriorityLow      = 0
	PriorityNormal   = 1
	PriorityCritical = 2
)

var eventTypes = map[EventType]struct {
	priority int
	icon     string
}{
	EventKYCApproved:          {PriorityNormal, "check-circle"},
	EventKYCRejected:          {PriorityCritical, "x-circle"},
	EventFundsCredited:        {PriorityCritical, "wallet"},
	EventTransactionCompleted: {PriorityNormal, "arrow-right-left"},
	EventAccountSuspended:     {PriorityCritical, "ban"},
	EventGenericAlert:         {PriorityLow, "bell"},
}

// ParseEventType maps a wire tag to its EventType, returning
// EventGenericAlert for tags not in the table.
func ParseEventType(tag string) EventType {
	et := EventType(tag)
	if _, ok := eventTypes[et]; ok {
		return et
	}
	return EventGenericAlert
}

// Priority returns the display priority for the event type.
func (et EventType) Priority() int {
	if e, ok := eventTypes[et]; ok {
		return e.priority
	}
	return PriorityLow
}

// Icon returns the icon name the presentation layer should render for the
// event type.
func (et EventType) Icon() string {
	if e, ok := eventTypes[et]; ok {
		return e.icon
	}
	return eventTypes[EventGenericAlert].icon
}

// UnmarshalJSON normalizes unknown tags through ParseEventType.
func (et *EventType) UnmarshalJSON(data []byte) error {
	var tag string
	if err := json.Unmarshal(data, &tag); err != nil {
		return err
	}
	*et = ParseEventType(tag)
	return nil
}
