package amqp

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// ContentType of published event bodies.
const ContentType = "application/protobuf"

// EventType names a ledger change.
type EventType string

const (
	EventMealRecorded     EventType = "meal.recorded"
	EventExpenseRecorded  EventType = "expense.recorded"
	EventExpenseUpdated   EventType = "expense.updated"
	EventGroupCreated     EventType = "group.created"
	EventMemberJoined     EventType = "member.joined"
	EventAdminTransferred EventType = "admin.transferred"
	EventMemberLeft       EventType = "member.left"
	EventGroupDeleted     EventType = "group.deleted"
)

// AllEventTypes lists every event the ledger publishes.
func AllEventTypes() []EventType {
	return []EventType{
		EventMealRecorded,
		EventExpenseRecorded,
		EventExpenseUpdated,
		EventGroupCreated,
		EventMemberJoined,
		EventAdminTransferred,
		EventMemberLeft,
		EventGroupDeleted,
	}
}

// RoutingKey is the topic the event type is published under.
func (t EventType) RoutingKey() string {
	return "ledger." + string(t)
}

// Event is a notification that ledger state changed. Consumers re-read the
// store for anything beyond the attributes carried here.
type Event struct {
	Type       EventType
	GroupID    string
	UserID     string
	OccurredAt time.Time

	// Attributes holds event-specific values: strings, numbers and bools.
	Attributes map[string]any
}

// NewEvent creates an event stamped with the current time.
func NewEvent(eventType EventType, groupID, userID string, attrs map[string]any) *Event {
	return &Event{
		Type:       eventType,
		GroupID:    groupID,
		UserID:     userID,
		OccurredAt: time.Now().UTC(),
		Attributes: attrs,
	}
}

// Marshal encodes the event as a protobuf Struct.
func (e *Event) Marshal() ([]byte, error) {
	attrs := e.Attributes
	if attrs == nil {
		attrs = map[string]any{}
	}
	s, err := structpb.NewStruct(map[string]any{
		"type":        string(e.Type),
		"group_id":    e.GroupID,
		"user_id":     e.UserID,
		"occurred_at": e.OccurredAt.Format(time.RFC3339Nano),
		"attributes":  attrs,
	})
	if err != nil {
		return nil, fmt.Errorf("build event struct: %w", err)
	}
	return proto.Marshal(s)
}

// UnmarshalEvent decodes an event produced by Marshal. Numeric attributes
// come back as float64.
func UnmarshalEvent(data []byte) (*Event, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}
	fields := s.AsMap()

	e := &Event{
		Type:    EventType(stringField(fields, "type")),
		GroupID: stringField(fields, "group_id"),
		UserID:  stringField(fields, "user_id"),
	}
	if e.Type == "" {
		return nil, fmt.Errorf("unmarshal event: missing type")
	}
	if ts := stringField(fields, "occurred_at"); ts != "" {
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("unmarshal event: occurred_at: %w", err)
		}
		e.OccurredAt = t
	}
	if attrs, ok := fields["attributes"].(map[string]any); ok {
		e.Attributes = attrs
	}
	return e, nil
}

func stringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return s
}
