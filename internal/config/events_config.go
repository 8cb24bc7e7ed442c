package config

const (
	eventsRedisURLVar = "EVENTS_REDIS_URL"
	eventsTopicVar    = "EVENTS_TOPIC"
)

type EventsConfig interface {
	GetEventsRedisURL() string
	GetEventsTopic() string
}

type Events struct{}

var _ EventsConfig = Events{}

// GetEventsRedisURL returns the redis URL session events are streamed to.
// Empty disables publishing.
func (Events) GetEventsRedisURL() string {
	return GetEnv(eventsRedisURLVar, "")
}

func (Events) GetEventsTopic() string {
	return GetEnv(eventsTopicVar, "biteui.session")
}
