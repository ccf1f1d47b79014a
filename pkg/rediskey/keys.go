package rediskey

const (
	EventsNamespace = "zombies:events:"
	RecentEvents    = "zombies:events:recent"

	JobQueue = "zombies:jobs:queue"

	Totals = "zombies:totals"
)

// EventChannel is the pub/sub channel for one event name, e.g. "zombies:events:match.ended".
func EventChannel(name string) string {
	return EventsNamespace + name
}

func Lock(key string) string {
	return "zombies:lock:" + key
}
