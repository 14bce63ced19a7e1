package config

const (
	// DefaultPort is the default HTTP server port.
	DefaultPort = "8080"

	// DefaultDatabaseURL is empty; must be provided via flag or environment.
	DefaultDatabaseURL = ""

	// DefaultRedisAddr is the default Redis address for the outbound sinks
	// and the inbound command stream.
	DefaultRedisAddr = "localhost:6379"

	// DefaultCommandStream is the Redis stream the consume worker reads
	// inbound command messages from.
	DefaultCommandStream = "taskrelay:commands"

	// DefaultEventStream is the Redis stream integration events are
	// appended to.
	DefaultEventStream = "taskrelay:events"

	// DefaultNotifyChannel is the Redis pub/sub channel notification
	// events are published to.
	DefaultNotifyChannel = "taskrelay:notifications"

	// DefaultConsumerGroup is the consumer group used when reading the
	// command stream.
	DefaultConsumerGroup = "taskrelay-workers"
)
