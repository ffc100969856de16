package poller

import (
	"log/slog"
	"strings"
	"time"
)

// Defaults for text jobs.
const (
	DefaultInterval    = 2 * time.Second
	DefaultMaxAttempts = 30
)

// Defaults for image jobs, which take longer.
const (
	ImageInterval    = 3 * time.Second
	ImageMaxAttempts = 60
)

// Options controls a Poller.
type Options struct {
	// Interval is the wait between two status queries.
	Interval time.Duration

	// MaxAttempts bounds the number of status queries.
	MaxAttempts int

	Logger *slog.Logger
}

// DefaultOptions returns the options used for text jobs.
func DefaultOptions() Options {
	return Options{Interval: DefaultInterval, MaxAttempts: DefaultMaxAttempts}
}

// OptionsFor returns default options for jobs of the given event name.
// Event names whose segments mention images or portraits get the longer
// image schedule.
func OptionsFor(eventName string) Options {
	for _, segment := range strings.Split(strings.ToLower(eventName), "/") {
		switch segment {
		case "image", "images", "portrait", "avatar", "token-art":
			return Options{Interval: ImageInterval, MaxAttempts: ImageMaxAttempts}
		}
	}
	return DefaultOptions()
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}
