package model

import "time"

// DaemonConfig is the validated configuration of the daemon process.
type DaemonConfig struct {
	TelegramToken    string
	PollTimeout      time.Duration
	DBPath           string
	NoResponsePolicy NoResponsePolicy
	NoResponseGrace  time.Duration
}
