package main

import "time"

// Flag structs to decouple cobra from logic for testing.

type GlobalFlags struct {
	ConfigPath string
	Verbose    bool
}

type RunFlags struct {
	Dev bool
}

type LogsFlags struct {
	Lines int
}

type HealthFlags struct {
	URL     string
	Timeout time.Duration
}
