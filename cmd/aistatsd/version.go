package main

// Set at build time with -ldflags "-X main.Version=...".
var (
	Version   string
	GitCommit string
	BuildDate string
)
