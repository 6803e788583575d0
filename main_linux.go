//go:build linux

package main

const platformSource = "evdev"

func main() {
	// Set up crash logging early, before any CGO code runs
	initCrashLog()
	execute()
}
