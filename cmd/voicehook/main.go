package main

import (
	"fmt"
	"os"

	"github.com/soyeahso/voicehook/internal/cli"
	"github.com/tillberg/autorestart"
)

func main() {
	// Re-exec when the binary is rebuilt during development.
	if os.Getenv("VOICEHOOK_AUTORESTART") == "1" {
		go autorestart.RestartOnChange()
	}

	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "voicehook:", err)
		os.Exit(1)
	}
}
