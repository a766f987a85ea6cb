package main

import (
	"log"

	"github.com/svclane/rolloutd/internal/app"
)

func main() {
	if err := app.New().Run(); err != nil {
		log.Fatalf("rolloutd failed to start: %v", err)
	}
}
