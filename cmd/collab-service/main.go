// Package main is the collab-service entrypoint (HTTP + WebSocket).
package main

import (
	"log"

	"github.com/ShivanshMandolia/Intervu-sub000/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
