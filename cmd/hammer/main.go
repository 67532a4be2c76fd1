// hammer fires 500 concurrent POST requests at the local receiver and waits
// for all of them to finish.
//
//	go run ./cmd/hammer
//	go run ./cmd/hammer --url http://localhost:8001/append/ -n 500 --tui
package main

import (
	"os"

	"github.com/subygan/receiver/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
