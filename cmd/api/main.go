package main

import (
	"fmt"
	"os"

	"github.com/enrolhub/checkout-engine/internal/app"
)

func main() {
	err := app.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "checkout-engine: %v\n", err)
		os.Exit(1)
	}
}
