package main

import (
	"log"

	"github.com/pagefaves/pagefaves/internal/app"
)

func main() {
	if err := app.New().Run(); err != nil {
		log.Fatalf("pagefaves failed to start: %v", err)
	}
}
