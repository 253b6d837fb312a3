package main

import (
	"github.com/joho/godotenv"

	"fxstreaks/internal/cli"
)

func main() {
	// a missing .env is fine outside local development
	_ = godotenv.Load()
	cli.Execute()
}
