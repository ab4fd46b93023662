package main

import (
	"context"

	"autoscuola/cmd/places-refresh/commands"
)

func main() {
	commands.ExecuteContext(context.Background())
}
