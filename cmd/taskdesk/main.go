package main

import (
	"context"
	"fmt"
	"os"

	"taskdesk/internal/cli"
)

func main() {
	if err := cli.Execute(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "taskdesk:", err)
		os.Exit(1)
	}
}
