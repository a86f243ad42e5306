// Command pmeql explores the PME data hub through the safe query gateway.
package main

import (
	"context"
	"os"

	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
