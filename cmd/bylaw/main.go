package main

import (
	"os"

	"github.com/spf13/cobra"

	askcmder "github.com/bylawhq/bylaw/cmd/bylaw/ask"
	mcpcmder "github.com/bylawhq/bylaw/cmd/bylaw/mcp"
)

func main() {
	root := &cobra.Command{
		Use:   "bylaw",
		Short: "Client for the bylaw building code assistant",
		Long: `bylaw is the command line client for a running bylaw assistant server.

It can ask one-shot or continued questions against the server and expose
the assistant as an MCP tool for other applications.`,
		SilenceUsage: true,
	}

	root.AddCommand(askcmder.NewAskCmd())
	root.AddCommand(mcpcmder.NewMCPCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
