package mcpcmder

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/bylawhq/bylaw/cmd/bylaw/serverapi"
)

const mcpLongDesc string = `Expose the building code assistant as an MCP tool over stdio.

Each ask_building_code call runs one full turn (expansion, retrieval,
streamed completion) against the assistant server in a throwaway session
and returns the answer text.

Examples:
  bylaw mcp
  bylaw mcp --server http://localhost:8080`

const mcpShortDesc string = "Serve the assistant as an MCP tool"

type mcpCommander struct {
	serverURL string
}

type askInput struct {
	Question string `json:"question" jsonschema:"the question to ask about the building code"`
}

func NewMCPCmd() *cobra.Command {
	cmder := &mcpCommander{}

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: mcpShortDesc,
		Long:  mcpLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&cmder.serverURL, "server", "s", "http://localhost:8080", "Assistant server URL")

	return cmd
}

func (c *mcpCommander) run(ctx context.Context) error {
	client := serverapi.New(c.serverURL)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "bylaw",
		Version: "0.1.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask_building_code",
		Description: "Ask a question about the building code and get a cited answer",
	}, func(ctx context.Context, req *mcp.CallToolRequest, input askInput) (*mcp.CallToolResult, any, error) {
		sessionID, err := client.CreateSession(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("could not create session: %w", err)
		}
		defer client.DeleteSession(context.Background(), sessionID)

		result, err := client.Chat(ctx, sessionID, input.Question, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("could not complete turn: %w", err)
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: result.Reply},
			},
		}, nil, nil
	})

	return server.Run(ctx, &mcp.StdioTransport{})
}
