package askcmder

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/bylawhq/bylaw/cmd/bylaw/serverapi"
)

const askLongDesc string = `Ask the building code assistant a question.

Creates a session on the server, streams the answer, and prints the
session's token and cost accounting afterwards. Use --session to continue
an existing conversation instead of starting a fresh one.

Examples:
  bylaw ask "How high must a guard be on a residential deck?"
  bylaw ask --server http://192.168.1.42:8080 "What does Part 9 cover?"
  bylaw ask --session 6b0a... "And for exterior stairs?"`

const askShortDesc string = "Ask the assistant a question"

var statLabel = lipgloss.NewStyle().Faint(true)

type askCommander struct {
	serverURL string
	sessionID string
	plain     bool
}

func NewAskCmd() *cobra.Command {
	cmder := &askCommander{}

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: askShortDesc,
		Long:  askLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd, args[0])
		},
	}

	cmd.Flags().StringVarP(&cmder.serverURL, "server", "s", "http://localhost:8080", "Assistant server URL")
	cmd.Flags().StringVar(&cmder.sessionID, "session", "", "Existing session to continue")
	cmd.Flags().BoolVar(&cmder.plain, "plain", false, "Print the raw reply without markdown rendering")

	return cmd
}

func (c *askCommander) run(ctx context.Context, cmd *cobra.Command, question string) error {
	client := serverapi.New(c.serverURL)

	sessionID := c.sessionID
	if sessionID == "" {
		var err error
		sessionID, err = client.CreateSession(ctx)
		if err != nil {
			return fmt.Errorf("could not create session: %w", err)
		}
		// One-shot sessions are cleaned up; continued ones are kept.
		defer client.DeleteSession(context.Background(), sessionID)
	}

	var onSegment func(string) error
	if c.plain {
		onSegment = func(seg string) error {
			_, err := fmt.Fprint(cmd.OutOrStdout(), seg)
			return err
		}
	}

	result, err := client.Chat(ctx, sessionID, question, onSegment)
	if err != nil {
		return fmt.Errorf("could not complete turn: %w", err)
	}

	if c.plain {
		fmt.Fprintln(cmd.OutOrStdout())
	} else {
		fmt.Fprint(cmd.OutOrStdout(), renderMarkdown(result.Reply))
	}

	stats := []string{
		fmt.Sprintf("processed %d", result.Ledger.ProcessedTokens),
		fmt.Sprintf("conversation %d", result.Ledger.ConversationTokens),
		fmt.Sprintf("context %d", result.Ledger.RAGContextTokens),
		fmt.Sprintf("in %d", result.Ledger.InputTokens),
		fmt.Sprintf("out %d", result.Ledger.OutputTokens),
		fmt.Sprintf("est. $%.6f", result.Ledger.EstimatedCost),
	}
	fmt.Fprintln(cmd.OutOrStdout(), statLabel.Render("tokens: "+strings.Join(stats, " | ")))

	if c.sessionID == "" {
		fmt.Fprintln(cmd.OutOrStdout(), statLabel.Render("session: "+sessionID+" (ended)"))
	}

	return nil
}

// renderMarkdown pretty-prints the reply, falling back to the raw text
// rather than losing the answer on renderer errors.
func renderMarkdown(reply string) string {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return reply + "\n"
	}

	rendered, err := renderer.Render(reply)
	if err != nil {
		return reply + "\n"
	}
	return rendered
}
