// ABOUTME: Interactive multi-turn chat loop
// ABOUTME: Reads prompts from stdin and streams each reply until EOF or cancellation

package cli

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/2389/irma/internal/client"
)

// newConversationCommand starts a fresh conversation from inside the chat loop.
const newConversationCommand = "/newConversation"

func (inv *invocation) runChat(ctx context.Context, args []string) error {
	c := inv.client()

	id := inv.state.Session.CurrentConversationID
	if id == "" {
		conv, err := c.CreateConversation(ctx, &client.CreateRequest{Product: inv.product()})
		if err != nil {
			return err
		}
		id = conv.ConversationID
		inv.state.SetCurrentConversation(id)
		inv.render.Printf("Started conversation %s\n", id)
	} else {
		inv.render.Printf("Continuing conversation %s\n", id)
	}
	inv.render.Infof("Enter your prompt, %s to reset, or press Ctrl+C to exit.\n", newConversationCommand)

	input := newLineReader(inv.app.Stdin)
	for {
		inv.render.Prompt()
		line, err := input.ReadLine(ctx)
		if errors.Is(err, io.EOF) {
			inv.render.Printf("\n")
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.EqualFold(line, newConversationCommand) {
			conv, err := c.CreateConversation(ctx, &client.CreateRequest{Product: inv.product()})
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				inv.render.Errorf("Failed to create new conversation: %v\n", err)
				continue
			}
			id = conv.ConversationID
			inv.state.SetCurrentConversation(id)
			inv.render.Printf("New conversation %s started.\n", id)
			continue
		}

		product := inv.product()
		if product == "" {
			inv.render.Errorf("Product is required. Use --product or 'irma defaults set product <value>'.\n")
			continue
		}

		err = inv.streamTurn(ctx, c, id, &client.ChatRequest{Message: line, Product: product})
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			var apiErr *client.APIError
			if errors.As(err, &apiErr) {
				inv.render.Errorf("Request failed with status %d: %s\n", apiErr.StatusCode, apiErr.Message)
			} else {
				inv.render.Errorf("%v\n", err)
			}
			continue
		}
		inv.state.SetCurrentConversation(id)
	}
}
