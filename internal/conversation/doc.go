// Package conversation provides the conversation lifecycle service.
//
// # Service
//
//	svc := conversation.New(store, responder, logger,
//		conversation.WithHistoryWindow(20),
//		conversation.WithBroadcaster(b))
//
// Key operations:
//
//   - Create(ctx, req): allocate an Active conversation with zero turns
//   - Get(ctx, id, withMessages): read a conversation
//   - AppendTurn(ctx, req): record a user message and the assistant reply
//   - SetState(ctx, id, state): administrative state change
//
// # Appending a Turn
//
// Turns on the same conversation are serialised by a per-ID lock; turns on
// different conversations run in parallel. Under the lock the service:
//
//  1. Loads the conversation (NotFoundError if missing)
//  2. Returns it unchanged with a ConflictError unless it is Active
//  3. Asks the Responder for the reply text
//  4. Builds the User then Assistant message, the assistant stamped 50ms later
//  5. Increments the turn count, derives the display name, applies the product override
//  6. Saves the row and both messages in one store transaction
//
// A responder error aborts the turn before anything is written.
//
// # Broadcasting
//
// When a TurnBroadcaster is configured every committed turn is published to
// the subscribers of that conversation after the lock-protected commit.
package conversation
