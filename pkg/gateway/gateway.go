// Package gateway is the thin seam between a concrete message adapter
// (D1-D8) and the thought-process orchestrator (C7): it turns a
// decoded inbound Message into one orchestrator invocation, so every
// vendor adapter feeds the same pipeline through the same
// adapter.ReceiveFunc regardless of transport. Grounded on the
// teacher's own bus.MessageHandler indirection (pkg/bus/types.go),
// generalized from a raw InboundMessage callback into one that already
// carries this repo's typed Message model.
package gateway

import (
	"context"

	"github.com/weavebot/weavebot/pkg/adapter"
	"github.com/weavebot/weavebot/pkg/botctx"
	"github.com/weavebot/weavebot/pkg/message"
	"github.com/weavebot/weavebot/pkg/thoughtprocess"
)

// Receive builds the adapter.ReceiveFunc every message adapter Factory
// wires as its inbound callback. Errors surfaced from Run are stage-
// machine failures (a Middleware stack panicking or a piece returning
// a MiddlewareError), not ordinary branch/callback errors, which are
// already annotated and logged on State by the orchestrator itself.
func Receive(bc *botctx.Context) adapter.ReceiveFunc {
	return func(ctx context.Context, msg message.Message) {
		if _, err := thoughtprocess.Run(ctx, bc, msg); err != nil {
			bc.Logger().ErrorCF("gateway", "thought process run failed", map[string]interface{}{
				"message_id": msg.ID,
				"error":      err.Error(),
			})
		}
	}
}
