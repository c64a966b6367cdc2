// Package toolloop runs bounded tool-call resolution loops against generative
// model providers.
//
// A caller submits a query. The Loop sends the conversation and the registered
// capabilities to a Gateway, which returns either a FinalAnswer or
// CapabilityRequests. Requested capabilities are executed through a Registry and
// their results are appended to the conversation before the Gateway is asked
// again. The loop ends with the model's final answer, or fails with a *LoopErr
// when the gateway fails, an unknown capability is requested, the context is
// cancelled or the iteration bound is exceeded.
//
// # Conversations
//
// A Conversation is an append-only log of turns. Append returns a new
// Conversation and leaves the receiver untouched, so snapshots handed to
// gateways and observers never change underneath them:
//
//	c := toolloop.NewConversation("Greet someone named John")
//	c2 := c.Append(toolloop.Turn{Role: toolloop.Model, Content: "Hello, John!"})
//	// c.Len() == 1, c2.Len() == 2
//
// # Capabilities
//
// Capabilities are registered once in a Registry. Arguments requested by the
// model are validated against the capability's JSON schema before the handler
// runs. Typed handlers can be built with NewCapability, which derives the schema
// from a Go struct:
//
//	type GreetArgs struct {
//	    Name string `json:"name" jsonschema:"the name of the person to greet"`
//	}
//
//	greet, err := toolloop.NewCapability("greet", "Greet a person by name",
//	    func(ctx context.Context, args GreetArgs) (string, error) {
//	        return fmt.Sprintf("Hello, %s!", args.Name), nil
//	    })
//
// Handler errors, panics, invalid arguments and per-capability timeouts do not
// stop the loop. They are reported to the model as failed CapabilityResults.
//
// # Gateways
//
// Provider gateways live in the gateways subpackages (OpenAI and compatible
// providers, Gemini and Vertex AI, Anthropic). They compose with middleware:
//
//	g := toolloop.Wrap(openaiGateway, toolloop.WithLogging(), toolloop.WithRetry(nil))
//
// RetryGateway retries timeouts, rate limiting and server errors with
// exponential backoff. FallbackGateway moves on to another provider when one
// fails.
//
// # Observing a run
//
// An Observer receives turn-appended, capability-invoked, capability-result and
// loop-terminated events. LogObserver writes them to the logger carried by the
// context (see package log); the transcript package persists finished
// conversations.
package toolloop

//go:generate go run ./scripts
