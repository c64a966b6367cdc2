package toolloop_test

import (
	"context"
	"errors"
	"fmt"

	"github.com/spachava753/toolloop"
)

// ExampleLoop_Run replays a recorded exchange with a ScriptedGateway: the model
// asks for the greet capability, then answers with its result.
func ExampleLoop_Run() {
	type GreetArgs struct {
		Name string `json:"name" jsonschema:"the name of the person to greet"`
	}
	greet := toolloop.MustCapability("greet", "Greet a person by name",
		func(ctx context.Context, args GreetArgs) (string, error) {
			return fmt.Sprintf("Hello, %s!", args.Name), nil
		})

	registry, err := toolloop.NewRegistry(greet)
	if err != nil {
		panic(err)
	}

	loop := &toolloop.Loop{
		Gateway: toolloop.NewScriptedGateway(
			toolloop.CapabilityRequests{Invocations: []toolloop.CapabilityInvocation{
				{ID: "call_1", Name: "greet", Arguments: map[string]any{"name": "John"}},
			}},
			toolloop.FinalAnswer{Text: "Hello, John!"},
		),
		Registry: registry,
	}

	out, err := loop.Run(context.Background(), "Greet someone named John")
	if err != nil {
		panic(err)
	}

	for _, turn := range out.Conversation.All() {
		switch turn.Role {
		case toolloop.Model:
			if len(turn.Invocations) > 0 {
				fmt.Printf("%s: invoke %s\n", turn.Role, turn.Invocations[0].Name)
				continue
			}
			fmt.Printf("%s: %s\n", turn.Role, turn.Content)
		case toolloop.Result:
			fmt.Printf("%s: %s\n", turn.Role, turn.Result.Text())
		default:
			fmt.Printf("%s: %s\n", turn.Role, turn.Content)
		}
	}
	fmt.Println(out.State)
	// Output:
	// caller: Greet someone named John
	// model: invoke greet
	// capability-result: Hello, John!
	// model: Hello, John!
	// Done
}

// ExampleLoop_Run_iterationBound shows the failure reported when the model never
// stops requesting capabilities.
func ExampleLoop_Run_iterationBound() {
	n := 0
	gateway := toolloop.ScriptedGateway{}
	for range 3 {
		n++
		gateway.Steps = append(gateway.Steps, toolloop.Step{Reply: toolloop.CapabilityRequests{
			Invocations: []toolloop.CapabilityInvocation{{ID: fmt.Sprintf("call_%d", n), Name: "noop"}},
		}})
	}
	registry, _ := toolloop.NewRegistry(toolloop.Capability{
		Name:    "noop",
		Handler: toolloop.HandlerFunc(func(context.Context, map[string]any) (string, error) { return "", nil }),
	})

	loop := &toolloop.Loop{Gateway: &gateway, Registry: registry, MaxIterations: 2}
	out, err := loop.Run(context.Background(), "loop forever")

	var bound toolloop.IterationBoundExceededErr
	fmt.Println(out.State, errors.As(err, &bound), bound.Bound)
	// Output:
	// Failed true 2
}
