// Package basic provides small local capabilities: a greeter, a four-function
// calculator and a clock.
package basic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spachava753/toolloop"
)

// DivisionByZeroErr is returned by the divide capability when the divisor is zero.
var DivisionByZeroErr = errors.New("cannot divide by zero")

type GreetArgs struct {
	Name string `json:"name" jsonschema:"the name of the person to greet"`
}

func (g *GreetArgs) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return errors.New("name must not be empty")
	}
	return nil
}

// Greet returns the greet capability, which answers "Hello, {name}!".
func Greet() toolloop.Capability {
	return toolloop.MustCapability("greet", "Greet a person by name",
		func(ctx context.Context, args GreetArgs) (string, error) {
			return fmt.Sprintf("Hello, %s!", args.Name), nil
		})
}

// OperandArgs are the arguments of the calculator capabilities.
type OperandArgs struct {
	A float64 `json:"a" jsonschema:"the first operand"`
	B float64 `json:"b" jsonschema:"the second operand"`
}

func arithmetic(name, description string, op func(a, b float64) (float64, error)) toolloop.Capability {
	return toolloop.MustCapability(name, description,
		func(ctx context.Context, args OperandArgs) (string, error) {
			v, err := op(args.A, args.B)
			if err != nil {
				return "", err
			}
			return strconv.FormatFloat(v, 'g', -1, 64), nil
		})
}

func Add() toolloop.Capability {
	return arithmetic("add", "Add two numbers", func(a, b float64) (float64, error) { return a + b, nil })
}

func Subtract() toolloop.Capability {
	return arithmetic("subtract", "Subtract the second number from the first", func(a, b float64) (float64, error) { return a - b, nil })
}

func Multiply() toolloop.Capability {
	return arithmetic("multiply", "Multiply two numbers", func(a, b float64) (float64, error) { return a * b, nil })
}

// Divide fails with DivisionByZeroErr instead of producing an infinity or NaN.
func Divide() toolloop.Capability {
	return arithmetic("divide", "Divide the first number by the second", func(a, b float64) (float64, error) {
		if b == 0 {
			return 0, DivisionByZeroErr
		}
		return a / b, nil
	})
}

// Calculator returns add, subtract, multiply and divide.
func Calculator() []toolloop.Capability {
	return []toolloop.Capability{Add(), Subtract(), Multiply(), Divide()}
}

type currentTime struct {
	ISO      string `json:"iso"`
	Readable string `json:"readable"`
}

// CurrentTime returns the get_current_time capability. now defaults to time.Now.
func CurrentTime(now func() time.Time) toolloop.Capability {
	if now == nil {
		now = time.Now
	}
	return toolloop.Capability{
		Name:        "get_current_time",
		Description: "Get the current date and time",
		Handler: toolloop.HandlerFunc(func(ctx context.Context, _ map[string]any) (string, error) {
			t := now()
			b, err := json.Marshal(currentTime{
				ISO:      t.UTC().Format(time.RFC3339),
				Readable: t.Format("Mon Jan 02 2006 15:04:05 MST"),
			})
			if err != nil {
				return "", err
			}
			return string(b), nil
		}),
	}
}
