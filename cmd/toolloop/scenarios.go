package main

import (
	"context"
	"errors"
	"maps"
	"net/http"
	"slices"

	"github.com/spachava753/toolloop"
	"github.com/spachava753/toolloop/capabilities/basic"
	"github.com/spachava753/toolloop/capabilities/cohere"
	"github.com/spachava753/toolloop/capabilities/documents"
	"github.com/spachava753/toolloop/capabilities/education"
	"github.com/spachava753/toolloop/capabilities/linkup"
	"github.com/spachava753/toolloop/capabilities/tavily"
	"github.com/spachava753/toolloop/credentials"
	"github.com/spachava753/toolloop/log"
)

type scenario struct {
	system   string
	query    string
	registry func(ctx context.Context, creds credentials.Provider, httpClient *http.Client) (*toolloop.Registry, error)
	// googleSearch grounds answers with Google Search, which only Gemini offers
	googleSearch bool
}

var scenarios = map[string]scenario{
	"greet": {
		system: "You are a friendly assistant. Use the greet tool whenever you are asked to greet someone.",
		query:  "Please greet John.",
		registry: func(context.Context, credentials.Provider, *http.Client) (*toolloop.Registry, error) {
			return toolloop.NewRegistry(basic.Greet())
		},
	},
	"calculator": {
		system: "You are a careful assistant. Use the calculator tools for every arithmetic step and the clock for anything about the current date.",
		query:  "What is 1234 multiplied by 5678, divided by 2? Also, what day is it today?",
		registry: func(context.Context, credentials.Provider, *http.Client) (*toolloop.Registry, error) {
			return toolloop.NewRegistry(append(basic.Calculator(), basic.CurrentTime(nil))...)
		},
	},
	"rag": {
		system: "You answer questions about Contoso Electronics. Search the document repository, read the relevant documents and answer only from their content. Cite the document ids you used.",
		query:  "What does Northwind Health Plus cover that Northwind Standard does not?",
		registry: func(context.Context, credentials.Provider, *http.Client) (*toolloop.Registry, error) {
			return toolloop.NewRegistry(documents.NewRepository(documents.Contoso()...).Capabilities()...)
		},
	},
	"websearch": {
		system: "You are a helpful assistant that answers with accurate, concise information from web search results. " +
			"Adapt to the conventions of the place the query is about, such as units and date formats.",
		query:    "What is the weather in Adelaide going to be like this week?",
		registry: webRegistry,
	},
	"grounding": {
		system: "You are a helpful assistant. Search the web for anything recent and answer concisely, " +
			"in the units and date formats used where the query is about.",
		query:        "What is the weather like in Adelaide tomorrow?",
		registry:     emptyRegistry,
		googleSearch: true,
	},
	"education": {
		system: "You are a study coach. Use the study planner to build schedules and explain the plan briefly, day by day.",
		query:  "I have 20 hours over the next 5 days to prepare for exams in calculus, physics and chemistry. Calculus worries me most. Plan my week.",
		registry: func(context.Context, credentials.Provider, *http.Client) (*toolloop.Registry, error) {
			return toolloop.NewRegistry(education.StudyPlanner(nil), basic.CurrentTime(nil))
		},
	},
}

func emptyRegistry(context.Context, credentials.Provider, *http.Client) (*toolloop.Registry, error) {
	return toolloop.NewRegistry()
}

func scenarioNames() []string {
	return slices.Sorted(maps.Keys(scenarios))
}

// webRegistry registers every web capability that has a key configured.
func webRegistry(ctx context.Context, creds credentials.Provider, httpClient *http.Client) (*toolloop.Registry, error) {
	var caps []toolloop.Capability

	if key, err := creds.APIKey("tavily"); err == nil {
		c, err := tavily.New(key, tavily.WithHTTPClient(httpClient))
		if err != nil {
			return nil, err
		}
		caps = append(caps, c.Capabilities()...)
	}
	if key, err := creds.APIKey("linkup"); err == nil {
		c, err := linkup.New(key, linkup.WithHTTPClient(httpClient))
		if err != nil {
			return nil, err
		}
		caps = append(caps, c.Capability())
	}
	if len(caps) == 0 {
		return nil, errors.New("websearch needs a tavily or linkup api key")
	}
	if key, err := creds.APIKey("cohere"); err == nil {
		c, err := cohere.New(key, cohere.WithHTTPClient(httpClient))
		if err != nil {
			return nil, err
		}
		caps = append(caps, c.Capability())
	}
	caps = append(caps, basic.CurrentTime(nil))
	log.Debug(ctx, "web capabilities", "count", len(caps))
	return toolloop.NewRegistry(caps...)
}
