// Package credentials resolves provider api keys and Google Cloud settings from a
// shared API_KEYS.json file and from the environment.
//
// The key file maps provider names to their settings:
//
//	{
//	    "openai":      {"api_key": "sk-..."},
//	    "cohere":      {"api_key": "..."},
//	    "googleCloud": {"projectId": "my-project", "serviceAccountKey": {...}}
//	}
package credentials

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/gjson"
)

// NotFoundErr is returned when a provider has no api key.
type NotFoundErr string

func (n NotFoundErr) Error() string {
	return fmt.Sprintf("no api key configured for %q", string(n))
}

// GoogleCloudNotConfiguredErr is returned when no Google Cloud project is configured.
var GoogleCloudNotConfiguredErr = errors.New("google cloud project is not configured")

// GoogleCloud holds the settings needed to reach Vertex AI.
type GoogleCloud struct {
	ProjectID string
	// ServiceAccountKey is the raw service account JSON, empty when application
	// default credentials should be used.
	ServiceAccountKey []byte
}

// Provider resolves credentials.
type Provider interface {
	// APIKey returns the api key of the named provider, or NotFoundErr.
	APIKey(name string) (string, error)
	GoogleCloud() (GoogleCloud, error)
}

// FileProvider reads credentials from the content of an API_KEYS.json file.
type FileProvider struct {
	doc gjson.Result
}

// Load reads the key file at path.
func Load(path string) (*FileProvider, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	return Parse(b)
}

// Parse builds a FileProvider from key file content.
func Parse(b []byte) (*FileProvider, error) {
	if !gjson.ValidBytes(b) {
		return nil, errors.New("key file is not valid JSON")
	}
	return &FileProvider{doc: gjson.ParseBytes(b)}, nil
}

func (f *FileProvider) APIKey(name string) (string, error) {
	key := f.doc.Get(name).Get("api_key").String()
	if key == "" {
		return "", NotFoundErr(name)
	}
	return key, nil
}

func (f *FileProvider) GoogleCloud() (GoogleCloud, error) {
	gc := f.doc.Get("googleCloud")
	project := gc.Get("projectId").String()
	if project == "" {
		return GoogleCloud{}, GoogleCloudNotConfiguredErr
	}
	out := GoogleCloud{ProjectID: project}
	if sa := gc.Get("serviceAccountKey"); sa.IsObject() {
		out.ServiceAccountKey = []byte(sa.Raw)
	}
	return out, nil
}

// EnvProvider reads <NAME>_API_KEY variables, GOOGLE_CLOUD_PROJECT and
// GOOGLE_APPLICATION_CREDENTIALS_JSON. Lookup defaults to os.LookupEnv.
type EnvProvider struct {
	Lookup func(string) (string, bool)
}

func (e EnvProvider) lookup(k string) string {
	lookup := e.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	v, _ := lookup(k)
	return v
}

// EnvVar returns the variable EnvProvider reads the api key of name from.
func EnvVar(name string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(name)) + "_API_KEY"
}

func (e EnvProvider) APIKey(name string) (string, error) {
	if v := e.lookup(EnvVar(name)); v != "" {
		return v, nil
	}
	return "", NotFoundErr(name)
}

func (e EnvProvider) GoogleCloud() (GoogleCloud, error) {
	project := e.lookup("GOOGLE_CLOUD_PROJECT")
	if project == "" {
		return GoogleCloud{}, GoogleCloudNotConfiguredErr
	}
	gc := GoogleCloud{ProjectID: project}
	if sa := e.lookup("GOOGLE_APPLICATION_CREDENTIALS_JSON"); sa != "" {
		gc.ServiceAccountKey = []byte(sa)
	}
	return gc, nil
}

// Chain tries each provider in order and returns the first hit.
type Chain []Provider

func (c Chain) APIKey(name string) (string, error) {
	for _, p := range c {
		key, err := p.APIKey(name)
		if err == nil {
			return key, nil
		}
		var nf NotFoundErr
		if !errors.As(err, &nf) {
			return "", err
		}
	}
	return "", NotFoundErr(name)
}

func (c Chain) GoogleCloud() (GoogleCloud, error) {
	for _, p := range c {
		gc, err := p.GoogleCloud()
		if err == nil {
			return gc, nil
		}
		if !errors.Is(err, GoogleCloudNotConfiguredErr) {
			return GoogleCloud{}, err
		}
	}
	return GoogleCloud{}, GoogleCloudNotConfiguredErr
}

var (
	_ Provider = (*FileProvider)(nil)
	_ Provider = EnvProvider{}
	_ Provider = Chain(nil)
)
