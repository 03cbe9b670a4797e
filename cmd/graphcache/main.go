package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/hanpama/graphcache/internal/cache"
	"github.com/hanpama/graphcache/internal/client"
	"github.com/hanpama/graphcache/internal/eventbus"
	"github.com/hanpama/graphcache/internal/httplink"
	"github.com/hanpama/graphcache/internal/language"
	"github.com/hanpama/graphcache/internal/otel"
	"github.com/hanpama/graphcache/internal/store"
)

const rootUsage = `graphcache — normalized GraphQL client cache & tools

USAGE:
  graphcache <command> [flags]

COMMANDS:
  query            Execute a query against an endpoint through the cache
  normalize        Normalize a response file and dump the record table
  help             Show help for any command
`

const queryUsage = `query FLAGS:
  -endpoint <url>                  GraphQL HTTP endpoint (required)
  -query <file>                    File holding the query document (required)
  -operation <name>                Operation name (for multi-operation documents)
  -variables <json>                Variables as a JSON object
  -repeat <n>                      Run the query n times; later runs hit the cache (default: 1)
  -bypass-cache                    Skip the store read and always hit the network
  -pretty                          Pretty-print JSON output
  -header <Name=value>             Extra request header. Repeatable
  -transport.timeout <duration>    Per-call timeout, e.g. 10s (default: 10s)
  -transport.max-tries <n>         Attempts for transient failures (default: 3)
  -otel.endpoint <addr>            OTLP collector endpoint
  -otel.service <name>             OpenTelemetry service name (default: graphcache)
`

const normalizeUsage = `normalize FLAGS:
  -query <file>       File holding the query document (required)
  -response <file>    File holding the JSON response body (required)
  -operation <name>   Operation name (for multi-operation documents)
  -variables <json>   Variables as a JSON object
  -policy <Type=f1,f2>  Identifying fields for a type. Repeatable
  (Prints the normalized EntityKey -> record table as JSON)
`

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("missing command")
	}
	cmd := args[0]
	cmdArgs := args[1:]
	switch cmd {
	case "query":
		return cmdQuery(cmdArgs)
	case "normalize":
		return cmdNormalize(cmdArgs)
	case "help":
		return cmdHelp(cmdArgs)
	default:
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdHelp(args []string) error {
	if len(args) == 0 {
		fmt.Print(rootUsage)
		return nil
	}
	switch args[0] {
	case "query":
		fmt.Print(queryUsage)
	case "normalize":
		fmt.Print(normalizeUsage)
	default:
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	return nil
}

type stringListFlag []string

func (s *stringListFlag) String() string { return "" }

func (s *stringListFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func cmdQuery(args []string) error {
	endpoint := ""
	queryFile := ""
	operation := ""
	variablesJSON := ""
	repeat := 1
	bypass := false
	pretty := false
	timeout := 10 * time.Second
	maxTries := 3
	otelEndpoint := ""
	otelService := "graphcache"
	var headers stringListFlag

	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&endpoint, "endpoint", endpoint, "GraphQL HTTP endpoint")
	fs.StringVar(&queryFile, "query", queryFile, "Query document file")
	fs.StringVar(&operation, "operation", operation, "Operation name")
	fs.StringVar(&variablesJSON, "variables", variablesJSON, "Variables JSON")
	fs.IntVar(&repeat, "repeat", repeat, "Run the query n times")
	fs.BoolVar(&bypass, "bypass-cache", bypass, "Always hit the network")
	fs.BoolVar(&pretty, "pretty", pretty, "Pretty-print JSON output")
	fs.Var(&headers, "header", "Extra request header")
	fs.DurationVar(&timeout, "transport.timeout", timeout, "Per-call timeout")
	fs.IntVar(&maxTries, "transport.max-tries", maxTries, "Attempts for transient failures")
	fs.StringVar(&otelEndpoint, "otel.endpoint", otelEndpoint, "OTLP collector endpoint")
	fs.StringVar(&otelService, "otel.service", otelService, "OpenTelemetry service name")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, queryUsage)
		return err
	}
	if endpoint == "" || queryFile == "" {
		fmt.Fprint(os.Stderr, queryUsage)
		return fmt.Errorf("-endpoint and -query are required")
	}

	doc, variables, err := loadDocument(queryFile, variablesJSON)
	if err != nil {
		return err
	}

	eventbus.Use(eventbus.New())
	shutdown, err := otel.Setup(otelEndpoint, otelService)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	lopts := []httplink.Option{httplink.WithTimeout(timeout), httplink.WithMaxTries(uint(maxTries))}
	for _, h := range headers {
		parts := strings.SplitN(h, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid header %q", h)
		}
		lopts = append(lopts, httplink.WithHeader(parts[0], parts[1]))
	}
	cl := client.New(httplink.New(endpoint, lopts...))

	var qopts []client.QueryOption
	if bypass {
		qopts = append(qopts, client.BypassCache())
	}
	for i := 0; i < repeat; i++ {
		res, err := cl.Query(context.Background(), doc, operation, variables, qopts...)
		if err != nil {
			return err
		}
		log.Printf("run %d: source=%s complete=%v", i+1, res.Source, res.Complete)
		if err := printJSON(res.Data, pretty); err != nil {
			return err
		}
		for _, e := range res.Errors {
			log.Printf("graphql error: %s", e.Message)
		}
	}
	return nil
}

func cmdNormalize(args []string) error {
	queryFile := ""
	responseFile := ""
	operation := ""
	variablesJSON := ""
	var policies stringListFlag

	fs := flag.NewFlagSet("normalize", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&queryFile, "query", queryFile, "Query document file")
	fs.StringVar(&responseFile, "response", responseFile, "Response JSON file")
	fs.StringVar(&operation, "operation", operation, "Operation name")
	fs.StringVar(&variablesJSON, "variables", variablesJSON, "Variables JSON")
	fs.Var(&policies, "policy", "Identifying fields for a type")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, normalizeUsage)
		return err
	}
	if queryFile == "" || responseFile == "" {
		fmt.Fprint(os.Stderr, normalizeUsage)
		return fmt.Errorf("-query and -response are required")
	}

	doc, variables, err := loadDocument(queryFile, variablesJSON)
	if err != nil {
		return err
	}
	raw, err := os.ReadFile(responseFile)
	if err != nil {
		return err
	}
	var body struct {
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	if body.Data == nil {
		return fmt.Errorf("response has no data")
	}

	var copts []cache.Option
	for _, p := range policies {
		parts := strings.SplitN(p, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid policy %q", p)
		}
		copts = append(copts, cache.WithTypePolicy(parts[0], strings.Split(parts[1], ",")...))
	}
	c := cache.New(copts...)

	changed, err := c.Write(doc, operation, variables, body.Data)
	if err != nil {
		return err
	}
	log.Printf("normalized %d records (%d changed)", c.Len(), len(changed))
	return printJSON(dumpSnapshot(c.Snapshot()), true)
}

func loadDocument(queryFile, variablesJSON string) (doc *language.QueryDocument, variables map[string]any, err error) {
	src, err := os.ReadFile(queryFile)
	if err != nil {
		return nil, nil, err
	}
	doc, err = language.ParseQuery(string(src))
	if err != nil {
		return nil, nil, fmt.Errorf("parse query: %w", err)
	}
	variables = map[string]any{}
	if variablesJSON != "" {
		if err := json.Unmarshal([]byte(variablesJSON), &variables); err != nil {
			return nil, nil, fmt.Errorf("parse variables: %w", err)
		}
	}
	return doc, variables, nil
}

// dumpSnapshot converts the record table into plain JSON shapes, rendering
// references as {"__ref": key} so the flat structure stays visible.
func dumpSnapshot(snap map[store.EntityKey]store.EntityRecord) map[string]any {
	out := make(map[string]any, len(snap))
	for key, rec := range snap {
		fields := make(map[string]any, len(rec))
		for f, v := range rec {
			fields[f] = dumpValue(v)
		}
		out[string(key)] = fields
	}
	return out
}

func dumpValue(v store.Value) any {
	switch v.Kind {
	case store.KindScalar:
		return v.Scalar
	case store.KindList:
		out := make([]any, len(v.List))
		for i, item := range v.List {
			out[i] = dumpValue(item)
		}
		return out
	case store.KindRef:
		return map[string]any{"__ref": string(v.Ref)}
	case store.KindEmbedded:
		fields := make(map[string]any, len(v.Embedded.Fields))
		for f, item := range v.Embedded.Fields {
			fields[f] = dumpValue(item)
		}
		return fields
	default:
		return nil
	}
}

func printJSON(v any, pretty bool) error {
	enc := json.NewEncoder(os.Stdout)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
