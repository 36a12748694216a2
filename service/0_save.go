package service

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fulldump/apitest"
	"github.com/tidwall/pretty"
)

// Save writes a markdown example of the exchange into API_EXAMPLES_PATH.
// Nothing is written when the variable is not set.
func Save(response *apitest.Response, title, description string) {

	dir := os.Getenv("API_EXAMPLES_PATH")
	if dir == "" {
		return
	}

	request := response.Request
	target := request.URL.Path
	if request.URL.RawQuery != "" {
		target += "?" + request.URL.RawQuery
	}

	s := &strings.Builder{}
	fmt.Fprintf(s, "# %s\n\n", title)
	if description = strings.TrimSpace(description); description != "" {
		fmt.Fprintf(s, "%s\n\n", description)
	}

	fmt.Fprintf(s, "```http\n%s %s %s\nHost: example.com\n", request.Method, target, request.Proto)
	writeHeaders(s, request.Header)
	fmt.Fprintf(s, "\n%s\n\n", prettyBody(response.BodyRequestString()))

	fmt.Fprintf(s, "%s %s\n", response.Proto, response.Status)
	response.Header.Del("Date")
	writeHeaders(s, response.Header)
	fmt.Fprintf(s, "\n%s\n```\n", prettyBody(response.BodyString()))

	filename := strings.ReplaceAll(strings.ToLower(title), " ", "_") + ".md"
	err := os.WriteFile(filepath.Join(dir, filename), []byte(s.String()), 0666)
	if err != nil {
		fmt.Println("Saving err:", err)
	}
}

func writeHeaders(s *strings.Builder, headers map[string][]string) {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range headers[k] {
			fmt.Fprintf(s, "%s: %s\n", k, v)
		}
	}
}

// prettyBody indents every JSON document in body, one per line as the
// JSON-lines endpoints emit them. Non JSON bodies are returned untouched.
func prettyBody(body string) string {
	lines := []string{}
	d := json.NewDecoder(strings.NewReader(body))
	for d.More() {
		var item json.RawMessage
		if err := d.Decode(&item); err != nil {
			return body
		}
		lines = append(lines, strings.TrimSpace(string(pretty.Pretty(item))))
	}
	return strings.Join(lines, "\n")
}
