package search

import (
	"strconv"
	"strings"
)

// Query is the structured form of a search request. It decouples the raw
// user input from the index engine.
type Query struct {
	RawInput string
	Terms    string
	ChatID   string
	SenderID string
	Limit    int
}

// NewQuery parses command-line style arguments out of a raw string.
// Example: /find deploy schedule --chat 42 --from alice --limit 20
func NewQuery(input string) Query {
	query := Query{RawInput: input, Limit: 10}

	parts := strings.Fields(input)
	var textTerms []string

	for i := 0; i < len(parts); i++ {
		part := parts[i]

		if strings.HasPrefix(part, "--") && i+1 < len(parts) {
			key := strings.TrimPrefix(part, "--")
			val := parts[i+1]
			switch key {
			case "chat":
				query.ChatID = val
			case "from":
				query.SenderID = val
			case "limit":
				if n, err := strconv.Atoi(val); err == nil && n > 0 {
					query.Limit = n
				}
			}
			i++
			continue
		}

		if !strings.HasPrefix(part, "/") {
			textTerms = append(textTerms, part)
		}
	}

	query.Terms = strings.Join(textTerms, " ")
	return query
}
