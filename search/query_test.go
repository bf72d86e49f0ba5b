package search

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewQuery(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Query
	}{
		{
			name:  "bare terms",
			input: "deploy schedule",
			want:  Query{Terms: "deploy schedule", Limit: 10},
		},
		{
			name:  "chat and sender filters",
			input: "deploy --chat general --from alice",
			want:  Query{Terms: "deploy", ChatID: "general", SenderID: "alice", Limit: 10},
		},
		{
			name:  "explicit limit",
			input: "deploy --limit 25",
			want:  Query{Terms: "deploy", Limit: 25},
		},
		{
			name:  "invalid limit keeps default",
			input: "deploy --limit zero",
			want:  Query{Terms: "deploy", Limit: 10},
		},
		{
			name:  "negative limit keeps default",
			input: "deploy --limit -3",
			want:  Query{Terms: "deploy", Limit: 10},
		},
		{
			name:  "leading slash command is not a term",
			input: "/find deploy --chat general",
			want:  Query{Terms: "deploy", ChatID: "general", Limit: 10},
		},
		{
			name:  "trailing flag without value is a literal term",
			input: "deploy --chat",
			want:  Query{Terms: "deploy --chat", Limit: 10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			got := NewQuery(tt.input)
			req.Equal(tt.want.Terms, got.Terms)
			req.Equal(tt.want.ChatID, got.ChatID)
			req.Equal(tt.want.SenderID, got.SenderID)
			req.Equal(tt.want.Limit, got.Limit)
		})
	}
}
