package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPascalCase(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"blog post Json", "BlogPostJson"},
		{"posts Json", "PostsJson"},
		{"my-data.v2 Json", "MyDataV2Json"},
		{"XMLFeed Json", "XmlFeedJson"},
		{"camelCase Json", "CamelCaseJson"},
		{"snake_case_name", "SnakeCaseName"},
		{"  leading and trailing  ", "LeadingAndTrailing"},
		{"2024 archive", "2024Archive"},
		{"", ""},
		{"---", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, PascalCase(tt.in))
		})
	}
}
