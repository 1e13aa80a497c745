package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contact-cli/internal/model"
)

func TestBuildBaseQuery(t *testing.T) {
	tests := []struct {
		name     string
		provider model.Provider
		want     string
	}{
		{
			name: "all fields",
			provider: model.Provider{
				FirstName:  "Jane",
				MiddleName: "Q",
				LastName:   "Smith",
				City:       "Springfield",
				StateCode:  "IL",
			},
			want: "Jane Q Smith Springfield IL doctor healthcare provider",
		},
		{
			name: "no middle name",
			provider: model.Provider{
				FirstName: "Jane",
				LastName:  "Smith",
				City:      "Springfield",
				StateCode: "IL",
			},
			want: "Jane Smith Springfield IL doctor healthcare provider",
		},
		{
			name:     "name only",
			provider: model.Provider{FirstName: "Jane", LastName: "Smith"},
			want:     "Jane Smith doctor healthcare provider",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildBaseQuery(tt.provider))
		})
	}
}

func TestBuildQueries(t *testing.T) {
	p := model.Provider{FirstName: "Jane", LastName: "Smith", City: "Springfield", StateCode: "IL"}
	queries := BuildQueries(p)

	require.Len(t, queries, TierCount)
	assert.Equal(t, "Jane Smith Springfield IL doctor healthcare provider (site:doximity.com OR site:npiprofile.com)", queries[0])
	assert.Equal(t, "Jane Smith Springfield IL doctor healthcare provider (site:.gov OR site:.edu)", queries[1])
	assert.Equal(t, "Jane Smith Springfield IL doctor healthcare provider contact information", queries[2])

	// Role keywords appear in every tier.
	for _, q := range queries {
		assert.Contains(t, q, "doctor healthcare provider")
	}
}

func TestIsBlockedURL(t *testing.T) {
	assert.True(t, IsBlockedURL("https://www.facebook.com/drjane"))
	assert.True(t, IsBlockedURL("https://WWW.LinkedIn.com/in/jane"))
	assert.True(t, IsBlockedURL("https://x.com/jane"))
	assert.False(t, IsBlockedURL("https://www.doximity.com/pub/jane"))
	assert.False(t, IsBlockedURL("https://springfieldclinic.com/jane"))
}

func TestRankURL(t *testing.T) {
	tests := []struct {
		url  string
		want int
	}{
		{"https://www.doximity.com/pub/jane", 0},
		{"https://npiprofile.com/npi/1", 0},
		{"https://il.gov/license", 1},
		{"https://medicine.university.edu/faculty/jane", 2},
		{"https://ama.org/member/jane", 3},
		{"https://springfieldhospital.com/jane", 4},
		{"https://stjohnsclinic.com/providers", 4},
		{"https://example.com/jane", 5},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, RankURL(tt.url))
		})
	}
}
