package crawler

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCandidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{name: "https", url: "https://www.ag.gov.au/families"},
		{name: "http with spaces", url: "  http://legalaid.vic.gov.au/  "},
		{name: "empty", url: " ", wantErr: true},
		{name: "relative", url: "/families", wantErr: true},
		{name: "mailto", url: "mailto:help@ag.gov.au", wantErr: true},
		{name: "no host", url: "https:///path", wantErr: true},
		{name: "unparseable", url: "http://%zz", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			c, err := NewCandidate(tc.url, " Title ", " Desc ", 4)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalidCandidate)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Title", c.Title)
			assert.Equal(t, "Desc", c.Description)
			assert.Equal(t, 4, c.Position)
		})
	}
}

func TestCandidateHost(t *testing.T) {
	t.Parallel()

	c, err := NewCandidate("https://WWW.LegalAid.vic.gov.au:443/x", "", "", 1)
	require.NoError(t, err)
	assert.Equal(t, "www.legalaid.vic.gov.au", c.Host())
}

func TestArticleCopies(t *testing.T) {
	t.Parallel()

	base := Article{URL: "https://ag.gov.au", Body: "  "}
	assert.True(t, base.Empty())

	c := Candidate{Description: "desc", Position: 7}
	tagged := base.WithMethod(MethodCacheMirror).WithCandidate(c).WithCategory("general_legal")
	assert.Equal(t, MethodCacheMirror, tagged.Method)
	assert.Equal(t, "desc", tagged.Description)
	assert.Equal(t, 7, tagged.SourceRank)
	assert.Equal(t, "general_legal", tagged.Category)
	assert.Empty(t, base.Method, "receiver must not be modified")
}

func TestArticleJSONFieldNames(t *testing.T) {
	t.Parallel()

	a := Article{
		URL:         "https://ag.gov.au",
		Title:       "T",
		Body:        "body",
		WordCount:   1,
		CharCount:   4,
		Method:      MethodDirect,
		SourceRank:  2,
		ExtractedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	raw, err := json.Marshal(a)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	for _, key := range []string{"content", "wordCount", "contentLength", "extractionMethod", "originalPosition", "extractedAt"} {
		assert.Contains(t, fields, key)
	}
	assert.NotContains(t, fields, "category")
	assert.Equal(t, "direct", fields["extractionMethod"])
}

func TestFetchResponseOK(t *testing.T) {
	t.Parallel()

	assert.True(t, FetchResponse{StatusCode: http.StatusOK, Body: []byte("x")}.OK())
	assert.False(t, FetchResponse{StatusCode: http.StatusOK}.OK())
	assert.False(t, FetchResponse{StatusCode: http.StatusForbidden, Body: []byte("x")}.OK())
}
