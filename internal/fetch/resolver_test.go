package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"diagbench/internal/collectors"
	"diagbench/internal/models"
	"diagbench/internal/util"
)

const resolverFixture = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/2401.01234v1</id>
    <title>Deep Diagram Understanding</title>
    <summary>We study diagrams.</summary>
    <published>2024-01-05T10:00:00Z</published>
    <author><name>Ada Lovelace</name></author>
    <link title="pdf" href="http://arxiv.org/pdf/2401.01234v1" rel="related" type="application/pdf"/>
  </entry>
</feed>`

const emptyFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom"></feed>`

func TestResolveByTitle(t *testing.T) {
	var lastQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lastQuery = r.URL.Query().Get("search_query")
		fmt.Fprint(w, resolverFixture)
	}))
	defer srv.Close()

	r := NewArxivResolver(collectors.NewAPICollector(srv.Client(), 2024, 100).WithBaseURL(srv.URL))
	info, err := r.Resolve(context.Background(), models.PaperCandidate{Title: "Deep Diagram Understanding"})
	require.NoError(t, err)
	require.Contains(t, lastQuery, `ti:"Deep Diagram Understanding"`)
	require.Equal(t, "2401.01234", info.ExternalID)
	require.Equal(t, "http://arxiv.org/pdf/2401.01234v1", info.PDFURL)
	require.Equal(t, []string{"Ada Lovelace"}, info.Authors)
	require.Equal(t, "We study diagrams.", info.Abstract)
}

func TestResolvePrefersIDLookup(t *testing.T) {
	var lastQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lastQuery = r.URL.Query().Get("search_query")
		fmt.Fprint(w, resolverFixture)
	}))
	defer srv.Close()

	r := NewArxivResolver(collectors.NewAPICollector(srv.Client(), 2024, 100).WithBaseURL(srv.URL))
	_, err := r.Resolve(context.Background(), models.PaperCandidate{
		Title:      "Deep Diagram Understanding",
		ExternalID: "2401.01234",
	})
	require.NoError(t, err)
	require.Equal(t, "id:2401.01234", lastQuery)
}

func TestResolveUnknownPaperIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, emptyFeed)
	}))
	defer srv.Close()

	r := NewArxivResolver(collectors.NewAPICollector(srv.Client(), 2024, 100).WithBaseURL(srv.URL))
	_, err := r.Resolve(context.Background(), models.PaperCandidate{Title: "No Such Paper"})
	require.ErrorIs(t, err, util.ErrPermanent)
}
