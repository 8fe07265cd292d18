package install

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func releasesServer(t *testing.T, releases map[string]Release) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/releases/latest", func(w http.ResponseWriter, _ *http.Request) {
		rel, ok := releases["latest"]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(rel))
	})
	mux.HandleFunc("/releases/tags/", func(w http.ResponseWriter, r *http.Request) {
		tag := r.URL.Path[len("/releases/tags/"):]
		rel, ok := releases[tag]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(rel))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestLatestVersion(t *testing.T) {
	srv := releasesServer(t, map[string]Release{
		"latest": {TagName: "v2.36.0"},
	})
	c := NewClient(WithReleasesURL(srv.URL + "/releases"))

	version, err := c.LatestVersion(context.Background())
	require.NoError(t, err)
	require.Equal(t, "2.36.0", version)
}

func TestGetRelease(t *testing.T) {
	srv := releasesServer(t, map[string]Release{
		"v2.34.1": {
			TagName: "v2.34.1",
			Assets:  []Asset{{Name: "cmdstan-2.34.1.tar.gz", Size: 42}},
		},
	})
	c := NewClient(WithReleasesURL(srv.URL + "/releases"))

	// Both tag and bare version forms resolve.
	rel, err := c.GetRelease(context.Background(), "2.34.1")
	require.NoError(t, err)
	require.Equal(t, "v2.34.1", rel.TagName)

	rel, err = c.GetRelease(context.Background(), "v2.34.1")
	require.NoError(t, err)
	require.Len(t, rel.Assets, 1)
}

func TestGetReleaseNotFound(t *testing.T) {
	srv := releasesServer(t, nil)
	c := NewClient(WithReleasesURL(srv.URL + "/releases"))

	_, err := c.GetRelease(context.Background(), "9.99.9")
	require.Error(t, err)

	var re *RetrieveError
	require.True(t, errors.As(err, &re))
	require.Equal(t, "9.99.9", re.Version)
	require.Contains(t, err.Error(), "version 9.99.9 not available from github.com")
}

func TestGetReleaseInvalidVersion(t *testing.T) {
	c := NewClient(WithReleasesURL("http://127.0.0.1:1/releases"))

	// Validation fails before any request is made.
	_, err := c.GetRelease(context.Background(), "not-a-version")
	var re *RetrieveError
	require.True(t, errors.As(err, &re))
	require.Contains(t, err.Error(), "invalid version tag")
}

func TestGetReleaseRetriesTransientFailure(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/releases/tags/v2.34.1", func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(Release{TagName: "v2.34.1"}))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := NewClient(WithReleasesURL(srv.URL + "/releases"))
	rel, err := c.GetRelease(context.Background(), "2.34.1")
	require.NoError(t, err)
	require.Equal(t, "v2.34.1", rel.TagName)
	require.Equal(t, int32(2), calls.Load())
}

func TestGetReleaseDoesNotRetryClientError(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/releases/tags/v2.34.1", func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := NewClient(WithReleasesURL(srv.URL + "/releases"))
	_, err := c.GetRelease(context.Background(), "2.34.1")
	require.Error(t, err)
	require.Equal(t, int32(1), calls.Load())
}

func TestIsVersionAvailable(t *testing.T) {
	srv := releasesServer(t, map[string]Release{
		"v2.34.1": {TagName: "v2.34.1"},
	})
	c := NewClient(WithReleasesURL(srv.URL + "/releases"))

	ok, err := c.IsVersionAvailable(context.Background(), "2.34.1")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = c.IsVersionAvailable(context.Background(), "9.99.9")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = c.IsVersionAvailable(context.Background(), "not-a-version")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFindArchive(t *testing.T) {
	rel := &Release{
		TagName: "v2.34.1",
		Assets: []Asset{
			{Name: "checksums.txt"},
			{Name: "cmdstan-2.34.1.tar.gz", Size: 99},
		},
	}
	asset, err := FindArchive(rel)
	require.NoError(t, err)
	require.Equal(t, "cmdstan-2.34.1.tar.gz", asset.Name)

	_, err = FindArchive(&Release{TagName: "v2.34.1"})
	require.Error(t, err)
}
