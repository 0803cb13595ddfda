package archive

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/xarchive/internal/store"
	"github.com/ibeckermayer/xarchive/internal/types"
)

func TestNormalize_LegacyRecords(t *testing.T) {
	testCases := []struct {
		name string
		rec  Record
		want types.Post
	}{
		{
			name: "timestamp instead of date",
			rec: Record{
				"id":        "1",
				"author":    "jack",
				"timestamp": "2024-05-13T17:02:11.000Z",
				"text":      "hi",
				"url":       "https://x.com/jack/status/1",
			},
			want: types.Post{ID: "1", Author: "jack", ScrapedFrom: "jack", Date: "2024-05-13", Text: "hi", URL: "https://x.com/jack/status/1"},
		},
		{
			name: "username instead of author",
			rec:  Record{"id": "2", "username": "elonmusk", "date": "2024-05-13"},
			want: types.Post{ID: "2", Author: "elonmusk", ScrapedFrom: "jack", Date: "2024-05-13", IsRetweet: true},
		},
		{
			name: "author from url",
			rec:  Record{"url": "https://x.com/naval/status/3"},
			want: types.Post{ID: "3", Author: "naval", ScrapedFrom: "jack", Date: types.UnknownDate, IsRetweet: true, URL: "https://x.com/naval/status/3"},
		},
		{
			name: "nothing recoverable",
			rec:  Record{"date": "None", "text": nil},
			want: types.Post{ID: Unknown, Author: Unknown, ScrapedFrom: "jack", Date: types.UnknownDate, IsRetweet: true},
		},
		{
			name: "explicit flags win",
			rec: Record{
				"id": "4", "author": "elonmusk", "scraped_from": "elonmusk", "date": "2024-01-01",
				"is_retweet": false, "is_reply": true, "has_media": "true",
			},
			want: types.Post{ID: "4", Author: "elonmusk", ScrapedFrom: "elonmusk", Date: "2024-01-01", IsReply: true, HasMedia: true},
		},
		{
			name: "numeric id",
			rec:  Record{"id": json.Number("1790000000000000000"), "author": "jack", "date": "2024-01-01"},
			want: types.Post{ID: "1790000000000000000", Author: "jack", ScrapedFrom: "jack", Date: "2024-01-01"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Normalize(tc.rec, "jack")
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("Normalize() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	records := []Record{
		{"id": "1", "author": "jack", "timestamp": "2024-05-13T17:02:11.000Z"},
		{"username": "elonmusk", "text": "  padded  "},
		{"url": "https://x.com/naval/status/3", "is_reply": 1.0},
		{},
	}
	for _, rec := range records {
		once := Normalize(rec, "jack")
		twice := Normalize(ToRecord(once), "jack")
		require.Equal(t, once, twice)

		// Through a real JSON round trip as well.
		data, err := json.Marshal(once)
		require.NoError(t, err)
		posts, err := Parse([]byte("["+string(data)+"]"), "someone-else")
		require.NoError(t, err)
		require.Equal(t, once, posts[0])
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jack_archive.json")
	raw := `[
		{"id": "1", "author": "jack", "date": "2024-05-13", "text": "a"},
		{"id": "2", "timestamp": "2024-05-12T01:00:00Z", "url": "https://x.com/elonmusk/status/2"},
		null
	]`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0644))

	a, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "jack", a.Target)
	require.Len(t, a.Posts, 2)
	require.Equal(t, "elonmusk", a.Posts[1].Author)
	require.Equal(t, "2024-05-12", a.Posts[1].Date)
	require.True(t, a.Posts[1].IsRetweet)

	// The file on disk is untouched.
	after, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, raw, string(after))
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing_archive.json"))
	require.Error(t, err)

	bad := filepath.Join(dir, "bad_archive.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"id": "1"}`), 0644))
	_, err = Load(bad)
	require.Error(t, err)
}

func TestLoad_Checkpoint(t *testing.T) {
	dir := t.TempDir()
	fs := store.NewFileStore(dir)
	require.NoError(t, fs.WriteCheckpoint("jack", []types.Post{
		{ID: "1", Author: "jack", ScrapedFrom: "jack", Date: types.UnknownDate},
	}))

	a, err := Load(fs.CheckpointPath("jack"))
	require.NoError(t, err)
	require.Equal(t, "jack", a.Target)
	require.Equal(t, []types.Post{{ID: "1", Author: "jack", ScrapedFrom: "jack", Date: types.UnknownDate}}, a.Posts)
}

func TestTargetFromPath(t *testing.T) {
	require.Equal(t, "jack", TargetFromPath("/data/jack_archive.json"))
	require.Equal(t, "jack", TargetFromPath("autosave_jack.json"))
	require.Equal(t, "export", TargetFromPath("export.json"))
}
