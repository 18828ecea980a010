package images

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/xdigest/internal/errs"
	"github.com/ibeckermayer/xdigest/internal/llm"
	"github.com/ibeckermayer/xdigest/internal/types"
)

func postWithMedia(id string, engagement int, media ...types.Media) types.Post {
	return types.Post{
		ID:             id,
		ConversationID: id,
		Text:           "post " + id,
		Author:         types.Author{Username: "user" + id},
		LikeCount:      engagement,
		Media:          media,
	}
}

func TestPrioritizeOrdersByEngagement(t *testing.T) {
	posts := []types.Post{
		postWithMedia("low", 1, types.Media{Type: "photo", URL: "https://img/low.jpg"}),
		postWithMedia("high", 100, types.Media{Type: "photo", URL: "https://img/high.jpg"}),
		postWithMedia("mid", 50, types.Media{Type: "photo", URL: "https://img/mid.jpg"}),
	}

	selected := Prioritize(posts, MaxImages, MaxImagesPerPost)
	require.Len(t, selected, 3)
	assert.Equal(t, "high", selected[0].PostID)
	assert.Equal(t, "mid", selected[1].PostID)
	assert.Equal(t, "low", selected[2].PostID)
}

func TestPrioritizePerPostCap(t *testing.T) {
	media := make([]types.Media, 5)
	for i := range media {
		media[i] = types.Media{Type: "photo", URL: "https://img/p.jpg"}
	}
	posts := []types.Post{postWithMedia("1", 10, media...)}

	selected := Prioritize(posts, MaxImages, MaxImagesPerPost)
	assert.Len(t, selected, MaxImagesPerPost)
}

func TestPrioritizeTotalCap(t *testing.T) {
	var posts []types.Post
	for i := 0; i < 30; i++ {
		posts = append(posts, postWithMedia(
			string(rune('a'+i)), i,
			types.Media{Type: "photo", URL: "https://img/x.jpg"},
		))
	}

	selected := Prioritize(posts, MaxImages, MaxImagesPerPost)
	assert.Len(t, selected, MaxImages)
}

func TestPrioritizeVideoUsesPreview(t *testing.T) {
	posts := []types.Post{postWithMedia("1", 10, types.Media{
		Type:       "video",
		URL:        "https://vid/full.mp4",
		PreviewURL: "https://vid/thumb.jpg",
		VideoURL:   "https://vid/full.mp4",
	})}

	selected := Prioritize(posts, MaxImages, MaxImagesPerPost)
	require.Len(t, selected, 1)
	assert.Equal(t, "https://vid/thumb.jpg", selected[0].URL)
}

func TestPrioritizeSkipsUnknownMediaTypes(t *testing.T) {
	posts := []types.Post{postWithMedia("1", 10, types.Media{Type: "gif", URL: "https://img/g.gif"})}
	assert.Empty(t, Prioritize(posts, MaxImages, MaxImagesPerPost))
}

func TestFetchAndEncode(t *testing.T) {
	payload := []byte{0xFF, 0xD8, 0xFF, 0xE0} // JPEG magic
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(payload)
	}))
	defer srv.Close()

	f := NewFetcher(5 * time.Second)
	img, err := f.FetchAndEncode(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", img.MIMEType)
	assert.Equal(t, payload, img.Data)
}

func TestFetchAndEncodeRejectsNonImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>not an image</html>"))
	}))
	defer srv.Close()

	f := NewFetcher(5 * time.Second)
	_, err := f.FetchAndEncode(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.ImageInvalidFormat))
}

func TestFetchAndEncodeRejectsHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := NewFetcher(5 * time.Second)
	_, err := f.FetchAndEncode(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.ImageDownloadFailed))
}

func TestFetchAllSkipsFailuresPreservesOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/bad":
			http.Error(w, "nope", http.StatusInternalServerError)
		case "/a":
			w.Header().Set("Content-Type", "image/png")
			w.Write([]byte("aaa"))
		case "/b":
			w.Header().Set("Content-Type", "image/png")
			w.Write([]byte("bbb"))
		}
	}))
	defer srv.Close()

	f := NewFetcher(5 * time.Second)
	selected := []Selected{
		{PostID: "1", URL: srv.URL + "/a"},
		{PostID: "2", URL: srv.URL + "/bad"},
		{PostID: "3", URL: srv.URL + "/b"},
	}

	imgs := f.FetchAll(context.Background(), selected)
	require.Len(t, imgs, 2)
	assert.Equal(t, []byte("aaa"), imgs[0].Data)
	assert.Equal(t, []byte("bbb"), imgs[1].Data)
}

func TestDescribeOverflowDegradesToPlaceholder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("img"))
	}))
	defer srv.Close()

	f := NewFetcher(5 * time.Second)
	mock := llm.NewMock("a scenic mountain photo")

	descs := f.DescribeOverflow(context.Background(), []string{srv.URL, "http://127.0.0.1:1/unreachable"}, mock)
	require.Len(t, descs, 2)
	assert.Equal(t, "a scenic mountain photo", descs[0])
	assert.Equal(t, "Image unavailable", descs[1])
}

func TestGetStats(t *testing.T) {
	posts := []types.Post{
		postWithMedia("1", 0,
			types.Media{Type: "photo", URL: "a"},
			types.Media{Type: "video", URL: "b", PreviewURL: "bp"},
		),
		postWithMedia("2", 0, types.Media{Type: "photo", URL: "c"}),
		{ID: "3", Text: "no media", Author: types.Author{Username: "x"}},
	}

	s := GetStats(posts)
	assert.Equal(t, 2, s.TotalPhotos)
	assert.Equal(t, 1, s.TotalVideos)
	assert.Equal(t, 2, s.PostsWithMedia)
}
