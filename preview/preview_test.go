package preview_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/imageprep/core"
	apperrors "github.com/Skryldev/imageprep/errors"
	"github.com/Skryldev/imageprep/preview"
)

func file(name string) *core.SourceFile {
	return &core.SourceFile{
		Name:         name,
		ContentType:  "image/png",
		Data:         []byte("data-" + name),
		LastModified: time.UnixMilli(1700000000000),
	}
}

func TestHandleRevokeIsIdempotent(t *testing.T) {
	store := preview.NewObjectStore("")
	h := preview.New(store, file("a.png"), preview.WithoutAutoRevoke())

	assert.True(t, strings.HasPrefix(h.URL(), preview.DefaultBaseURL))
	assert.False(t, h.IsRevoked())
	got, err := store.Get(h.URL())
	require.NoError(t, err)
	assert.Equal(t, "a.png", got.Name)

	h.Revoke()
	h.Revoke()
	assert.True(t, h.IsRevoked())
	assert.Zero(t, store.Len())
	_, err = store.Get(h.URL())
	assert.ErrorIs(t, err, apperrors.ErrRevoked)

	_, err = store.Get(preview.DefaultBaseURL + "never-issued")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestHandleAutoRevokes(t *testing.T) {
	store := preview.NewObjectStore("")
	h := preview.New(store, file("a.png"), preview.WithDelay(10*time.Millisecond))

	require.Eventually(t, h.IsRevoked, time.Second, 5*time.Millisecond)
	assert.Zero(t, store.Len())
}

func TestHandleURLsAreUnique(t *testing.T) {
	store := preview.NewObjectStore("http://localhost/blob/")
	a := preview.New(store, file("a.png"), preview.WithoutAutoRevoke())
	b := preview.New(store, file("a.png"), preview.WithoutAutoRevoke())
	assert.NotEqual(t, a.URL(), b.URL())
	assert.Equal(t, 2, store.Len())
}

func TestManagerReturnsSameHandleForSameFile(t *testing.T) {
	m := preview.NewManager(preview.NewObjectStore(""), 5, preview.WithoutAutoRevoke())
	a := m.Get(file("a.png"))
	b := m.Get(file("a.png"))
	assert.Same(t, a, b)
	assert.Equal(t, 1, m.ActiveCount())
}

func TestManagerEvictsOldestInserted(t *testing.T) {
	store := preview.NewObjectStore("")
	m := preview.NewManager(store, preview.DefaultCapacity, preview.WithoutAutoRevoke())

	handles := make([]*preview.Handle, 0, 51)
	for i := 0; i < 51; i++ {
		handles = append(handles, m.Get(file(fmt.Sprintf("f%02d.png", i))))
	}

	assert.True(t, handles[0].IsRevoked())
	for _, h := range handles[1:] {
		assert.False(t, h.IsRevoked())
	}
	assert.Equal(t, 50, m.ActiveCount())
	assert.Equal(t, 50, store.Len())
}

func TestManagerEvictionIgnoresAccessOrder(t *testing.T) {
	m := preview.NewManager(preview.NewObjectStore(""), 2, preview.WithoutAutoRevoke())
	first := m.Get(file("a"))
	m.Get(file("b"))
	m.Get(file("a")) // access does not refresh position
	m.Get(file("c"))

	assert.True(t, first.IsRevoked())
	assert.Equal(t, 2, m.ActiveCount())
}

func TestManagerDropsExternallyRevoked(t *testing.T) {
	m := preview.NewManager(preview.NewObjectStore(""), 5, preview.WithoutAutoRevoke())
	h := m.Get(file("a"))
	h.Revoke()

	assert.Zero(t, m.ActiveCount())
	again := m.Get(file("a"))
	assert.NotSame(t, h, again)
	assert.False(t, again.IsRevoked())
}

func TestManagerDropsAutoRevoked(t *testing.T) {
	m := preview.NewManager(preview.NewObjectStore(""), 5, preview.WithDelay(10*time.Millisecond))
	m.Get(file("a"))
	m.Get(file("b"))

	require.Eventually(t, func() bool { return m.ActiveCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestManagerRemoveAndCleanup(t *testing.T) {
	store := preview.NewObjectStore("")
	m := preview.NewManager(store, 5, preview.WithoutAutoRevoke())
	a := m.Get(file("a"))
	b := m.Get(file("b"))
	c := m.Get(file("c"))

	m.Remove(file("a"))
	assert.True(t, a.IsRevoked())
	assert.Equal(t, 2, m.ActiveCount())

	m.Cleanup()
	assert.True(t, b.IsRevoked())
	assert.True(t, c.IsRevoked())
	assert.Zero(t, m.ActiveCount())
	assert.Zero(t, store.Len())
}

func TestManagerConcurrentGet(t *testing.T) {
	m := preview.NewManager(preview.NewObjectStore(""), 10, preview.WithoutAutoRevoke())
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.Get(file(fmt.Sprintf("f%d", i%30)))
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, m.ActiveCount(), 10)
}

func upload(t *testing.T, router http.Handler, name string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write(body)
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("last_modified", "1700000000000"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/previews", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandlerRoundTrip(t *testing.T) {
	store := preview.NewObjectStore("/blob/")
	m := preview.NewManager(store, 5, preview.WithoutAutoRevoke())
	router := preview.NewHandler(m, 0).Router()

	png := []byte("\x89PNG\r\n\x1a\n0000000000000000")
	rec := upload(t, router, "pic.png", png)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		URL  string `json:"url"`
		Name string `json:"name"`
		Type string `json:"type"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "pic.png", resp.Name)
	assert.True(t, strings.HasPrefix(resp.URL, "/blob/"))

	again := upload(t, router, "pic.png", png)
	assert.Contains(t, again.Body.String(), resp.URL, "same file identity reuses the handle")

	get := httptest.NewRecorder()
	router.ServeHTTP(get, httptest.NewRequest(http.MethodGet, resp.URL, nil))
	assert.Equal(t, http.StatusOK, get.Code)
	assert.Equal(t, png, get.Body.Bytes())

	del := httptest.NewRecorder()
	router.ServeHTTP(del, httptest.NewRequest(http.MethodDelete, "/previews", nil))
	assert.Equal(t, http.StatusNoContent, del.Code)

	gone := httptest.NewRecorder()
	router.ServeHTTP(gone, httptest.NewRequest(http.MethodGet, resp.URL, nil))
	assert.Equal(t, http.StatusGone, gone.Code)

	unknown := httptest.NewRecorder()
	router.ServeHTTP(unknown, httptest.NewRequest(http.MethodGet, "/blob/unknown", nil))
	assert.Equal(t, http.StatusNotFound, unknown.Code)
}

func TestHandlerRejectsMissingFile(t *testing.T) {
	router := preview.NewHandler(preview.NewManager(preview.NewObjectStore(""), 5), 0).Router()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("other", "x"))
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/previews", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
