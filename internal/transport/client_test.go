package transport

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/micumarket/composer/internal/delivery"
	"github.com/micumarket/composer/shared/domain"
)

func TestSend_Success(t *testing.T) {
	var gotHeader, gotContent, gotToken string
	var gotFiles []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/conversations/42/messages", r.URL.Path)
		gotHeader = r.Header.Get("X-Requested-With")

		require.NoError(t, r.ParseMultipartForm(10<<20))
		gotContent = r.FormValue("content")
		gotToken = r.FormValue("csrf_token")
		for _, fh := range r.MultipartForm.File["attachments"] {
			gotFiles = append(gotFiles, fh.Filename)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"success": true,
			"message": {
				"id": 9,
				"content": "hello",
				"created_at": "2025-03-09T14:30:00Z",
				"attachments": [{"url": "/media/p.jpg", "filename": "p.jpg", "file_type": "image"}]
			}
		}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "42", StaticToken("tok-123"))
	msg, err := c.Send(context.Background(), domain.OutgoingMessage{
		Content: "hello",
		Files: []domain.SourceFile{
			{Name: "p.jpg", MimeType: "image/jpeg", Data: []byte{0xff, 0xd8}},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "XMLHttpRequest", gotHeader)
	assert.Equal(t, "hello", gotContent)
	assert.Equal(t, "tok-123", gotToken)
	assert.Equal(t, []string{"p.jpg"}, gotFiles)

	assert.Equal(t, int64(9), msg.Id)
	assert.Equal(t, "hello", msg.Content)
	assert.Equal(t, time.Date(2025, 3, 9, 14, 30, 0, 0, time.UTC), msg.CreatedAt)
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, domain.KindImage, msg.Attachments[0].Kind)
}

func TestSend_ApplicationFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success": false, "error": "quota exceeded"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "1", StaticToken(""))
	_, err := c.Send(context.Background(), domain.OutgoingMessage{Content: "x"})

	var rejection *delivery.Rejection
	require.ErrorAs(t, err, &rejection)
	assert.Equal(t, "quota exceeded", rejection.Reason)
}

func TestSend_FailureWithoutReason(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": false}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "1", StaticToken(""))
	_, err := c.Send(context.Background(), domain.OutgoingMessage{Content: "x"})

	var rejection *delivery.Rejection
	require.ErrorAs(t, err, &rejection)
	assert.Equal(t, "unknown error", rejection.Reason)
}

func TestSend_NetworkError(t *testing.T) {
	c := New("http://127.0.0.1:1", "1", StaticToken(""))
	_, err := c.Send(context.Background(), domain.OutgoingMessage{Content: "x"})
	require.Error(t, err)
	assert.NotErrorAs(t, err, new(*delivery.Rejection))
}

func TestSend_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>gateway error</html>"))
	}))
	defer srv.Close()

	c := New(srv.URL, "1", StaticToken(""))
	_, err := c.Send(context.Background(), domain.OutgoingMessage{Content: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestSend_NoTokenOmitsField(t *testing.T) {
	var hasToken bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, hasToken = r.MultipartForm.Value["csrf_token"]
		w.Write([]byte(`{"success": true, "message": {"id": 1, "content": "x", "created_at": "2025-01-01T00:00:00Z"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "1", ChainTokenSource())
	_, err := c.Send(context.Background(), domain.OutgoingMessage{Content: "x"})
	require.NoError(t, err)
	assert.False(t, hasToken)
}

func TestChainTokenSource_PreferenceOrder(t *testing.T) {
	t.Run("first source wins", func(t *testing.T) {
		src := ChainTokenSource(StaticToken("from-field"), StaticToken("from-meta"), StaticToken("from-cookie"))
		token, ok := src.Token()
		require.True(t, ok)
		assert.Equal(t, "from-field", token)
	})

	t.Run("falls through empty sources", func(t *testing.T) {
		src := ChainTokenSource(StaticToken(""), nil, StaticToken("from-cookie"))
		token, ok := src.Token()
		require.True(t, ok)
		assert.Equal(t, "from-cookie", token)
	})

	t.Run("no token anywhere", func(t *testing.T) {
		_, ok := ChainTokenSource(StaticToken("")).Token()
		assert.False(t, ok)
	})
}

func TestCookieToken(t *testing.T) {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	u, _ := url.Parse("http://backend.local")
	jar.SetCookies(u, []*http.Cookie{{Name: "csrftoken", Value: "cookie-tok"}})

	token, ok := CookieToken(jar, "http://backend.local", "csrftoken").Token()
	require.True(t, ok)
	assert.Equal(t, "cookie-tok", token)

	_, ok = CookieToken(jar, "http://backend.local", "missing").Token()
	assert.False(t, ok)

	_, ok = CookieToken(nil, "http://backend.local", "csrftoken").Token()
	assert.False(t, ok)
}
