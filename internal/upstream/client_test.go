package upstream

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tempmail/gateway/internal/domain"
)

type recordingObserver struct {
	mu    sync.Mutex
	calls []string
}

func (o *recordingObserver) ObserveUpstream(op, outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, op+":"+outcome)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *recordingObserver) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	obs := &recordingObserver{}
	client := NewClient(Config{BaseURL: srv.URL, Timeout: 2 * time.Second}, domain.NewSchemaValidator(), nil, obs)
	return client, obs
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestClient_ListDomains(t *testing.T) {
	client, obs := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/domains", r.URL.Path)
		writeJSON(w, http.StatusOK, `{"success":true,"result":["barid.site","example.com"]}`)
	})

	domains, err := client.ListDomains(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"barid.site", "example.com"}, domains)
	assert.Equal(t, []string{"list_domains:ok"}, obs.calls)
}

func TestClient_ListInbox(t *testing.T) {
	t.Run("正常列表", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/emails/bob@barid.site", r.URL.Path)
			writeJSON(w, http.StatusOK, `{"success":true,"result":[
				{"id":"m1","from_address":"a@x.com","to_address":"bob@barid.site","subject":"hi","received_at":1700000000}
			]}`)
		})

		emails, err := client.ListInbox(context.Background(), "bob@barid.site")
		require.NoError(t, err)
		require.Len(t, emails, 1)
		assert.Equal(t, "m1", emails[0].ID)
		assert.False(t, emails[0].HasAttachments)
	})

	t.Run("success=false 返回空列表", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, `{"success":false,"error":"no emails"}`)
		})

		emails, err := client.ListInbox(context.Background(), "bob@barid.site")
		require.NoError(t, err)
		assert.NotNil(t, emails)
		assert.Empty(t, emails)
	})

	t.Run("结构不合法视为上游不可用", func(t *testing.T) {
		client, obs := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, `{"success":true,"result":[{"id":"m1"}]}`)
		})

		_, err := client.ListInbox(context.Background(), "bob@barid.site")
		assert.ErrorIs(t, err, ErrUnavailable)
		assert.ErrorIs(t, err, domain.ErrSchemaViolation)
		assert.Equal(t, []string{"list_inbox:unavailable"}, obs.calls)
	})
}

func TestClient_StatusClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		kind   error
	}{
		{"404", http.StatusNotFound, ErrNotFound},
		{"400", http.StatusBadRequest, ErrClient},
		{"403", http.StatusForbidden, ErrClient},
		{"429", http.StatusTooManyRequests, ErrClient},
		{"500", http.StatusInternalServerError, ErrUnavailable},
		{"503", http.StatusServiceUnavailable, ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, `{"success":false,"error":"upstream says no"}`)
			})

			_, err := client.GetEmail(context.Background(), "m1")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)
			assert.Equal(t, tt.status, StatusOf(err))
		})
	}
}

func TestClient_GetEmail(t *testing.T) {
	t.Run("正常详情", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/inbox/m1", r.URL.Path)
			writeJSON(w, http.StatusOK, `{"success":true,"result":{
				"id":"m1","from_address":"a","to_address":"b","subject":null,"received_at":1,
				"html_content":"<b>x</b>","text_content":"x"
			}}`)
		})

		email, err := client.GetEmail(context.Background(), "m1")
		require.NoError(t, err)
		assert.Equal(t, "m1", email.ID)
		assert.Equal(t, "x", *email.TextContent)
		assert.Empty(t, email.Attachments)
	})

	t.Run("success=false 视为不存在", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, `{"success":false}`)
		})

		_, err := client.GetEmail(context.Background(), "m1")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("响应不是 JSON", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = io.WriteString(w, "<html>maintenance</html>")
		})

		_, err := client.GetEmail(context.Background(), "m1")
		assert.ErrorIs(t, err, ErrUnavailable)
	})
}

func TestClient_Delete(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		switch r.URL.Path {
		case "/emails/bob@barid.site":
			writeJSON(w, http.StatusOK, `{"success":true,"result":{"deleted_count":3}}`)
		case "/inbox/m1":
			writeJSON(w, http.StatusOK, `{"success":true,"result":null}`)
		case "/inbox/gone":
			writeJSON(w, http.StatusOK, `{"success":false}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	n, err := client.DeleteInbox(context.Background(), "bob@barid.site")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NoError(t, client.DeleteEmail(context.Background(), "m1"))
	assert.ErrorIs(t, client.DeleteEmail(context.Background(), "gone"), ErrNotFound)
}

func TestClient_GetAttachment(t *testing.T) {
	payload := []byte("%PDF-1.7 binary payload")
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/attachments/m1/a1", r.URL.Path)
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="report.pdf"`)
		_, _ = w.Write(payload)
	})

	stream, err := client.GetAttachment(context.Background(), "m1", "a1")
	require.NoError(t, err)
	defer stream.Body.Close()

	body, err := io.ReadAll(stream.Body)
	require.NoError(t, err)
	assert.Equal(t, payload, body)
	assert.Equal(t, "application/pdf", stream.ContentType)
	assert.Equal(t, `attachment; filename="report.pdf"`, stream.ContentDisposition)
}

func TestClient_NoRetry(t *testing.T) {
	var hits int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.ListDomains(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	client := NewClient(Config{BaseURL: base, Timeout: time.Second}, domain.NewSchemaValidator(), nil, nil)

	_, err := client.ListDomains(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 0, StatusOf(err))
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client := NewClient(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, domain.NewSchemaValidator(), nil, nil)

	_, err := client.ListDomains(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}
