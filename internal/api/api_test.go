package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pribylovaa/kiosk-admin/internal/authclient"
	"github.com/pribylovaa/kiosk-admin/internal/models"
	"github.com/pribylovaa/kiosk-admin/internal/session"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	method string
	path   string
	query  url.Values
	in     any
}

// fakeDoer записывает вызовы и отвечает заранее заданным JSON.
type fakeDoer struct {
	calls []call
	reply string
	err   error
}

func (f *fakeDoer) DoJSON(_ context.Context, method, path string, query url.Values, in, out any) error {
	f.calls = append(f.calls, call{method: method, path: path, query: query, in: in})
	if f.err != nil {
		return f.err
	}
	if out != nil && f.reply != "" {
		return json.Unmarshal([]byte(f.reply), out)
	}
	return nil
}

func TestReadOnly_ListMapsParams(t *testing.T) {
	d := &fakeDoer{reply: `{"items":[{"id":"` + uuid.Nil.String() + `","status":"online"}],"total":41,"page":3,"page_size":20}`}
	a := New(d)

	page, err := a.Kiosks.List(context.Background(), models.ListParams{
		Page: 3, PageSize: 20, Sort: "name", Order: models.SortDesc,
		Filters: map[string]string{"status": "online"},
	})
	require.NoError(t, err)
	require.Equal(t, 41, page.Total)
	require.Len(t, page.Items, 1)
	require.Equal(t, models.KioskOnline, page.Items[0].Status)

	require.Len(t, d.calls, 1)
	c := d.calls[0]
	require.Equal(t, http.MethodGet, c.method)
	require.Equal(t, "/kiosks", c.path)
	require.Equal(t, "3", c.query.Get("page"))
	require.Equal(t, "20", c.query.Get("page_size"))
	require.Equal(t, "name", c.query.Get("sort"))
	require.Equal(t, "desc", c.query.Get("order"))
	require.Equal(t, "online", c.query.Get("status"))
}

func TestReadOnly_EmptyPageHasNonNilItems(t *testing.T) {
	a := New(&fakeDoer{reply: `{"total":0}`})

	page, err := a.SyncEvents.List(context.Background(), models.ListParams{})
	require.NoError(t, err)
	require.NotNil(t, page.Items)
	require.Empty(t, page.Items)
}

func TestResource_CreateValidatesBeforeSending(t *testing.T) {
	d := &fakeDoer{}
	a := New(d)

	_, err := a.Products.Create(context.Background(), models.ProductInput{Name: "", Category: "coffee", Price: decimal.Zero})

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	fields := map[string]string{}
	for _, f := range ve.Fields {
		fields[f.Field] = f.Tag
	}
	require.Equal(t, "required", fields["name"])
	require.Equal(t, "required", fields["price"])
	require.Empty(t, d.calls, "invalid payload must not reach upstream")
}

func TestResource_ValidationNestedFields(t *testing.T) {
	a := New(&fakeDoer{})

	_, err := a.Workflows.Create(context.Background(), models.WorkflowInput{
		Name:  "morning",
		Steps: []models.WorkflowStepInput{{Name: "grind", Action: ""}},
	})

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, "steps[0].action", ve.Fields[0].Field)
	require.Contains(t, ve.Error(), "steps[0].action")
}

func TestResource_CRUDPaths(t *testing.T) {
	id := uuid.New()
	d := &fakeDoer{reply: `{"id":"` + id.String() + `","name":"latte","price":"3.50"}`}
	a := New(d)
	ctx := context.Background()

	in := models.ProductInput{Name: "latte", Category: "coffee", Price: decimal.RequireFromString("3.50")}

	p, err := a.Products.Create(ctx, in)
	require.NoError(t, err)
	require.Equal(t, id, p.ID)
	require.True(t, decimal.RequireFromString("3.5").Equal(p.Price))

	_, err = a.Products.Get(ctx, id)
	require.NoError(t, err)

	_, err = a.Products.Update(ctx, id, in)
	require.NoError(t, err)

	require.NoError(t, a.Products.Delete(ctx, id))

	want := []struct{ method, path string }{
		{http.MethodPost, "/products"},
		{http.MethodGet, "/products/" + id.String()},
		{http.MethodPatch, "/products/" + id.String()},
		{http.MethodDelete, "/products/" + id.String()},
	}
	require.Len(t, d.calls, len(want))
	for i, w := range want {
		require.Equal(t, w.method, d.calls[i].method)
		require.Equal(t, w.path, d.calls[i].path)
	}
	require.Equal(t, in, d.calls[0].in)
}

func TestOrders_UpdateStatus(t *testing.T) {
	id := uuid.New()
	d := &fakeDoer{reply: `{"id":"` + id.String() + `","status":"refunded"}`}
	a := New(d)

	_, err := a.Orders.UpdateStatus(context.Background(), id, models.OrderStatusInput{Status: "lost"})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	require.Empty(t, d.calls)

	o, err := a.Orders.UpdateStatus(context.Background(), id, models.OrderStatusInput{Status: models.OrderRefunded, Reason: "spilled"})
	require.NoError(t, err)
	require.Equal(t, models.OrderRefunded, o.Status)
	require.Equal(t, "/orders/"+id.String()+"/status", d.calls[0].path)
	require.Equal(t, http.MethodPatch, d.calls[0].method)
}

func TestResource_WrapsUpstreamError(t *testing.T) {
	boom := errors.New("boom")
	a := New(&fakeDoer{err: boom})

	err := a.Stores.Delete(context.Background(), uuid.New())
	require.ErrorIs(t, err, boom)
	require.Contains(t, err.Error(), "api.stores.Delete")
}

// Ресурс поверх настоящего клиента: токен подставляется, 404 приходит как *ResponseError.
func TestResource_OverAuthClient(t *testing.T) {
	id := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer a1", r.Header.Get("Authorization"))
		if r.URL.Path == "/devices/"+id.String() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":"not_found","message":"device not found"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[],"total":0,"page":1,"page_size":50}`))
	}))
	defer srv.Close()

	st := session.NewMemoryStore()
	require.NoError(t, st.Set(context.Background(), models.TokenPair{AccessToken: "a1", RefreshToken: "r1", AccessExpiresAt: time.Now().Add(time.Hour)}))

	c, err := authclient.New(authclient.Options{BaseURL: srv.URL, Store: st, Transport: http.DefaultTransport})
	require.NoError(t, err)
	defer c.Close()

	a := New(c)

	page, err := a.Devices.List(context.Background(), models.ListParams{PageSize: 50})
	require.NoError(t, err)
	require.Equal(t, 50, page.PageSize)

	_, err = a.Devices.Get(context.Background(), id)
	var re *authclient.ResponseError
	require.ErrorAs(t, err, &re)
	require.Equal(t, http.StatusNotFound, re.Status)
	require.Equal(t, "device not found", re.Message)
}
