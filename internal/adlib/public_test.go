package adlib

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePage struct {
	responses []InterceptedResponse
	html      string
	htmlErr   error
	navErr    error

	navigatedTo string
	userAgent   string
	evals       int
	closed      bool
}

func (p *fakePage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	p.navigatedTo = url
	return p.navErr
}

func (p *fakePage) WaitNetworkIdle(ctx context.Context, timeout time.Duration) error {
	return context.DeadlineExceeded
}

func (p *fakePage) Eval(ctx context.Context, script string) error {
	p.evals++
	return nil
}

func (p *fakePage) Responses() []InterceptedResponse { return p.responses }

func (p *fakePage) HTML(ctx context.Context) (string, error) { return p.html, p.htmlErr }

func (p *fakePage) Close() error {
	p.closed = true
	return nil
}

type fakeDriver struct {
	page     *fakePage
	checkErr error
	openErr  error
}

func (d *fakeDriver) Check() error { return d.checkErr }

func (d *fakeDriver) Open(ctx context.Context, userAgent string) (Page, error) {
	if d.openErr != nil {
		return nil, d.openErr
	}
	d.page.userAgent = userAgent
	return d.page, nil
}

func response(contentType, resourceType, body string) InterceptedResponse {
	return InterceptedResponse{
		URL:          "https://www.facebook.com/api/graphql/",
		Status:       200,
		ContentType:  contentType,
		ResourceType: resourceType,
		ReadBody:     func() ([]byte, error) { return []byte(body), nil },
	}
}

func testPublicFetcher(t *testing.T, d Driver) *PublicFetcher {
	t.Helper()
	spec, err := NewSearchSpec("acme", []string{"US"}, 100, 3)
	require.NoError(t, err)
	return NewPublicFetcher(spec, d, PublicOptions{
		ScrollPause: time.Millisecond,
		SettlePause: time.Millisecond,
	})
}

func fetchPublic(t *testing.T, d Driver) ([]Batch, *Stream) {
	t.Helper()
	s, err := testPublicFetcher(t, d).Fetch(context.Background(), time.Second)
	require.NoError(t, err)
	return s.Collect(), s
}

func TestPublicFetchEmitsJSONInObservationOrder(t *testing.T) {
	page := &fakePage{responses: []InterceptedResponse{
		response("application/json", "xhr", `{"data": [{"id": "1"}, {"id": "2"}]}`),
		response("image/png", "image", `not looked at`),
		response("text/html", "fetch", `for (;;);[{"id": "3"}]`),
		response("application/json; charset=utf-8", "script", `{"data": []}`),
		response("application/json", "xhr", `{"payload": {"data": []}}`),
		response("application/json", "xhr", `{broken`),
		response("text/javascript", "fetch", `[]`),
		response("application/json", "xhr", `[{"id": "4"}]`),
	}}
	d := &fakeDriver{page: page}

	batches, s := fetchPublic(t, d)

	require.Len(t, batches, 4)
	assert.Equal(t, Batch{{"id": "1"}, {"id": "2"}}, batches[0])
	assert.Equal(t, Batch{{"id": "3"}}, batches[1])
	assert.Empty(t, batches[2])
	assert.Equal(t, Batch{{"id": "4"}}, batches[3])
	assert.Equal(t, ReasonEndOfData, s.Reason())

	assert.Equal(t, UserAgent, page.userAgent)
	assert.Equal(t, testPublicFetcher(t, d).spec.PublicURL(), page.navigatedTo)
	assert.Equal(t, DefaultScrolls, page.evals)
	assert.True(t, page.closed)
}

func TestPublicFetchSurvivesBadResponses(t *testing.T) {
	page := &fakePage{responses: []InterceptedResponse{
		{ContentType: "application/json", ReadBody: func() ([]byte, error) { return nil, errors.New("body evicted") }},
		{ContentType: "application/json", ReadBody: func() ([]byte, error) { panic("boom") }},
		{ContentType: "application/json"},
		response("application/json", "xhr", `{"data": [{"id": "ok"}]}`),
	}}

	batches, _ := fetchPublic(t, &fakeDriver{page: page})

	require.Len(t, batches, 1)
	assert.Equal(t, "ok", batches[0][0].String("id"))
}

func TestPublicFetchFallsBackToDOM(t *testing.T) {
	page := &fakePage{
		responses: []InterceptedResponse{response("text/html", "document", "<html></html>")},
		html: `<html><body>
			<div><span>Acme Shoes</span><a href="/ads/library/?id=111">See ad details</a></div>
			<div><a href="https://www.facebook.com/ads/library/?id=222">Other ad</a></div>
			<a href="/help">Help</a>
		</body></html>`,
	}

	batches, s := fetchPublic(t, &fakeDriver{page: page})

	require.Len(t, batches, 1)
	assert.Equal(t, Batch{
		{FieldPageName: "Acme Shoes", FieldSnapshotURL: "https://www.facebook.com/ads/library/?id=111"},
		{FieldPageName: "Other ad", FieldSnapshotURL: "https://www.facebook.com/ads/library/?id=222"},
	}, batches[0])
	assert.Equal(t, ReasonEndOfData, s.Reason())
	assert.True(t, page.closed)
}

func TestPublicFetchEmptyDOMEmitsNothing(t *testing.T) {
	page := &fakePage{html: `<html><body><p>No ads match</p></body></html>`}

	batches, _ := fetchPublic(t, &fakeDriver{page: page})
	assert.Empty(t, batches)
	assert.True(t, page.closed)
}

func TestPublicFetchNavigationFailureReleasesBrowser(t *testing.T) {
	page := &fakePage{navErr: errors.New("net::ERR_NAME_NOT_RESOLVED")}

	batches, s := fetchPublic(t, &fakeDriver{page: page})

	assert.Empty(t, batches)
	assert.Equal(t, ReasonNavigationFailed, s.Reason())
	assert.True(t, page.closed)
}

func TestPublicFetchConsumerStopReleasesBrowser(t *testing.T) {
	page := &fakePage{responses: []InterceptedResponse{
		response("application/json", "xhr", `[{"id": "1"}]`),
		response("application/json", "xhr", `[{"id": "2"}]`),
	}}
	s, err := testPublicFetcher(t, &fakeDriver{page: page}).Fetch(context.Background(), time.Second)
	require.NoError(t, err)

	for range s.All() {
		break
	}
	assert.Equal(t, ReasonStopped, s.Reason())
	assert.True(t, page.closed)
}

func TestPublicFetchCapabilityUnavailable(t *testing.T) {
	page := &fakePage{}
	d := &fakeDriver{page: page, checkErr: errors.New("chrome not found")}

	s, err := testPublicFetcher(t, d).Fetch(context.Background(), time.Second)

	assert.Nil(t, s)
	assert.ErrorIs(t, err, ErrBrowserUnavailable)
	assert.Empty(t, page.navigatedTo)

	_, err = testPublicFetcher(t, nil).Fetch(context.Background(), time.Second)
	assert.ErrorIs(t, err, ErrBrowserUnavailable)
}

func TestPublicFetchOpenFailure(t *testing.T) {
	d := &fakeDriver{page: &fakePage{}, openErr: errors.New("launch failed")}

	batches, s := fetchPublic(t, d)
	assert.Empty(t, batches)
	assert.Equal(t, ReasonBrowserFailed, s.Reason())
}
