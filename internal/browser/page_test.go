package browser

import (
	"fmt"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ysmood/gson"
)

func testPage(bodies map[proto.NetworkRequestID]string) *Page {
	p := newPage(nil, nil)
	p.bodyWait = time.Second
	p.fetch = func(id proto.NetworkRequestID) ([]byte, error) {
		b, ok := bodies[id]
		if !ok {
			return nil, fmt.Errorf("no body for %s", id)
		}
		return []byte(b), nil
	}
	return p
}

func received(id, url string, typ proto.NetworkResourceType) *proto.NetworkResponseReceived {
	return &proto.NetworkResponseReceived{
		RequestID: proto.NetworkRequestID(id),
		Type:      typ,
		Response: &proto.NetworkResponse{
			URL:      url,
			Status:   200,
			MIMEType: "application/json",
		},
	}
}

func finished(id string) *proto.NetworkLoadingFinished {
	return &proto.NetworkLoadingFinished{RequestID: proto.NetworkRequestID(id)}
}

func TestResponsesKeepArrivalOrder(t *testing.T) {
	p := testPage(map[proto.NetworkRequestID]string{
		"A": `{"data":[{"id":"a"}]}`,
		"B": `{"data":[{"id":"b"}]}`,
	})

	// A's headers arrive first but its body completes last.
	p.onResponse(received("A", "https://x.test/a", proto.NetworkResourceTypeXHR))
	p.onResponse(received("B", "https://x.test/b", proto.NetworkResourceTypeFetch))
	p.onFinished(finished("B"))
	p.onFinished(finished("A"))

	got := p.Responses()
	require.Len(t, got, 2)
	assert.Equal(t, "https://x.test/a", got[0].URL)
	assert.Equal(t, "https://x.test/b", got[1].URL)
	assert.Equal(t, "xhr", got[0].ResourceType)
	assert.Equal(t, "fetch", got[1].ResourceType)

	body, err := got[0].ReadBody()
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":[{"id":"a"}]}`, string(body))
}

func TestReadBodyWaitsForLoadingFinished(t *testing.T) {
	p := testPage(map[proto.NetworkRequestID]string{"A": `[1]`})
	p.onResponse(received("A", "https://x.test/a", proto.NetworkResourceTypeXHR))

	got := p.Responses()
	require.Len(t, got, 1)

	go func() {
		time.Sleep(20 * time.Millisecond)
		p.onFinished(finished("A"))
	}()

	body, err := got[0].ReadBody()
	require.NoError(t, err)
	assert.Equal(t, `[1]`, string(body))
}

func TestReadBodyFailedOrUnfinished(t *testing.T) {
	p := testPage(map[proto.NetworkRequestID]string{"A": `[1]`, "B": `[2]`})
	p.bodyWait = 10 * time.Millisecond

	p.onResponse(received("A", "https://x.test/a", proto.NetworkResourceTypeXHR))
	p.onResponse(received("B", "https://x.test/b", proto.NetworkResourceTypeXHR))
	p.onFailed(&proto.NetworkLoadingFailed{RequestID: "A", ErrorText: "net::ERR_ABORTED"})
	// A late finished event for a failed request changes nothing.
	p.onFinished(finished("A"))

	got := p.Responses()
	require.Len(t, got, 2)

	_, err := got[0].ReadBody()
	assert.ErrorContains(t, err, "ERR_ABORTED")

	_, err = got[1].ReadBody()
	assert.ErrorContains(t, err, "still loading")
}

func TestOnResponseIgnoresMissingResponseAndRepeats(t *testing.T) {
	p := testPage(nil)

	p.onResponse(&proto.NetworkResponseReceived{RequestID: "A"})
	assert.Empty(t, p.Responses())

	p.onResponse(received("B", "https://x.test/first", proto.NetworkResourceTypeXHR))
	p.onResponse(received("B", "https://x.test/second", proto.NetworkResourceTypeXHR))
	got := p.Responses()
	require.Len(t, got, 1)
	assert.Equal(t, "https://x.test/second", got[0].URL)
}

func TestContentType(t *testing.T) {
	testCases := []struct {
		name string
		res  *proto.NetworkResponse
		want string
	}{
		{
			name: "header wins",
			res: &proto.NetworkResponse{
				MIMEType: "text/html",
				Headers:  proto.NetworkHeaders{"Content-Type": gson.New("application/json; charset=utf-8")},
			},
			want: "application/json; charset=utf-8",
		},
		{
			name: "header name is case-insensitive",
			res: &proto.NetworkResponse{
				Headers: proto.NetworkHeaders{"content-type": gson.New("application/x-javascript")},
			},
			want: "application/x-javascript",
		},
		{
			name: "mime type fallback",
			res:  &proto.NetworkResponse{MIMEType: "text/javascript"},
			want: "text/javascript",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, contentType(tc.res))
		})
	}
}
