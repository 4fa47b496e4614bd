package prices

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/edgarscore/internal/net/client"
)

const chartJSON = `{"chart":{"result":[{"meta":{"symbol":"AAPL"},
"timestamp":[1609718400,1609804800,1609891200],
"indicators":{"quote":[{"close":[129.41,null,126.6],"volume":[143301900,97664900,null]}]}}],"error":null}`

func TestClient_History(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		fmt.Fprint(w, chartJSON)
	}))
	defer srv.Close()

	c := New(srv.Client(), srv.URL)
	c.now = func() time.Time { return time.Unix(1700000000, 0) }

	bars, err := c.History(context.Background(), "aapl")
	require.NoError(t, err)

	assert.Equal(t, "/v8/finance/chart/AAPL", gotPath)
	assert.Equal(t, "interval=1d&period1=0&period2=1700000000", gotQuery)
	require.Len(t, bars, 2, "null close skipped")
	assert.Equal(t, time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC), bars[0].Time)
	assert.Equal(t, 129.41, bars[0].Close)
	assert.Equal(t, 143301900.0, bars[0].Volume)
	assert.Equal(t, 126.6, bars[1].Close)
	assert.Zero(t, bars[1].Volume)
}

func TestClient_HistoryErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v8/finance/chart/NOPE" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`)
	}))
	defer srv.Close()

	c := New(srv.Client(), srv.URL)

	_, err := c.History(context.Background(), "nope")
	assert.True(t, client.IsNotFound(err))

	_, err = c.History(context.Background(), "delisted")
	assert.ErrorContains(t, err, "No data found")
}
