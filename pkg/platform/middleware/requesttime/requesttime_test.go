package requesttime

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"ftledger/pkg/requestcontext"
)

func TestMiddlewarePinsRequestTime(t *testing.T) {
	var first, second time.Time
	var ok bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		first, ok = requestcontext.Time(r.Context())
		second = requestcontext.Now(r.Context())
	})

	before := time.Now()
	Middleware(next).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.True(t, ok)
	assert.False(t, first.Before(before))
	assert.Equal(t, first, second)
}
