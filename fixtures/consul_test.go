package fixtures

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/launchdarkly/go-test-helpers/v2/httphelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/launchdarkly/suite-harness/framework/ldtest"
)

func fakeConsul(log *requestLog) http.Handler {
	return log.handler(func(w http.ResponseWriter, r *http.Request) string {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("true"))
		desc := r.Method + " " + r.URL.Path
		if _, ok := r.URL.Query()["recurse"]; ok {
			desc += " recurse"
		}
		if len(body) != 0 {
			desc += " " + string(body)
		}
		return desc
	})
}

func TestConsulKVResetsTreeAndSeedsValues(t *testing.T) {
	log := &requestLog{}
	httphelpers.WithServer(fakeConsul(log), func(server *httptest.Server) {
		opts := ConsulOptions{
			Address: strings.TrimPrefix(server.URL, "http://"),
			Prefix:  "app",
			Values:  map[string]string{"app/greeting": "hello"},
		}
		var sawClient bool
		run := runWithSuiteSetup(t, ConsulKV(opts), func(ldt *ldtest.T) {
			_, sawClient = ConsulClient(ldt)
		})

		assert.True(t, sawClient)
		require.Len(t, run.results, 1)
		assert.Equal(t, ldtest.StatusPassed, run.results[0].Status)
		assert.Equal(t, ldtest.StatusPassed, run.suiteEnd.Status)
		assert.Equal(t, []string{
			"DELETE /v1/kv/app recurse",
			"PUT /v1/kv/app/greeting hello",
			"DELETE /v1/kv/app recurse",
		}, log.all())
	})
}

func TestConsulKVFailingServerFailsSetup(t *testing.T) {
	httphelpers.WithServer(httphelpers.HandlerWithStatus(500), func(server *httptest.Server) {
		opts := ConsulOptions{Address: strings.TrimPrefix(server.URL, "http://")}
		run := runWithSuiteSetup(t, ConsulKV(opts), func(*ldtest.T) {})
		assert.Empty(t, run.results)
		assert.Equal(t, ldtest.StatusFailed, run.suiteEnd.Status)
		require.Len(t, run.suiteEnd.Errors, 1)
		assert.Contains(t, run.suiteEnd.Errors[0].Error(), "is not reachable")
	})
}
