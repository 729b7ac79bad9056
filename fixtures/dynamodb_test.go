package fixtures

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/launchdarkly/go-test-helpers/v2/httphelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/launchdarkly/suite-harness/framework/ldtest"
)

func fakeDynamoDB(log *requestLog) http.Handler {
	tableExists := false
	return log.handler(func(w http.ResponseWriter, r *http.Request) string {
		target := r.Header.Get("X-Amz-Target")
		op := target[strings.LastIndex(target, ".")+1:]
		w.Header().Set("Content-Type", "application/x-amz-json-1.0")
		switch {
		case op == "DeleteTable" && !tableExists:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"__type":"com.amazonaws.dynamodb.v20120810#ResourceNotFoundException",` +
				`"message":"Requested resource not found"}`))
		case op == "DeleteTable":
			tableExists = false
			_, _ = w.Write([]byte(`{"TableDescription":{"TableName":"flags","TableStatus":"DELETING"}}`))
		case op == "CreateTable":
			tableExists = true
			_, _ = w.Write([]byte(`{"TableDescription":{"TableName":"flags","TableStatus":"ACTIVE"}}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"__type":"com.amazon.coral.validate#ValidationException","message":"unexpected"}`))
		}
		return op
	})
}

func TestDynamoDBTableIsRecreatedAndDeleted(t *testing.T) {
	log := &requestLog{}
	httphelpers.WithServer(fakeDynamoDB(log), func(server *httptest.Server) {
		opts := DynamoDBOptions{
			Endpoint:        server.URL,
			AccessKeyID:     "test",
			SecretAccessKey: "test",
			Table:           "flags",
		}
		var sawClient bool
		run := runWithSuiteSetup(t, DynamoDBTable(opts), func(ldt *ldtest.T) {
			_, sawClient = DynamoDBClient(ldt)
		})

		assert.True(t, sawClient)
		require.Len(t, run.results, 1)
		assert.Equal(t, ldtest.StatusPassed, run.suiteEnd.Status)
		assert.Equal(t, []string{"DeleteTable", "CreateTable", "DeleteTable"}, log.all())
	})
}

func TestDynamoDBTableRequiresTableName(t *testing.T) {
	run := runWithSuiteSetup(t, DynamoDBTable(DynamoDBOptions{}), func(*ldtest.T) {})
	assert.Empty(t, run.results)
	require.Len(t, run.suiteEnd.Errors, 1)
	assert.Contains(t, run.suiteEnd.Errors[0].Error(), "needs a table name")
}
