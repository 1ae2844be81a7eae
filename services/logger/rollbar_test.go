package logsvc_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/rollbar/rollbar-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learntube/backend/core/user"
	logsvc "github.com/learntube/backend/services/logger"
	testutil "github.com/learntube/backend/tests"
)

type reported struct {
	level  string
	person map[string]string
	custom map[string]interface{}
}

// collect records every item handed to the Rollbar transport.
func collect(t *testing.T) func() []reported {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"err":0}`))
	}))

	var mu sync.Mutex
	var items []reported
	rollbar.SetEndpoint(srv.URL + "/")
	rollbar.SetTransform(func(data map[string]interface{}) {
		item := reported{level: fmt.Sprint(data["level"])}
		item.person, _ = data["person"].(map[string]string)
		item.custom, _ = data["custom"].(map[string]interface{})
		mu.Lock()
		items = append(items, item)
		mu.Unlock()
	})

	t.Cleanup(func() {
		rollbar.Wait()
		rollbar.SetTransform(func(map[string]interface{}) {})
		rollbar.SetEnabled(false)
		srv.Close()
	})
	return func() []reported {
		mu.Lock()
		defer mu.Unlock()
		return append([]reported(nil), items...)
	}
}

func TestRollbarLogger(t *testing.T) {
	conf := testutil.NewConfig()
	conf.Debug = false
	conf.RollbarToken = "test-token"
	logsvc.InitRollbar(conf)
	items := collect(t)

	apiLogger, err := logsvc.NewRollbarLogger("API", conf)
	require.NoError(t, err)
	// building more loggers leaves reporting on
	dbLogger, err := logsvc.NewRollbarLogger("DB", conf)
	require.NoError(t, err)
	nop := logsvc.NewNopLogger()

	ada := user.User{ID: "ada-id", Name: "Ada", Email: "ada@test.cd"}

	apiLogger.Debug("debugging", ada)
	apiLogger.Info("GET /courses", map[string]interface{}{"status": 200}, ada)
	nop.Error("not reported", errors.New("boom"))
	require.Empty(t, items(), "only warnings and worse are reported")

	dbLogger.Warn("slow query", map[string]interface{}{"ms": 1200})
	apiLogger.Error("server error", errors.New("boom"), ada)

	got := items()
	require.Len(t, got, 2)

	assert.Equal(t, rollbar.WARN, got[0].level)
	assert.Nil(t, got[0].person)
	assert.Equal(t, 1200, got[0].custom["ms"])

	assert.Equal(t, rollbar.ERR, got[1].level)
	assert.Equal(t, "ada-id", got[1].person["id"])
	assert.Equal(t, "ada@test.cd", got[1].person["email"])
	assert.Equal(t, "server error", got[1].custom["message"])
}

func TestRollbarLogger_personPerEntry(t *testing.T) {
	conf := testutil.NewConfig()
	conf.Debug = false
	conf.RollbarToken = "test-token"
	logsvc.InitRollbar(conf)
	items := collect(t)

	logger, err := logsvc.NewRollbarLogger("API", conf)
	require.NoError(t, err)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			usr := user.User{ID: fmt.Sprintf("user-%d", i)}
			if i%2 == 0 {
				logger.Error("failed", errors.New("boom"), usr, map[string]interface{}{"uid": usr.ID})
			} else {
				// no user: must not inherit one from a concurrent entry
				logger.Error("failed", errors.New("boom"), map[string]interface{}{"uid": ""})
			}
		}(i)
	}
	wg.Wait()

	got := items()
	require.Len(t, got, n)
	for _, item := range got {
		uid := item.custom["uid"]
		if uid == "" {
			assert.Nil(t, item.person)
			continue
		}
		require.NotNil(t, item.person)
		assert.Equal(t, uid, item.person["id"])
	}
}
