// Package v1_test contains tests for the public collector API
package v1_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rankrent/internal/pkg/user_agent"
	"rankrent/internal/testsupport"
	"rankrent/internal/tracking"
)

func eventRequest(t *testing.T, path, origin string, payload map[string]any) *http.Request {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/120.0 Safari/537.36")
	req.Header.Set("X-Forwarded-For", "127.0.0.1")
	req.Header.Set("Sec-Fetch-Site", "cross-site")
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	return req
}

func pageView(eventID string) map[string]any {
	return map[string]any{
		"event_id":        eventID,
		"session_id":      "sess-1",
		"visitor_id":      "vis-1",
		"sequence_number": 1,
		"event_type":      string(tracking.EventPageView),
		"page_url":        "https://www.example.com.br/servicos?gclid=abc",
		"page_title":      "Serviços",
	}
}

func TestCreateEventAction(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	t.Run("accepts a valid event from a registered origin", func(t *testing.T) {
		testsupport.CleanAllTables(db)
		site := testsupport.CreateTestSite(t, db, "example.com.br")
		app := testsupport.CreateMinimalTestApp(t, db)

		resp, err := app.Test(eventRequest(t, "/x/api/v1/events", "https://www.example.com.br", pageView("ev-1")), 30000)
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		require.Equal(t, http.StatusAccepted, resp.StatusCode, string(body))

		var out map[string]any
		require.NoError(t, json.Unmarshal(body, &out))
		assert.Equal(t, "Event added successfully", out["message"])
		assert.Equal(t, "ev-1", out["event_id"])
		assert.Equal(t, false, out["duplicate"])

		var stored tracking.TrackingEvent
		require.NoError(t, db.Where("event_id = ?", "ev-1").First(&stored).Error)
		assert.Equal(t, site.ID, stored.SiteID)
		assert.Equal(t, user_agent.DeviceDesktop, stored.Device)
		require.NotNil(t, stored.GCLID)
		assert.Equal(t, "abc", *stored.GCLID)
	})

	t.Run("rejects an unregistered origin", func(t *testing.T) {
		testsupport.CleanAllTables(db)
		testsupport.CreateTestSite(t, db, "example.com.br")
		app := testsupport.CreateMinimalTestApp(t, db)

		resp, err := app.Test(eventRequest(t, "/x/api/v1/events", "https://attacker.net", pageView("ev-2")), 30000)
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		var count int64
		db.Model(&tracking.TrackingEvent{}).Count(&count)
		assert.Zero(t, count)
	})

	t.Run("rejects an invalid payload", func(t *testing.T) {
		testsupport.CleanAllTables(db)
		testsupport.CreateTestSite(t, db, "example.com.br")
		app := testsupport.CreateMinimalTestApp(t, db)

		payload := pageView("ev-3")
		payload["event_type"] = "teleport"
		resp, err := app.Test(eventRequest(t, "/x/api/v1/events", "https://example.com.br", payload), 30000)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

		var out map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		assert.Equal(t, "INVALID_EVENT", out["code"])
	})

	t.Run("stores a repeated event id once", func(t *testing.T) {
		testsupport.CleanAllTables(db)
		testsupport.CreateTestSite(t, db, "example.com.br")
		app := testsupport.CreateMinimalTestApp(t, db)

		for i, wantDuplicate := range []bool{false, true} {
			resp, err := app.Test(eventRequest(t, "/x/api/v1/events", "https://example.com.br", pageView("ev-4")), 30000)
			require.NoError(t, err)
			require.Equal(t, http.StatusAccepted, resp.StatusCode, "attempt %d", i)

			var out map[string]any
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
			assert.Equal(t, wantDuplicate, out["duplicate"], "attempt %d", i)
		}

		var count int64
		db.Model(&tracking.TrackingEvent{}).Where("event_id = ?", "ev-4").Count(&count)
		assert.Equal(t, int64(1), count)
	})
}

func TestCreateEventBeaconAction(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	testsupport.CleanAllTables(db)
	testsupport.CreateTestSite(t, db, "example.com.br")
	app := testsupport.CreateMinimalTestApp(t, db)

	t.Run("stores the beacon payload", func(t *testing.T) {
		req := eventRequest(t, "/x/api/v1/events/beacon", "https://example.com.br", pageView("beacon-1"))
		req.Header.Set("Content-Type", "text/plain")
		resp, err := app.Test(req, 30000)
		require.NoError(t, err)
		assert.Equal(t, http.StatusAccepted, resp.StatusCode)

		var count int64
		db.Model(&tracking.TrackingEvent{}).Where("event_id = ?", "beacon-1").Count(&count)
		assert.Equal(t, int64(1), count)
	})

	t.Run("accepts garbage without storing it", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/x/api/v1/events/beacon", bytes.NewReader([]byte("{not json")))
		req.Header.Set("Origin", "https://example.com.br")
		req.Header.Set("Sec-Fetch-Site", "cross-site")
		resp, err := app.Test(req, 30000)
		require.NoError(t, err)
		assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	})
}
