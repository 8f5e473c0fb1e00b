package google

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"meetslot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// fakeSheets serves the subset of the Sheets v4 REST API used by SheetsService.
type fakeSheets struct {
	mu     sync.Mutex
	tabs   map[string][][]interface{}
	gets   int
	broken bool
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.broken {
		http.Error(w, `{"error":{"code":500,"message":"backend error"}}`, http.StatusInternalServerError)
		return
	}

	path := r.URL.Path
	switch {
	case strings.HasSuffix(path, ":append") && r.Method == http.MethodPost:
		rng := strings.TrimSuffix(path[strings.Index(path, "/values/")+len("/values/"):], ":append")
		var vr sheets.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		tab := strings.SplitN(rng, "!", 2)[0]
		f.tabs[tab] = append(f.tabs[tab], vr.Values...)
		_ = json.NewEncoder(w).Encode(map[string]any{"spreadsheetId": "sid"})

	case strings.Contains(path, "/values/") && r.Method == http.MethodGet:
		f.gets++
		rng := path[strings.Index(path, "/values/")+len("/values/"):]
		tab := strings.SplitN(rng, "!", 2)[0]
		_ = json.NewEncoder(w).Encode(map[string]any{
			"range":          rng,
			"majorDimension": "ROWS",
			"values":         f.tabs[tab],
		})

	default:
		_ = json.NewEncoder(w).Encode(map[string]any{"spreadsheetId": "sid"})
	}
}

func newFakeService(t *testing.T) (*SheetsService, *fakeSheets) {
	t.Helper()
	fake := &fakeSheets{tabs: map[string][][]interface{}{
		"polls": {
			{"id", "json"},
			{"p1", `{"title":"first"}`},
			{"", `{"title":"orphan"}`},
			{"p1", `{"title":"duplicate"}`},
		},
		"responses": {
			{"timestamp", "name", "json", "pollId"},
			{"2024-01-09T10:00:00Z", "Anna", `{"availability":{}}`, "p1"},
			{"2024-01-09T10:01:00Z", "Bob", `{}`, "p2"},
			{"2024-01-09T10:02:00Z", "Carl"},
		},
	}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := NewSheetsServiceWithOptions(context.Background(),
		SheetsOptions{SpreadsheetID: "sid"}, nil,
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return svc, fake
}

func TestSheetsService_Polls(t *testing.T) {
	svc, fake := newFakeService(t)
	ctx := context.Background()

	row, err := svc.GetPollRow(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, `{"title":"first"}`, row.JSON)

	_, err = svc.GetPollRow(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, fake.gets, "second lookup is served from cache")

	_, err = svc.GetPollRow(ctx, "missing")
	assert.True(t, errors.Is(err, models.ErrPollNotFound))

	require.NoError(t, svc.AppendPollRow(ctx, models.PollRow{ID: "p9", JSON: "{}"}))
	assert.Len(t, fake.tabs["polls"], 5)

	svc.ClearCache()
	row, err = svc.GetPollRow(ctx, "p9")
	require.NoError(t, err)
	assert.Equal(t, "{}", row.JSON)
}

func TestSheetsService_Responses(t *testing.T) {
	svc, _ := newFakeService(t)
	ctx := context.Background()

	require.NoError(t, svc.AppendResponseRow(ctx, models.ResponseRow{
		Timestamp: "2024-01-09T11:00:00Z", Name: "Dana", JSON: "{}", PollID: "p1",
	}))

	rows, err := svc.ListResponseRows(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Anna", rows[0].Name)
	assert.Equal(t, "Dana", rows[1].Name)

	assert.NoError(t, svc.Ping(ctx))
}

func TestSheetsService_Errors(t *testing.T) {
	svc, fake := newFakeService(t)
	fake.broken = true

	_, err := svc.ListResponseRows(context.Background(), "p1")
	assert.Error(t, err)
	_, err = svc.GetPollRow(context.Background(), "p1")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, models.ErrPollNotFound))
}

func TestRowValues(t *testing.T) {
	assert.Equal(t, []interface{}{"p1", "{}"}, pollRowValues(models.PollRow{ID: "p1", JSON: "{}"}))
	assert.Equal(t,
		[]interface{}{"ts", "Anna", "{}", "p1"},
		responseRowValues(models.ResponseRow{Timestamp: "ts", Name: "Anna", JSON: "{}", PollID: "p1"}))

	row := parseResponseRow([]interface{}{"ts", "Anna"})
	assert.Equal(t, models.ResponseRow{Timestamp: "ts", Name: "Anna"}, row)

	_, ok := parsePollRow([]interface{}{" "})
	assert.False(t, ok)

	assert.Equal(t, "42", cell([]interface{}{float64(42)}, 0))
	assert.Equal(t, "", cell(nil, 3))
}

func TestNewSheetsServiceWithOptions_RequiresID(t *testing.T) {
	_, err := NewSheetsServiceWithOptions(context.Background(), SheetsOptions{}, nil, option.WithoutAuthentication())
	assert.Error(t, err)
}
