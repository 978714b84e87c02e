package tags_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/fundsight/tally/internal/tags"
)

type mockSystem struct {
	listFn       func(ctx context.Context, documentID uuid.UUID, kind *tags.Kind) ([]tags.Tag, error)
	updateTagsFn func(ctx context.Context, documentID uuid.UUID, cmd tags.UpdateCommand) error
}

func (m *mockSystem) Handler() *tags.Handler {
	return tags.NewHandler(m, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func (m *mockSystem) List(ctx context.Context, documentID uuid.UUID, kind *tags.Kind) ([]tags.Tag, error) {
	return m.listFn(ctx, documentID, kind)
}

func (m *mockSystem) Periods(context.Context, uuid.UUID) ([]tags.Period, error) {
	return nil, nil
}

func (m *mockSystem) ReplacePeriodTags(context.Context, uuid.UUID, []tags.Period, bool) error {
	return nil
}

func (m *mockSystem) ReplaceTypeTags(context.Context, uuid.UUID, []string, bool, *int) error {
	return nil
}

func (m *mockSystem) SetCustomTags(context.Context, uuid.UUID, []string) error {
	return nil
}

func (m *mockSystem) SetStatusTag(context.Context, uuid.UUID, string) error {
	return nil
}

func (m *mockSystem) ApplyExtraction(context.Context, uuid.UUID, []tags.Period, []string, int) error {
	return nil
}

func (m *mockSystem) ApplyDetection(context.Context, uuid.UUID, []tags.Period, []string, int) error {
	return nil
}

func (m *mockSystem) UpdateTags(ctx context.Context, documentID uuid.UUID, cmd tags.UpdateCommand) error {
	return m.updateTagsFn(ctx, documentID, cmd)
}

func setupMux(sys *mockSystem) *http.ServeMux {
	h := sys.Handler()

	mux := http.NewServeMux()
	group := h.Routes()
	for _, route := range group.Routes {
		pattern := route.Method + " " + group.Prefix + route.Pattern
		mux.HandleFunc(pattern, route.Handler)
	}
	return mux
}

func TestHandlerList(t *testing.T) {
	docID := uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")
	periodTag := tags.Tag{
		ID:         uuid.New(),
		DocumentID: docID,
		Kind:       tags.KindPeriod,
		Value:      "7/2024",
		AIDetected: true,
		Year:       ptr(2024),
		Month:      ptr(7),
	}

	t.Run("returns all tags", func(t *testing.T) {
		sys := &mockSystem{
			listFn: func(_ context.Context, id uuid.UUID, kind *tags.Kind) ([]tags.Tag, error) {
				if id != docID {
					return nil, tags.ErrNotFound
				}
				if kind != nil {
					t.Errorf("kind = %v, want nil", *kind)
				}
				return []tags.Tag{periodTag}, nil
			},
		}
		mux := setupMux(sys)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/documents/"+docID.String()+"/tags", nil)
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}

		var got []tags.Tag
		if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(got) != 1 || got[0].Value != "7/2024" {
			t.Errorf("tags = %v, want single 7/2024", got)
		}
	})

	t.Run("filters by kind", func(t *testing.T) {
		var captured *tags.Kind
		sys := &mockSystem{
			listFn: func(_ context.Context, _ uuid.UUID, kind *tags.Kind) ([]tags.Tag, error) {
				captured = kind
				return []tags.Tag{}, nil
			},
		}
		mux := setupMux(sys)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/documents/"+docID.String()+"/tags?kind=custom", nil)
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if captured == nil || *captured != tags.KindCustom {
			t.Errorf("kind = %v, want custom", captured)
		}
	})

	t.Run("invalid kind returns 400", func(t *testing.T) {
		sys := &mockSystem{}
		mux := setupMux(sys)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/documents/"+docID.String()+"/tags?kind=bogus", nil)
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("malformed id returns 400", func(t *testing.T) {
		sys := &mockSystem{}
		mux := setupMux(sys)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/documents/nope/tags", nil)
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("unknown document returns 404", func(t *testing.T) {
		sys := &mockSystem{
			listFn: func(context.Context, uuid.UUID, *tags.Kind) ([]tags.Tag, error) {
				return nil, tags.ErrNotFound
			},
		}
		mux := setupMux(sys)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/documents/"+uuid.NewString()+"/tags", nil)
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})
}

func TestHandlerUpdate(t *testing.T) {
	docID := uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")

	t.Run("applies correction and returns tags", func(t *testing.T) {
		var captured tags.UpdateCommand
		sys := &mockSystem{
			updateTagsFn: func(_ context.Context, _ uuid.UUID, cmd tags.UpdateCommand) error {
				captured = cmd
				return nil
			},
			listFn: func(context.Context, uuid.UUID, *tags.Kind) ([]tags.Tag, error) {
				return []tags.Tag{
					{DocumentID: docID, Kind: tags.KindPeriod, Value: "7/2024"},
				}, nil
			},
		}
		mux := setupMux(sys)

		payload := `{"year": 2024, "month": 7, "custom_tags": ["reviewed"]}`
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/documents/"+docID.String()+"/update-tags", bytes.NewBufferString(payload))
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}

		if captured.Year == nil || *captured.Year != 2024 {
			t.Errorf("year = %v, want 2024", captured.Year)
		}
		if len(captured.CustomTags) != 1 || captured.CustomTags[0] != "reviewed" {
			t.Errorf("custom tags = %v, want [reviewed]", captured.CustomTags)
		}

		var resp struct {
			ID   uuid.UUID  `json:"id"`
			Tags []tags.Tag `json:"tags"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.ID != docID {
			t.Errorf("id = %v, want %v", resp.ID, docID)
		}
		if len(resp.Tags) != 1 {
			t.Errorf("tags = %v, want one", resp.Tags)
		}
	})

	t.Run("malformed body returns 400", func(t *testing.T) {
		sys := &mockSystem{}
		mux := setupMux(sys)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/documents/"+docID.String()+"/update-tags", bytes.NewBufferString("{"))
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("validation failure returns 400", func(t *testing.T) {
		sys := &mockSystem{
			updateTagsFn: func(context.Context, uuid.UUID, tags.UpdateCommand) error {
				return tags.ErrValidation
			},
		}
		mux := setupMux(sys)

		payload := `{"year": 2024}`
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/documents/"+docID.String()+"/update-tags", bytes.NewBufferString(payload))
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("conflict when not taggable", func(t *testing.T) {
		sys := &mockSystem{
			updateTagsFn: func(context.Context, uuid.UUID, tags.UpdateCommand) error {
				return tags.ErrInvalidStatus
			},
		}
		mux := setupMux(sys)

		payload := `{"year": 2024, "month": 7}`
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/documents/"+docID.String()+"/update-tags", bytes.NewBufferString(payload))
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusConflict {
			t.Errorf("status = %d, want 409", rec.Code)
		}
	})
}
