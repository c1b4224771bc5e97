package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cristhianbenitez/ai-image-generator/client/internal/types"
)

// fakeAPI is an in-memory backend speaking the REST surface the client uses.
type fakeAPI struct {
	mu          sync.Mutex
	feed        []Image // newest first
	collections map[int64][]int64
	tokens      map[string]User
	nextID      int64

	failAdd    atomic.Bool
	addCalls   atomic.Int32
	listCalls  atomic.Int32
	verifyHits atomic.Int32
}

func newFakeAPI(t *testing.T, n int) (*fakeAPI, *httptest.Server) {
	t.Helper()
	f := &fakeAPI{
		collections: map[int64][]int64{},
		tokens:      map[string]User{},
	}
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for id := int64(n); id >= 1; id-- {
		f.feed = append(f.feed, Image{
			ID:         id,
			Prompt:     "prompt " + strconv.FormatInt(id, 10),
			Resolution: "1024x1024",
			ImageURL:   "https://img.example/" + strconv.FormatInt(id, 10),
			UserID:     1 + id%3,
			CreatedAt:  created.Add(time.Duration(id) * time.Minute),
		})
	}
	f.nextID = int64(n) + 1

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/images", f.listImages)
	mux.HandleFunc("POST /api/images", f.saveImage)
	mux.HandleFunc("GET /api/images/user/{uid}", f.listUserImages)
	mux.HandleFunc("GET /api/collections/{uid}", f.getCollection)
	mux.HandleFunc("POST /api/collections/{uid}", f.addToCollection)
	mux.HandleFunc("DELETE /api/collections/{uid}/images/{iid}", f.removeFromCollection)
	mux.HandleFunc("GET /api/auth/verify", f.verify)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeAPI) authorize(token string, u User) {
	f.mu.Lock()
	f.tokens[token] = u
	f.mu.Unlock()
}

// caller resolves the bearer token; ok is false when the request is anonymous
// or the token is unknown.
func (f *fakeAPI) caller(r *http.Request) (User, bool) {
	tok, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !found {
		return User{}, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.tokens[tok]
	return u, ok
}

func (f *fakeAPI) requireUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	uid, _ := strconv.ParseInt(r.PathValue("uid"), 10, 64)
	u, ok := f.caller(r)
	if !ok || u.ID != uid {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return 0, false
	}
	return uid, true
}

func (f *fakeAPI) bookmarkedLocked(uid, id int64) bool {
	for _, b := range f.collections[uid] {
		if b == id {
			return true
		}
	}
	return false
}

func (f *fakeAPI) page(w http.ResponseWriter, r *http.Request, src []Image, uid int64) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	start := (page - 1) * limit
	end := start + limit
	if start > len(src) {
		start = len(src)
	}
	if end > len(src) {
		end = len(src)
	}
	data := make([]Image, 0, end-start)
	f.mu.Lock()
	for _, img := range src[start:end] {
		img.IsBookmarked = uid != 0 && f.bookmarkedLocked(uid, img.ID)
		data = append(data, img)
	}
	f.mu.Unlock()
	pages := (len(src) + limit - 1) / limit
	writeJSON(w, http.StatusOK, Page{
		Data:       data,
		Pagination: pagination(len(src), pages, page, limit),
	})
}

func (f *fakeAPI) snapshotFeed() []Image {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Image(nil), f.feed...)
}

func (f *fakeAPI) listImages(w http.ResponseWriter, r *http.Request) {
	f.listCalls.Add(1)
	uid, _ := strconv.ParseInt(r.URL.Query().Get("userId"), 10, 64)
	f.page(w, r, f.snapshotFeed(), uid)
}

func (f *fakeAPI) listUserImages(w http.ResponseWriter, r *http.Request) {
	uid, ok := f.requireUser(w, r)
	if !ok {
		return
	}
	var own []Image
	for _, img := range f.snapshotFeed() {
		if img.UserID == uid {
			own = append(own, img)
		}
	}
	f.page(w, r, own, uid)
}

func (f *fakeAPI) collectionOf(uid int64) Collection {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := Collection{ID: uid * 10, UserID: uid, Images: []Image{}}
	for _, id := range f.collections[uid] {
		for _, img := range f.feed {
			if img.ID == id {
				img.IsBookmarked = true
				c.Images = append(c.Images, img)
			}
		}
	}
	return c
}

func (f *fakeAPI) getCollection(w http.ResponseWriter, r *http.Request) {
	uid, ok := f.requireUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, f.collectionOf(uid))
}

func (f *fakeAPI) addToCollection(w http.ResponseWriter, r *http.Request) {
	f.addCalls.Add(1)
	uid, ok := f.requireUser(w, r)
	if !ok {
		return
	}
	if f.failAdd.Load() {
		http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
		return
	}
	var body struct {
		ImageID int64 `json:"imageId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ImageID <= 0 {
		http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	if !f.bookmarkedLocked(uid, body.ImageID) {
		f.collections[uid] = append([]int64{body.ImageID}, f.collections[uid]...)
	}
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, f.collectionOf(uid))
}

func (f *fakeAPI) removeFromCollection(w http.ResponseWriter, r *http.Request) {
	uid, ok := f.requireUser(w, r)
	if !ok {
		return
	}
	iid, _ := strconv.ParseInt(r.PathValue("iid"), 10, 64)
	f.mu.Lock()
	kept := f.collections[uid][:0]
	for _, id := range f.collections[uid] {
		if id != iid {
			kept = append(kept, id)
		}
	}
	f.collections[uid] = kept
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, f.collectionOf(uid))
}

func (f *fakeAPI) saveImage(w http.ResponseWriter, r *http.Request) {
	u, ok := f.caller(r)
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var img Image
	if err := json.NewDecoder(r.Body).Decode(&img); err != nil || img.UserID != u.ID {
		http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	img.ID = f.nextID
	f.nextID++
	img.CreatedAt = time.Now().UTC()
	f.feed = append([]Image{img}, f.feed...)
	f.mu.Unlock()
	writeJSON(w, http.StatusCreated, img)
}

func (f *fakeAPI) verify(w http.ResponseWriter, r *http.Request) {
	f.verifyHits.Add(1)
	u, ok := f.caller(r)
	if !ok {
		http.Error(w, `{"valid":false}`, http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"valid": true, "user": u})
}

func pagination(total, pages, current, per int) types.Pagination {
	return types.Pagination{
		Total:       total,
		Pages:       pages,
		CurrentPage: current,
		PerPage:     per,
		HasMore:     current < pages,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeAPI) bookmarksOf(uid int64) []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.collections[uid]...)
}
