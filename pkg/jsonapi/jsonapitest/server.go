/*
Package jsonapitest
In-memory {json:api} server for tests and demos.

    server := jsonapitest.NewServer("/api", nil)
    server.Route("applications", "application")
    ts := httptest.NewServer(server)
    defer ts.Close()

    api, _ := jsonapi.NewClient(jsonapi.Config{APIURL: ts.URL + "/api", ...})

It behaves like a minimal real server: POST answers "201 Created" with a
Location header and no body, ids are assigned sequentially per collection
starting at "0", unknown ids give 404 with an 'errors' document, and trailing
slashes are optional on every route.
*/
package jsonapitest

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const contentType = "application/vnd.api+json"

type collection struct {
	Type   string
	nextId int
	order  []string
	items  map[string][]byte
}

type Server struct {
	basePath    string
	router      chi.Router
	logger      *slog.Logger
	mu          sync.Mutex
	collections map[string]*collection
}

func NewServer(basePath string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	server := &Server{
		basePath:    "/" + strings.Trim(basePath, "/"),
		logger:      logger,
		collections: make(map[string]*collection),
	}
	if server.basePath == "/" {
		server.basePath = ""
	}

	router := chi.NewRouter()
	router.Use(chimw.StripSlashes)
	routes := func(r chi.Router) {
		r.Get("/{collection}", server.list)
		r.Post("/{collection}", server.create)
		r.Get("/{collection}/{id}", server.retrieve)
		r.Post("/{collection}/{id}", server.createAtId)
		r.Patch("/{collection}/{id}", server.update)
		r.Delete("/{collection}/{id}", server.delete)
	}
	if server.basePath == "" {
		routes(router)
	} else {
		router.Route(server.basePath, routes)
	}
	server.router = router
	return server
}

// Route serves the collection at path segment 'path'; its members must
// have type 'Type'
func (s *Server) Route(path, Type string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[path] = &collection{
		Type:  Type,
		items: make(map[string][]byte),
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Len returns the number of stored resources of a collection
func (s *Server) Len(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, exists := s.collections[path]
	if !exists {
		return 0
	}
	return len(items.order)
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, ok := s.lookup(w, r)
	if !ok {
		return
	}

	data := make([]json.RawMessage, 0, len(items.order))
	for _, id := range items.order {
		data = append(data, items.items[id])
	}
	s.writeDocument(w, http.StatusOK, map[string]interface{}{
		"data":  data,
		"links": map[string]string{
			"self": s.selfURL(chi.URLParam(r, "collection"), ""),
		},
	})
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, ok := s.lookup(w, r)
	if !ok {
		return
	}
	data, ok := s.readData(w, r, items.Type)
	if !ok {
		return
	}

	id := gjson.Get(data, "id").String()
	if id == "" {
		// Skip ids that clients already picked for themselves
		for {
			id = strconv.Itoa(items.nextId)
			items.nextId++
			if _, exists := items.items[id]; !exists {
				break
			}
		}
	} else if _, exists := items.items[id]; exists {
		s.writeError(w, http.StatusConflict, "Object already present",
			fmt.Sprintf("%s '%s' already exists", items.Type, id))
		return
	}
	path := chi.URLParam(r, "collection")
	stored, err := sjson.Set(data, "id", id)
	if err == nil {
		stored, err = sjson.Set(stored, "links.self", s.selfURL(path, id))
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError,
			"Unable to perform operation", err.Error())
		return
	}
	items.items[id] = []byte(stored)
	items.order = append(items.order, id)
	s.logger.Debug("created", "type", items.Type, "id", id)

	w.Header().Set("Location", s.selfURL(path, id))
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) retrieve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, id, ok := s.lookupItem(w, r)
	if !ok {
		return
	}
	s.writeDocument(w, http.StatusOK, map[string]interface{}{
		"data": json.RawMessage(items.items[id]),
	})
}

// POSTing to an existing member conflicts with it
func (s *Server) createAtId(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, id, ok := s.lookupItem(w, r)
	if !ok {
		return
	}
	s.writeError(w, http.StatusConflict, "Object already present",
		fmt.Sprintf("%s '%s' already exists", items.Type, id))
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, id, ok := s.lookupItem(w, r)
	if !ok {
		return
	}
	data, ok := s.readData(w, r, items.Type)
	if !ok {
		return
	}
	if gjson.Get(data, "id").String() != id {
		s.writeError(w, http.StatusConflict, "Invalid identifier",
			fmt.Sprintf("'data.id' must be '%s'", id))
		return
	}

	stored := string(items.items[id])
	var err error
	for _, member := range []string{"attributes", "relationships"} {
		gjson.Get(data, member).ForEach(func(key, value gjson.Result) bool {
			stored, err = sjson.SetRaw(
				stored, member+"."+escapePath(key.String()), value.Raw,
			)
			return err == nil
		})
		if err != nil {
			s.writeError(w, http.StatusInternalServerError,
				"Unable to perform operation", err.Error())
			return
		}
	}
	items.items[id] = []byte(stored)
	s.logger.Debug("updated", "type", items.Type, "id", id)

	s.writeDocument(w, http.StatusOK, map[string]interface{}{
		"data": json.RawMessage(stored),
	})
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, id, ok := s.lookupItem(w, r)
	if !ok {
		return
	}
	delete(items.items, id)
	for i, existing := range items.order {
		if existing == id {
			items.order = append(items.order[:i], items.order[i+1:]...)
			break
		}
	}
	s.logger.Debug("deleted", "type", items.Type, "id", id)

	s.writeDocument(w, http.StatusOK, map[string]interface{}{
		"meta": map[string]string{"message": "Object successfully deleted"},
	})
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*collection, bool) {
	path := chi.URLParam(r, "collection")
	items, exists := s.collections[path]
	if !exists {
		s.writeError(w, http.StatusNotFound, "Not found",
			fmt.Sprintf("no collection at '%s'", path))
		return nil, false
	}
	return items, true
}

func (s *Server) lookupItem(
	w http.ResponseWriter, r *http.Request,
) (*collection, string, bool) {
	items, ok := s.lookup(w, r)
	if !ok {
		return nil, "", false
	}
	id := chi.URLParam(r, "id")
	if _, exists := items.items[id]; !exists {
		s.writeError(w, http.StatusNotFound, "Object not found",
			fmt.Sprintf("%s '%s' does not exist", items.Type, id))
		return nil, "", false
	}
	return items, id, true
}

// readData returns the raw primary data of the request after checking its
// shape and type
func (s *Server) readData(
	w http.ResponseWriter, r *http.Request, Type string,
) (string, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil || !gjson.ValidBytes(body) {
		s.writeError(w, http.StatusBadRequest, "Bad request",
			"body is not valid JSON")
		return "", false
	}
	data := gjson.GetBytes(body, "data")
	if !data.IsObject() {
		s.writeError(w, http.StatusBadRequest, "Bad request",
			"'data' must be a resource object")
		return "", false
	}
	if got := data.Get("type").String(); got != Type {
		s.writeError(w, http.StatusConflict, "Invalid type",
			fmt.Sprintf("expected type '%s', got '%s'", Type, got))
		return "", false
	}
	return data.Raw, true
}

func (s *Server) selfURL(path, id string) string {
	result := s.basePath + "/" + path + "/"
	if id != "" {
		result += id + "/"
	}
	return result
}

func (s *Server) writeDocument(
	w http.ResponseWriter, status int, document map[string]interface{},
) {
	document["jsonapi"] = map[string]string{"version": "1.0"}
	body, err := json.Marshal(document)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func (s *Server) writeError(
	w http.ResponseWriter, status int, title, detail string,
) {
	s.writeDocument(w, status, map[string]interface{}{
		"errors": []map[string]string{{
			"status": strconv.Itoa(status),
			"title":  title,
			"detail": detail,
		}},
	})
}

// sjson treats '.', '*' and '?' in paths specially
func escapePath(key string) string {
	replacer := strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`)
	return replacer.Replace(key)
}
