// Command nucstore-sandbox serves the SODA REST surface over HTTP, backed
// by the in-memory mock database. It exists so pipeline stages can be
// developed and hardened locally: seed it with documents, inject latency or
// failures, and point the client at it via NUCSTORE_DB_URL.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nucstore/nucstore_sdk_go/internal/devseed"
	"github.com/nucstore/nucstore_sdk_go/internal/httpx"
	"github.com/nucstore/nucstore_sdk_go/internal/sodaapi"
	sodamock "github.com/nucstore/nucstore_sdk_go/pkg/soda/mock"
)

type failConfig struct {
	rate float64
	code int
}

func main() {
	addr := flag.String("addr", ":8787", "listen address")
	tenant := flag.String("tenant", "admin", "tenant path segment served under /{tenant}/soda/latest")
	seedPath := flag.String("seed", "", "path to JSON seed file for the mock database")
	latency := flag.Duration("latency", 0, "artificial latency injected per request")
	fail := flag.String("fail", "", "failure injection (rate=<float>,code=<httpStatus>)")
	pageLimit := flag.Int("page-limit", 25, "query result page size")
	flag.Parse()

	store := sodamock.New(sodamock.WithPageLimit(*pageLimit))
	if *seedPath != "" {
		seeds, err := devseed.LoadSeed(*seedPath)
		if err != nil {
			log.Fatalf("load seed: %v", err)
		}
		if err := store.Seed(seeds); err != nil {
			log.Fatalf("apply seed: %v", err)
		}
	}

	failCfg, err := parseFail(*fail)
	if err != nil {
		log.Fatalf("parse -fail: %v", err)
	}

	srv := &server{
		store:   store,
		prefix:  "/" + strings.Trim(*tenant, "/") + "/soda/latest",
		latency: *latency,
		fail:    failCfg,
	}
	log.Printf("nucstore sandbox listening on %s (SODA root %s)", *addr, srv.prefix)
	log.Fatal(http.ListenAndServe(*addr, srv))
}

func parseFail(s string) (failConfig, error) {
	cfg := failConfig{code: http.StatusInternalServerError}
	if s == "" {
		return cfg, nil
	}
	for _, part := range strings.Split(s, ",") {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return cfg, fmt.Errorf("malformed component %q", part)
		}
		switch key {
		case "rate":
			rate, err := strconv.ParseFloat(value, 64)
			if err != nil || rate < 0 || rate > 1 {
				return cfg, fmt.Errorf("rate %q must be a float in [0,1]", value)
			}
			cfg.rate = rate
		case "code":
			code, err := strconv.Atoi(value)
			if err != nil || code < 400 || code > 599 {
				return cfg, fmt.Errorf("code %q must be an HTTP error status", value)
			}
			cfg.code = code
		default:
			return cfg, fmt.Errorf("unknown component %q", key)
		}
	}
	return cfg, nil
}

type server struct {
	store   *sodamock.Mock
	prefix  string
	latency time.Duration
	fail    failConfig
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.latency > 0 {
		time.Sleep(s.latency)
	}
	if s.fail.rate > 0 && rand.Float64() < s.fail.rate {
		http.Error(w, "injected failure", s.fail.code)
		return
	}

	rest, ok := strings.CutPrefix(r.URL.Path, s.prefix)
	if !ok {
		http.NotFound(w, r)
		return
	}
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) == 1 && parts[0] == "" {
		parts = nil
	}

	switch {
	case len(parts) == 0 && r.Method == http.MethodGet:
		s.listCollections(w, r)
	case len(parts) == 1 && r.Method == http.MethodPut:
		s.createCollection(w, r, parts[0])
	case len(parts) == 1 && r.Method == http.MethodDelete:
		s.dropCollection(w, r, parts[0])
	case len(parts) == 1 && r.Method == http.MethodPost:
		if r.URL.Query().Get("action") == "query" {
			s.query(w, r, parts[0])
			return
		}
		s.insert(w, r, parts[0])
	case len(parts) == 2 && r.Method == http.MethodDelete:
		s.deleteDoc(w, r, parts[0], parts[1])
	default:
		http.NotFound(w, r)
	}
}

func (s *server) listCollections(w http.ResponseWriter, r *http.Request) {
	names, err := s.store.ListCollections(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	list := sodaapi.CollectionList{}
	for _, name := range names {
		list.Items = append(list.Items, struct {
			Name string `json:"name"`
		}{Name: name})
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *server) createCollection(w http.ResponseWriter, r *http.Request, name string) {
	if err := s.store.CreateCollection(r.Context(), name); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *server) dropCollection(w http.ResponseWriter, r *http.Request, name string) {
	if err := s.store.DropCollection(r.Context(), name); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *server) insert(w http.ResponseWriter, r *http.Request, collection string) {
	defer r.Body.Close()
	var doc json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	id, err := s.store.Insert(r.Context(), collection, doc)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sodaapi.QueryResult{
		Items: []sodaapi.Item{{ID: id}},
		Count: 1,
	})
}

func (s *server) query(w http.ResponseWriter, r *http.Request, collection string) {
	defer r.Body.Close()
	var filter sodaapi.Filter
	if err := json.NewDecoder(r.Body).Decode(&filter); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid offset", http.StatusBadRequest)
			return
		}
		offset = n
	}
	result, err := s.store.Query(r.Context(), collection, filter, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *server) deleteDoc(w http.ResponseWriter, r *http.Request, collection, id string) {
	if err := s.store.Delete(r.Context(), collection, id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	var httpErr *httpx.HTTPError
	if errors.As(err, &httpErr) {
		http.Error(w, string(httpErr.Body), httpErr.StatusCode)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
