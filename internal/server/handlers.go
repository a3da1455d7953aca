package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/mux"

	"github.com/tensorkv/tensorkv/internal/engine"
	"github.com/tensorkv/tensorkv/internal/store"
	"github.com/tensorkv/tensorkv/internal/tensor"
)

// The wire shapes. Every response carries the schema's (success, message)
// pair; structured error kinds are flattened into the message and the HTTP
// status. Chunked payloads marshal as base64 strings, dtypes as their
// canonical names.

type createStoreRequest struct {
	Name     string `json:"name"`
	Position uint64 `json:"position"`
	Range    uint64 `json:"range"`
}

type createStoreResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type putRequest struct {
	Value *tensor.Value `json:"value"`
}

type keyResponse struct {
	Key     uint64 `json:"key"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type getResponse struct {
	Key     uint64        `json:"key"`
	Value   *tensor.Value `json:"value,omitempty"`
	Success bool          `json:"success"`
	Message string        `json:"message"`
}

type listResponse struct {
	Keys    []uint64 `json:"keys"`
	Count   uint32   `json:"count"`
	Success bool     `json:"success"`
}

type storesResponse struct {
	Stores  []store.Info `json:"stores"`
	Count   int          `json:"count"`
	Success bool         `json:"success"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// handleCreateStore creates a named store.
//
// POST /api/v1/stores
func (s *Server) handleCreateStore(w http.ResponseWriter, r *http.Request) {
	var req createStoreRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeJSON(w, r, http.StatusBadRequest,
			createStoreResponse{Success: false, Message: err.Error()})
		return
	}
	if err := s.engine.CreateStore(req.Name, req.Position, req.Range); err != nil {
		s.writeJSON(w, r, statusOf(engine.KindOf(err)),
			createStoreResponse{Success: false, Message: err.Error()})
		return
	}
	s.writeJSON(w, r, http.StatusOK,
		createStoreResponse{Success: true, Message: "store " + strconv.Quote(req.Name) + " created"})
}

// handleListStores describes every registered store.
//
// GET /api/v1/stores
func (s *Server) handleListStores(w http.ResponseWriter, r *http.Request) {
	infos := s.engine.Stores()
	s.writeJSON(w, r, http.StatusOK,
		storesResponse{Stores: infos, Count: len(infos), Success: true})
}

// handlePut stores a value under a key.
//
// PUT /api/v1/stores/{store}/keys/{key}
func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	key, ok := s.pathKey(w, r)
	if !ok {
		return
	}
	var req putRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeJSON(w, r, http.StatusBadRequest,
			keyResponse{Key: key, Success: false, Message: err.Error()})
		return
	}
	if req.Value == nil {
		s.writeJSON(w, r, http.StatusBadRequest,
			keyResponse{Key: key, Success: false, Message: "request has no value"})
		return
	}

	err := s.engine.Put(mux.Vars(r)["store"], key, engine.PutValue{
		Shape:     req.Value.Shape,
		DType:     req.Value.DType,
		SizeCheck: req.Value.SizeCheck,
		KeyCheck:  req.Value.KeyCheck,
		Data:      req.Value.Data,
	})
	if err != nil {
		s.writeJSON(w, r, statusOf(engine.KindOf(err)),
			keyResponse{Key: key, Success: false, Message: err.Error()})
		return
	}
	s.writeJSON(w, r, http.StatusOK,
		keyResponse{Key: key, Success: true, Message: "stored"})
}

// handleGet returns the value stored under a key. An absent key yields a
// response with no value field at all, distinct from an empty-payload
// value.
//
// GET /api/v1/stores/{store}/keys/{key}
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	key, ok := s.pathKey(w, r)
	if !ok {
		return
	}
	v, err := s.engine.Get(mux.Vars(r)["store"], key)
	if err != nil {
		s.writeJSON(w, r, statusOf(engine.KindOf(err)),
			getResponse{Key: key, Success: false, Message: err.Error()})
		return
	}
	s.writeJSON(w, r, http.StatusOK,
		getResponse{Key: key, Value: v, Success: true, Message: "found"})
}

// handleDelete removes the value stored under a key.
//
// DELETE /api/v1/stores/{store}/keys/{key}
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	key, ok := s.pathKey(w, r)
	if !ok {
		return
	}
	if err := s.engine.Delete(mux.Vars(r)["store"], key); err != nil {
		s.writeJSON(w, r, statusOf(engine.KindOf(err)),
			keyResponse{Key: key, Success: false, Message: err.Error()})
		return
	}
	s.writeJSON(w, r, http.StatusOK,
		keyResponse{Key: key, Success: true, Message: "deleted"})
}

// handleList returns a snapshot of the keys in a store.
//
// GET /api/v1/stores/{store}/keys
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	keys, err := s.engine.List(mux.Vars(r)["store"])
	if err != nil {
		s.writeJSON(w, r, statusOf(engine.KindOf(err)),
			listResponse{Keys: nil, Count: 0, Success: false})
		return
	}
	if keys == nil {
		keys = []uint64{}
	}
	s.writeJSON(w, r, http.StatusOK,
		listResponse{Keys: keys, Count: uint32(len(keys)), Success: true})
}

// handleHealth reports the static health descriptor.
//
// GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, service := s.engine.Health()
	s.writeJSON(w, r, http.StatusOK, healthResponse{Status: status, Service: service})
}

// pathKey parses the {key} path variable. Keys are decimal unsigned 64-bit
// integers; anything else is a client error reported in the usual
// (success, message) shape.
func (s *Server) pathKey(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	raw := mux.Vars(r)["key"]
	key, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		s.writeJSON(w, r, http.StatusBadRequest,
			keyResponse{Success: false, Message: "malformed key " + strconv.Quote(raw)})
		return 0, false
	}
	return key, true
}

// decode reads a JSON request body under the configured size cap. The
// caller renders the failure in its own response shape, so a malformed Put
// body still answers with the key field that every Put reply carries.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, into any) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBytes)
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		return errors.Wrap(err, "malformed request")
	}
	return nil
}
