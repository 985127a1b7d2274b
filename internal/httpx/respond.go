package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Responder writes JSON bodies. Detail hides internal error causes when false.
type Responder struct {
	Log    logrus.FieldLogger
	Detail bool
}

func NewResponder(log logrus.FieldLogger, production bool) *Responder {
	return &Responder{Log: log, Detail: !production}
}

// JSON writes body with the given status.
func (rs *Responder) JSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		rs.Log.WithError(err).Warn("encode response")
	}
}

type dataBody struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Data writes the standard success envelope.
func (rs *Responder) Data(w http.ResponseWriter, status int, message string, data interface{}) {
	rs.JSON(w, status, dataBody{Success: true, Message: message, Data: data})
}

type errorBody struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Error   interface{} `json:"error,omitempty"`
}

// Error maps err onto its status code and writes the standard error body.
func (rs *Responder) Error(w http.ResponseWriter, r *http.Request, err error) {
	e := AsError(err)
	status := e.Kind.Status()

	entry := rs.Log.WithFields(logrus.Fields{
		"path":       r.URL.Path,
		"method":     r.Method,
		"status":     status,
		"request_id": middleware.GetReqID(r.Context()),
	})
	if status >= http.StatusInternalServerError {
		entry.WithError(e.Err).Error(e.Message)
	} else {
		entry.Debug(e.Message)
	}

	body := errorBody{Message: e.Message}
	if rs.Detail && e.Err != nil {
		body.Error = map[string]string{"details": e.Err.Error()}
	}
	rs.JSON(w, status, body)
}

// Decode reads a JSON request body into dst. Malformed input is a validation error.
func Decode(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &Error{Kind: KindValidation, Message: "Invalid JSON body", Err: err}
	}
	return nil
}
