package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"gitlab.com/gearbroker.net/internal/handlers/response"
)

func ResponseWithJson(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

func ResponseError(w http.ResponseWriter, message string, code int) {
	response.WriteError(w, response.ErrorMessage{
		Message:    message,
		StatusCode: code,
	})
}

// QueryInt reads a positive integer query parameter, def when absent or invalid
func QueryInt(r *http.Request, name string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v <= 0 {
		return def
	}
	return v
}
