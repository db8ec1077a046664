package res

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the flattened error envelope returned to clients.
// Error carries the raw detail (for logs and debugging on the client side),
// Message carries the user-presentable text.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// JsonResponse writes data as JSON with the given status code.
func JsonResponse(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
