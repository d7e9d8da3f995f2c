// internal/handlers/utils.go
package handlers

import (
	"fmt"
	"net/http"
)

// PingHandler is the liveness endpoint.
func PingHandler(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "pong")
}
