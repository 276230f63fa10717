package handlers

import "net/http"

// Home — приветствие на корне.
func (h *Handlers) Home(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Hello World"))
}

// Test — проверка доступности API фронтом.
func (h *Handlers) Test(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, http.StatusOK, nil, "Test successful")
}
