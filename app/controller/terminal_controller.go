package controller

import (
	"encoding/json"
	"fmt"
	"net/http"

	"deadbears-gallery/logger"
	"deadbears-gallery/models"
	"deadbears-gallery/service"
)

const maxTerminalBody = 4 << 10

// TerminalController handles the ritual terminal endpoint
type TerminalController struct {
	terminal *service.TerminalService
}

// NewTerminalController creates a new TerminalController
func NewTerminalController(terminal *service.TerminalService) *TerminalController {
	return &TerminalController{terminal: terminal}
}

// Input handles POST /api/terminal
func (c *TerminalController) Input(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.TerminalRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTerminalBody)).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	resp, err := c.terminal.Handle(r.Context(), req)
	if err != nil {
		logger.Error("❌ Terminal: %v", err)
		http.Error(w, "The ritual failed. Try again.", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
