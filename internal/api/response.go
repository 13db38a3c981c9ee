package api

import (
	"encoding/json"
	"net/http"

	"github.com/stefando/pdf2img/internal/model"
)

const genericErrorDetail = "Something went wrong while converting the document"

type errorResponse struct {
	Detail string `json:"detail"`
}

type convertResponse struct {
	OutputFileURL string `json:"output_file_url"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

// statusOf maps a conversion error to the response status and detail.
// Only validation details reach the caller.
func statusOf(err error) (int, string) {
	kind, ok := model.KindOf(err)
	if ok && kind == model.ErrorKindValidation {
		return http.StatusNotAcceptable, model.DetailOf(err)
	}

	return http.StatusInternalServerError, genericErrorDetail
}
