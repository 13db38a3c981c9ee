package api

import (
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/stefando/pdf2img/internal/app/convert"
	"github.com/stefando/pdf2img/internal/model"
)

const filesField = "files"

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (h *handler) convertTool(tool Tool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := h.logger.WithCtxValues(ctx)

		err := r.ParseMultipartForm(h.maxMemory)
		if r.MultipartForm != nil {
			defer func() { _ = r.MultipartForm.RemoveAll() }()
		}
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "invalid multipart form")
			return
		}

		// Read the uploaded files and the tool options.
		headers := r.MultipartForm.File[filesField]
		if len(headers) == 0 {
			writeError(w, http.StatusUnprocessableEntity, filesField+": field required")
			return
		}

		var params map[string]any
		if tool.Parameters != nil {
			params, err = tool.Parameters(url.Values(r.MultipartForm.Value))
			if err != nil {
				writeError(w, http.StatusUnprocessableEntity, err.Error())
				return
			}
		}

		files := make([]model.InputFile, 0, len(headers))
		for _, fh := range headers {
			files = append(files, inputFile(fh))
		}

		res, err := h.converter.Run(ctx, convert.Request{
			Files:           files,
			Tool:            tool.Name,
			ExtraParameters: params,
		})
		if err != nil {
			status, detail := statusOf(err)
			if status >= http.StatusInternalServerError {
				logger.Errorf("could not convert: %s", err)
			}
			writeError(w, status, detail)
			return
		}

		// Return the output location.
		writeJSON(w, http.StatusOK, convertResponse{OutputFileURL: res.Output.URL})
	}
}

func inputFile(fh *multipart.FileHeader) model.InputFile {
	return model.InputFile{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Open: func() (io.ReadSeekCloser, error) {
			f, err := fh.Open()
			if err != nil {
				return nil, err
			}
			return f, nil
		},
	}
}
