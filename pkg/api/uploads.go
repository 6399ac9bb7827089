package api

import (
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/emergent/skillsmarket/pkg/filestore"
	"github.com/emergent/skillsmarket/pkg/logger"
	"github.com/emergent/skillsmarket/pkg/upload"
)

// BatchItemRequest is one skill, agent or rule of a batch upload.
type BatchItemRequest struct {
	Name        string        `json:"name" jsonschema:"minLength=1,maxLength=100"`
	Description string        `json:"description,omitempty" jsonschema:"maxLength=500"`
	Category    string        `json:"category,omitempty"`
	Files       []upload.File `json:"files" jsonschema:"minItems=1"`
}

// BatchUploadRequest is the body of POST /api/upload/batch.
type BatchUploadRequest struct {
	Skills     []BatchItemRequest `json:"skills,omitempty"`
	Agents     []BatchItemRequest `json:"agents,omitempty"`
	Rules      []BatchItemRequest `json:"rules,omitempty"`
	UploadedBy string             `json:"uploadedBy,omitempty" jsonschema:"maxLength=200"`
}

// Batch converts the request into the upload pipeline's input.
func (req BatchUploadRequest) Batch() upload.Batch {
	convert := func(items []BatchItemRequest) []upload.GroupedItem {
		grouped := make([]upload.GroupedItem, 0, len(items))
		for _, item := range items {
			grouped = append(grouped, upload.GroupedItem{
				Name:        item.Name,
				Description: item.Description,
				Category:    item.Category,
				Files:       item.Files,
			})
		}
		return grouped
	}
	return upload.Batch{
		Skills: convert(req.Skills),
		Agents: convert(req.Agents),
		Rules:  convert(req.Rules),
	}
}

// FilesUploadRequest is the JSON form of POST /api/upload: a raw file tree
// the server classifies itself.
type FilesUploadRequest struct {
	Files      []upload.File `json:"files" jsonschema:"minItems=1"`
	UploadedBy string        `json:"uploadedBy,omitempty" jsonschema:"maxLength=200"`
}

// handleUploadBatch handles POST /api/upload/batch
func (s *Server) handleUploadBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchUploadRequest
	if !decode(w, r, s.maxUploadBody(), &req) {
		return
	}

	created, err := s.service.UploadBatch(r.Context(), req.Batch(), req.UploadedBy)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, r, http.StatusCreated, created)
}

// handleUpload handles POST /api/upload. The body is either a multipart
// form with a zip archive in "file" or a FilesUploadRequest.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	var files []upload.File
	var uploadedBy string

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		archive, by, err := s.readArchive(w, r)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		files, uploadedBy = archive.Files, by
	} else {
		var req FilesUploadRequest
		if !decode(w, r, s.maxUploadBody(), &req) {
			return
		}
		files, uploadedBy = req.Files, req.UploadedBy
	}

	result, err := s.service.Upload(r.Context(), files, uploadedBy)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, r, http.StatusCreated, result)
}

func (s *Server) readArchive(w http.ResponseWriter, r *http.Request) (*upload.Archive, string, error) {
	limits := s.config.Limits
	r.Body = http.MaxBytesReader(w, r.Body, limits.MaxTotal+maxJSONBody)
	if err := r.ParseMultipartForm(maxJSONBody); err != nil {
		return nil, "", errors.Wrap(err, "failed to parse multipart form")
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", errors.New("a zip archive is required in the \"file\" field")
	}
	defer file.Close()

	if !strings.EqualFold(path.Ext(header.Filename), ".zip") {
		return nil, "", errors.Errorf("%s is not a zip archive", header.Filename)
	}

	archive, err := upload.ExtractZip(file, header.Size, header.Filename, limits)
	if err != nil {
		return nil, "", err
	}
	logger.G(r.Context()).
		WithField("archive", header.Filename).
		WithField("files", len(archive.Files)).
		Debug("extracted upload archive")
	return archive, r.FormValue("uploadedBy"), nil
}

// handleFile handles GET /api/files/{path}
func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	p := mux.Vars(r)["path"]
	content, err := s.service.Files().ReadFile(r.Context(), p)
	if err != nil {
		if errors.Is(err, filestore.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "File not found")
			return
		}
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	contentType := mime.TypeByExtension(path.Ext(p))
	if contentType == "" {
		contentType = http.DetectContentType(content)
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(content); err != nil {
		logger.G(r.Context()).WithError(err).Warn("failed to write file response")
	}
}
