package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/soypat/engrave/filters"
	"github.com/soypat/engrave/imageio"
	"github.com/soypat/engrave/internal/logging"
	"github.com/soypat/engrave/kernel"
	"github.com/vmihailenco/msgpack/v5"
)

// Request is the body of an engraving request. File holds the original file
// name followed by its base64 contents, optionally as a data URL.
// Inv and Gray default to false; every other field is required.
type Request struct {
	File       []string `json:"file" msgpack:"file"`
	Neighboors *string  `json:"neighboors" msgpack:"neighboors"`
	Add        *float64 `json:"add" msgpack:"add"`
	Mult       *float64 `json:"mult" msgpack:"mult"`
	Inv        bool     `json:"inv" msgpack:"inv"`
	Gray       bool     `json:"gray" msgpack:"gray"`
}

// requestError is an error answered with a specific status code.
type requestError struct {
	status int
	err    error
}

func (e *requestError) Error() string { return e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

func badRequest(format string, args ...any) error {
	return &requestError{status: http.StatusBadRequest, err: fmt.Errorf(format, args...)}
}

var errUnsupportedEncoding = errors.New("unsupported content encoding")

// Config validates the request parameters.
func (req *Request) Config() (filters.Config, error) {
	switch {
	case req.Neighboors == nil:
		return filters.Config{}, badRequest("missing field %q", "neighboors")
	case req.Add == nil:
		return filters.Config{}, badRequest("missing field %q", "add")
	case req.Mult == nil:
		return filters.Config{}, badRequest("missing field %q", "mult")
	}
	n, err := kernel.Parse(*req.Neighboors)
	if err != nil {
		return filters.Config{}, badRequest("%w", err)
	}
	return filters.Config{
		Neighbors: n,
		Add:       *req.Add,
		Mult:      *req.Mult,
		Invert:    req.Inv,
		Gray:      req.Gray,
	}, nil
}

// Image returns the decoded contents of the uploaded file.
func (req *Request) Image() ([]byte, error) {
	if len(req.File) != 2 {
		return nil, badRequest("field %q must hold a file name and its contents", "file")
	}
	data := req.File[1]
	if strings.HasPrefix(data, "data:") {
		_, data, _ = strings.Cut(data, ",")
	}
	content, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, badRequest("file %q is not valid base64: %w", req.File[0], err)
	}
	return content, nil
}

func (s *Server) handleEngrave(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())
	png, err := s.engrave(w, r)
	if err != nil {
		status := http.StatusInternalServerError
		var reqErr *requestError
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			status = http.StatusRequestEntityTooLarge
		case errors.Is(err, errUnsupportedEncoding):
			status = http.StatusUnsupportedMediaType
		case errors.As(err, &reqErr):
			status = reqErr.status
		}
		logger.Warn("Engrave request rejected", "status", status, "error", err)
		http.Error(w, err.Error(), status)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// engrave decodes the request, runs the filter and returns the PNG result.
func (s *Server) engrave(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	limit := s.cfg.MaxUploadBytes()
	body, err := decompress(http.MaxBytesReader(w, r.Body, limit), r.Header.Get("Content-Encoding"))
	if err != nil {
		return nil, err
	}
	defer body.Close()
	// Compressed bodies are limited again once inflated.
	body = http.MaxBytesReader(w, body, limit)

	req, err := decodeRequest(body, r.Header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}
	cfg, err := req.Config()
	if err != nil {
		return nil, err
	}
	content, err := req.Image()
	if err != nil {
		return nil, err
	}
	img, err := imageio.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, badRequest("decoding %q: %w", req.File[0], err)
	}

	start := time.Now()
	out := filters.ApplyWorkers(img, cfg, s.cfg.Workers)
	logging.FromContext(r.Context()).Debug("Image engraved",
		"file", req.File[0], "width", out.Width(), "height", out.Height(),
		"neighbors", cfg.Neighbors.String(), "elapsed", time.Since(start))

	var buf bytes.Buffer
	if err := imageio.Encode(&buf, out, imageio.PNG); err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeRequest(body io.Reader, contentType string) (*Request, error) {
	var req Request
	mediaType, _, _ := mime.ParseMediaType(contentType)
	switch mediaType {
	case "application/msgpack", "application/x-msgpack":
		if err := msgpack.NewDecoder(body).Decode(&req); err != nil {
			return nil, malformed(err)
		}
	default:
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			return nil, malformed(err)
		}
	}
	return &req, nil
}

// malformed keeps body size errors distinguishable from syntax errors.
func malformed(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return err
	}
	return badRequest("malformed request body: %w", err)
}

func decompress(body io.ReadCloser, encoding string) (io.ReadCloser, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
		return body, nil
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(body)
		if err != nil {
			return nil, malformed(err)
		}
		return zr, nil
	case "zstd":
		dec, err := zstd.NewReader(body)
		if err != nil {
			return nil, malformed(err)
		}
		return dec.IOReadCloser(), nil
	default:
		return nil, fmt.Errorf("%w %q", errUnsupportedEncoding, encoding)
	}
}
