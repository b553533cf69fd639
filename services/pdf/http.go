package pdfsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/nidhamu/core"
	"github.com/trezcool/nidhamu/core/form"
)

type (
	renderRequest struct {
		Filename string    `json:"filename"`
		Form     form.Form `json:"form"`
	}

	renderResponse struct {
		ID   string `json:"id"`
		Size int64  `json:"size"`
	}
)

// httpGenerator renders forms through the document rendering service.
type httpGenerator struct {
	baseURL string
	client  *http.Client
	logger  core.Logger
}

var _ form.DocumentGenerator = (*httpGenerator)(nil)

func NewHTTPGenerator(conf *core.Config, logger core.Logger) form.DocumentGenerator {
	return &httpGenerator{
		baseURL: strings.TrimRight(conf.PDF.ServiceURL, "/"),
		client:  &http.Client{Timeout: conf.PDF.Timeout},
		logger:  logger,
	}
}

// Filename is the name under which the document of f is kept.
func Filename(f form.Form) string {
	return fmt.Sprintf("disciplinary-form-%d-%s.pdf", f.WarningNumber, f.RollNumber)
}

func (gen httpGenerator) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, gen.baseURL+path, body)
	if err != nil {
		return nil, errors.Wrap(err, "building request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return gen.client.Do(req)
}

func (gen httpGenerator) Generate(ctx context.Context, f form.Form) (form.Document, error) {
	filename := Filename(f)
	body, err := json.Marshal(renderRequest{Filename: filename, Form: f})
	if err != nil {
		return form.Document{}, errors.Wrap(err, "encoding form")
	}

	resp, err := gen.do(ctx, http.MethodPost, "/documents", bytes.NewReader(body))
	if err != nil {
		return form.Document{}, errors.Wrap(err, "requesting document")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := ioutil.ReadAll(io.LimitReader(resp.Body, 512))
		return form.Document{}, errors.Errorf("document service responded %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var rendered renderResponse
	if err = json.NewDecoder(resp.Body).Decode(&rendered); err != nil {
		return form.Document{}, errors.Wrap(err, "decoding document")
	}
	if rendered.ID == "" {
		return form.Document{}, errors.New("document service returned no id")
	}

	gen.logger.Debug(fmt.Sprintf("generated %s (%d bytes) for form %s", filename, rendered.Size, f.ID))
	return form.Document{Filename: filename, Size: rendered.Size, Handle: rendered.ID}, nil
}

// Remove deletes a document; documents already gone are not an error.
func (gen httpGenerator) Remove(ctx context.Context, doc form.Document) error {
	if doc.Handle == "" {
		return nil
	}
	resp, err := gen.do(ctx, http.MethodDelete, "/documents/"+url.PathEscape(doc.Handle), nil)
	if err != nil {
		return errors.Wrap(err, "removing document")
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		return nil
	default:
		return errors.Errorf("document service responded %d", resp.StatusCode)
	}
}
