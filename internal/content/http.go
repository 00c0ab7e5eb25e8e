package content

import (
	"fmt"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
)

// HTTP loads chapters from a content server exposing the generated tree:
// GET <base>/manifest.json lists chapters and files, GET <base>/<chapter>/<file>
// returns raw file content.
type HTTP struct {
	client *resty.Client
}

// NewHTTP creates an HTTP-backed loader.
func NewHTTP(baseURL string, timeout time.Duration) *HTTP {
	return &HTTP{
		client: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout),
	}
}

type manifest struct {
	Chapters []manifestChapter `json:"chapters"`
}

type manifestChapter struct {
	ID    string         `json:"id"`
	Files []manifestFile `json:"files"`
}

type manifestFile struct {
	Name      string `json:"name"`
	Category  string `json:"category"`
	Docstring string `json:"docstring"`
}

func (h *HTTP) fetchManifest() (*manifest, error) {
	resp, err := h.client.R().Get("/manifest.json")
	if err != nil {
		return nil, fmt.Errorf("content: fetch manifest: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("content: fetch manifest: unexpected status %s", resp.Status())
	}
	var m manifest
	if err := sonic.Unmarshal(resp.Body(), &m); err != nil {
		return nil, fmt.Errorf("content: parse manifest: %w", err)
	}
	return &m, nil
}

// Chapters lists chapter IDs in manifest order.
func (h *HTTP) Chapters() ([]string, error) {
	m, err := h.fetchManifest()
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(m.Chapters))
	for i, ch := range m.Chapters {
		ids[i] = ch.ID
	}
	return ids, nil
}

// Chapter fetches one chapter's files.
func (h *HTTP) Chapter(id string) (Chapter, error) {
	m, err := h.fetchManifest()
	if err != nil {
		return Chapter{}, err
	}

	for _, ch := range m.Chapters {
		if ch.ID != id {
			continue
		}
		chapter := Chapter{ID: id, Files: make([]File, 0, len(ch.Files))}
		for _, mf := range ch.Files {
			resp, err := h.client.R().Get("/" + id + "/" + mf.Name)
			if err != nil {
				return Chapter{}, fmt.Errorf("content: fetch %s/%s: %w", id, mf.Name, err)
			}
			if resp.StatusCode() != http.StatusOK {
				return Chapter{}, fmt.Errorf("content: fetch %s/%s: unexpected status %s", id, mf.Name, resp.Status())
			}
			category := Category(mf.Category)
			if category == "" {
				category = categorize(mf.Name, resp.Body())
			}
			chapter.Files = append(chapter.Files, File{
				Name:      mf.Name,
				Content:   string(resp.Body()),
				Category:  category,
				Docstring: mf.Docstring,
			})
		}
		return chapter, nil
	}
	return Chapter{}, fmt.Errorf("content: unknown chapter %q", id)
}
