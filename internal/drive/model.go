package drive

import "time"

// Wire types for the drive's JSON API.

type envelope struct {
	Status    int    `json:"status"`
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

type fileItem struct {
	FID         string `json:"fid"`
	FileName    string `json:"file_name"`
	PdirFID     string `json:"pdir_fid"`
	Size        uint64 `json:"size"`
	FormatType  string `json:"format_type"`
	Status      int    `json:"status"`
	CreatedAt   int64  `json:"created_at"` // unix millis
	UpdatedAt   int64  `json:"updated_at"` // unix millis
	Dir         bool   `json:"dir"`
	File        bool   `json:"file"`
	DownloadURL string `json:"download_url,omitempty"`
}

type filesMetadata struct {
	Total int `json:"_total"`
	Count int `json:"_count"`
	Page  int `json:"_page"`
}

type listResponse struct {
	envelope
	Data struct {
		List []fileItem `json:"list"`
	} `json:"data"`
	Metadata filesMetadata `json:"metadata"`
}

type downloadRequest struct {
	FIDs []string `json:"fids"`
}

type downloadItem struct {
	FID         string `json:"fid"`
	DownloadURL string `json:"download_url"`
}

type downloadResponse struct {
	envelope
	Data []downloadItem `json:"data"`
}

func (f fileItem) entry() Entry {
	return Entry{
		ID:          f.FID,
		FileName:    f.FileName,
		ParentID:    f.PdirFID,
		Directory:   f.Dir,
		Bytes:       f.Size,
		CreatedAt:   time.UnixMilli(f.CreatedAt),
		UpdatedAt:   time.UnixMilli(f.UpdatedAt),
		DownloadURL: f.DownloadURL,
	}
}

// Page is one page of a directory listing.
type Page struct {
	Entries []Entry
	Total   int // total children across all pages, as reported by the first page
}
