package ingest

import (
	"path"
	"strings"
)

// Source is where a document's text comes from.
type Source interface {
	isSource()
}

// InlineText is text supplied directly.
type InlineText struct {
	Text string
}

// AudioBytes is inline audio awaiting transcription.
type AudioBytes struct {
	Base64   string
	Filename string
}

// MediaKind distinguishes audio and video URLs.
type MediaKind string

const (
	MediaAudio MediaKind = "audio"
	MediaVideo MediaKind = "video"
)

// MediaURL is remote audio or video awaiting fetch and transcription.
type MediaURL struct {
	URL  string
	Kind MediaKind
}

func (InlineText) isSource() {}
func (AudioBytes) isSource() {}
func (MediaURL) isSource()   {}

// Sources lists the ways to obtain text for d, in the order they are tried.
// Non-blank text wins outright. Otherwise inline audio comes before a media
// URL. A bare source_url counts as media only when the document type says
// audio or video.
func Sources(d RawDocument, id string) []Source {
	if text := strings.TrimSpace(d.Text); text != "" {
		return []Source{InlineText{Text: text}}
	}

	var out []Source
	if d.AudioBase64 != "" {
		out = append(out, AudioBytes{Base64: d.AudioBase64, Filename: "ingest_" + id + ".webm"})
	}
	switch {
	case d.AudioURL != "":
		out = append(out, MediaURL{URL: d.AudioURL, Kind: MediaAudio})
	case d.VideoURL != "":
		out = append(out, MediaURL{URL: d.VideoURL, Kind: MediaVideo})
	default:
		ref := sourceRef(d)
		if ref == "" {
			break
		}
		switch MediaKind(d.Type) {
		case MediaAudio:
			out = append(out, MediaURL{URL: ref, Kind: MediaAudio})
		case MediaVideo:
			out = append(out, MediaURL{URL: ref, Kind: MediaVideo})
		}
	}
	return out
}

// sourceRef is the document's reference URL, from whichever field carries it.
func sourceRef(d RawDocument) string {
	if d.Meta != nil && d.Meta.SourceURL != "" {
		return d.Meta.SourceURL
	}
	for _, s := range []string{d.Source, d.URL, d.SourceURL} {
		if s != "" {
			return s
		}
	}
	return ""
}

// mediaFilename derives an upload filename from the URL path, ignoring the
// query string.
func mediaFilename(rawURL, id string) string {
	u := rawURL
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	base := path.Base(u)
	if base == "." || base == "/" || base == "" || strings.HasSuffix(u, "/") || !strings.Contains(u, "/") {
		return "ingest_" + id
	}
	return base
}
