// Package video derives preview images from video page URLs
package video

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	youtubeID = regexp.MustCompile(`^[A-Za-z0-9_-]{6,}$`)
	vimeoID   = regexp.MustCompile(`^[0-9]+$`)
)

// Thumbnail return a preview image URL for YouTube and Vimeo links,
// "" when the host is not recognized
func Thumbnail(videoURL string) string {
	u, err := url.Parse(strings.TrimSpace(videoURL))
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")

	switch host {
	case "youtube.com", "youtube-nocookie.com":
		var id string
		switch {
		case segments[0] == "watch":
			id = u.Query().Get("v")
		case len(segments) >= 2 && (segments[0] == "embed" || segments[0] == "shorts" || segments[0] == "v"):
			id = segments[1]
		}
		return youtubeThumbnail(id)
	case "youtu.be":
		return youtubeThumbnail(segments[0])
	case "vimeo.com":
		return vimeoThumbnail(segments[len(segments)-1])
	case "player.vimeo.com":
		if len(segments) >= 2 && segments[0] == "video" {
			return vimeoThumbnail(segments[1])
		}
	}
	return ""
}

func youtubeThumbnail(id string) string {
	if !youtubeID.MatchString(id) {
		return ""
	}
	return "https://img.youtube.com/vi/" + id + "/hqdefault.jpg"
}

func vimeoThumbnail(id string) string {
	if !vimeoID.MatchString(id) {
		return ""
	}
	return "https://vumbnail.com/" + id + ".jpg"
}
