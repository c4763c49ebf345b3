package llm

import (
	"encoding/base64"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/gig-earnings-audit/constants"
)

// ReadImageAsDataURL loads an image for a vision request. Files over the
// upload limit or with a non-image extension are refused.
func ReadImageAsDataURL(path string) (string, string, error) {
	ext := constants.NormalizeExt(filepath.Ext(path))
	if constants.MapExtToFormat(ext) != constants.IMAGE {
		return "", "", fmt.Errorf("not an image: %q", ext)
	}
	st, err := os.Stat(path)
	if err != nil {
		return "", "", err
	}
	if st.Size() > constants.MaxUploadBytes {
		return "", "", fmt.Errorf("image too large for vision request: %d bytes", st.Size())
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	mt := mime.TypeByExtension("." + ext)
	if mt == "" {
		switch ext {
		case "jpg", "jpeg":
			mt = "image/jpeg"
		case "png":
			mt = "image/png"
		case "webp":
			mt = "image/webp"
		default:
			mt = "application/octet-stream"
		}
	}
	data := base64.StdEncoding.EncodeToString(b)
	return "data:" + mt + ";base64," + data, mt, nil
}

// StripCodeFence removes a ```json ... ``` wrapper some models add around JSON.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
