package mailer

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"webmail/utils"

	"golang.org/x/net/html"
)

// ExtractInlineImages replaces data: image sources in body with cid:
// references and returns the rewritten HTML together with the image parts.
// Everything outside the rewritten img tags is copied through unchanged.
func ExtractInlineImages(body, domain string) (string, []Part, error) {
	if !strings.Contains(body, "data:image/") {
		return body, nil, nil
	}

	var out bytes.Buffer
	var parts []Part
	z := html.NewTokenizer(strings.NewReader(body))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if z.Err() == io.EOF {
				break
			}
			return "", nil, z.Err()
		}
		raw := z.Raw()
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			out.Write(raw)
			continue
		}

		// Raw is only valid until the next call; copy before Token()
		raw = append([]byte(nil), raw...)
		tok := z.Token()
		if tok.Data != "img" {
			out.Write(raw)
			continue
		}

		rewritten := false
		alt := ""
		for _, a := range tok.Attr {
			if a.Key == "alt" {
				alt = a.Val
			}
		}
		for i, a := range tok.Attr {
			if a.Key != "src" || !strings.HasPrefix(a.Val, "data:image/") {
				continue
			}
			part, err := decodeDataURL(a.Val)
			if err != nil {
				utils.Log.Warn("Skipping inline image: %v", err)
				break
			}
			index := len(parts)
			part.ContentID = fmt.Sprintf("inline-image-%d@%s", index, domain)
			part.Filename = inlineFilename(alt, index, part.ContentType)
			parts = append(parts, part)
			tok.Attr[i].Val = "cid:" + part.ContentID
			rewritten = true
			break
		}
		if rewritten {
			out.WriteString(tok.String())
		} else {
			out.Write(raw)
		}
	}
	return out.String(), parts, nil
}

func decodeDataURL(src string) (Part, error) {
	contentType, data, err := utils.DecodeDataURL(src)
	if err != nil {
		return Part{}, err
	}
	return Part{ContentType: contentType, Data: data}, nil
}

func inlineFilename(alt string, index int, contentType string) string {
	ext := utils.ImageExtension(contentType)
	if ext == "" {
		ext = "jpg"
	}
	if alt = strings.TrimSpace(alt); alt != "" && !strings.ContainsAny(alt, `/\`) {
		return alt + "." + ext
	}
	return fmt.Sprintf("inline-image-%d.%s", index, ext)
}
